package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/pthm/hxnav"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	walkOnly := flag.Bool("walk", false, "serve on a random port, walk the site headlessly and exit")
	configPath := flag.String("config", "", "runtime configuration file used by -walk")
	flag.Parse()

	store := NewStore()
	handler := NewServer(store)

	if *walkOnly {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatal(err)
		}
		srv := &http.Server{Handler: handler}
		go srv.Serve(ln)
		defer srv.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := Walk(ctx, "http://"+ln.Addr().String(), *configPath, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	fmt.Printf("Starting server at http://localhost%s\n", *addr)
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.Fatal(err)
	}
}

// NewServer routes the demo site.
func NewServer(store *Store) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		hxnav.Render(w, r, Layout("Todos", IndexPage(store.List())))
	})
	mux.HandleFunc("GET /about", func(w http.ResponseWriter, r *http.Request) {
		hxnav.Render(w, r, Layout("About", AboutPage()))
	})
	mux.HandleFunc("GET /todo/{id}", func(w http.ResponseWriter, r *http.Request) {
		t, ok := store.Get(r.PathValue("id"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		hxnav.Render(w, r, Layout(t.Title, TodoPage(t)))
	})
	mux.HandleFunc("POST /todo/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !store.Toggle(id) {
			http.NotFound(w, r)
			return
		}
		hxnav.SeeOther(w, r, "/todo/"+id)
	})
	mux.HandleFunc("POST /todos", func(w http.ResponseWriter, r *http.Request) {
		var form struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		title := strings.TrimSpace(form.Title)
		if title == "" {
			http.Error(w, "title required", http.StatusUnprocessableEntity)
			return
		}
		id := store.Add(title)
		hxnav.SeeOther(w, r, "/todo/"+id)
	})

	return mux
}
