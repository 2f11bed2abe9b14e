package hxnav

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/pthm/hxnav/lib/config"
	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/storage"
)

func TestStartWithoutLocation(t *testing.T) {
	doc, err := dom.ParseString(`<body><span hn-store="x"></span></body>`, "")
	if err != nil {
		t.Fatal(err)
	}
	logger, logs := CaptureLogs()
	rt := New(doc, Options{Logger: logger})

	err = rt.Start(context.Background())
	if !errors.Is(err, ErrIncompatible) {
		t.Errorf("Start() error = %v, want ErrIncompatible", err)
	}
	if rt.Started() {
		t.Error("Started() = true after a failed Start")
	}
	if len(rt.Store().Keys()) != 0 {
		t.Error("store was initialized by a failed Start")
	}
	if !logs.Contains(slog.LevelError, "hxnav will not work") {
		t.Error("failed Start did not log an error")
	}
}

func TestStartInitializes(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body>
		<span id="g" hn-store="theme" hn-store-initial="light"></span>
		<span id="p" hn-page-store="title" hn-page-store-initial="Home"></span>
		<a id="link" href="/next">next</a>
	</body>`, Options{})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := textOf(t, rt, "g"); got != "light" {
		t.Errorf("#g = %q, want %q", got, "light")
	}
	if got := textOf(t, rt, "p"); got != "Home" {
		t.Errorf("#p = %q, want %q", got, "Home")
	}
	link := dom.ByID(rt.Document().Root(), "link")
	if got := rt.Document().ListenerCount(link, "click"); got != 1 {
		t.Errorf("link click listeners = %d, want 1", got)
	}
	if got := rt.History(); len(got) != 1 || got[0] != "http://example.com/" {
		t.Errorf("History() = %v, want the start page", got)
	}
	if rt.State() != StateIdle {
		t.Errorf("State() = %s, want idle", rt.State())
	}
}

func openMemoryStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.Open(storage.Options{InMemory: true, Key: []byte("test-key")})
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartHydratesStoredValues(t *testing.T) {
	store := openMemoryStorage(t)
	if err := store.Set("theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("visits", map[string]any{"count": 3}); err != nil {
		t.Fatal(err)
	}

	rt, _ := newDocRuntime(t, `<body>
		<span id="theme" hn-get="theme"></span>
		<span id="visits" hn-get="visits"></span>
		<span id="unset" hn-get="nothing">default</span>
	</body>`, Options{Storage: store})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := textOf(t, rt, "theme"); got != "dark" {
		t.Errorf("#theme = %q, want %q", got, "dark")
	}
	if got := textOf(t, rt, "visits"); got != `{"count":3}` {
		t.Errorf("#visits = %q, want %q", got, `{"count":3}`)
	}
	if got := textOf(t, rt, "unset"); got != "default" {
		t.Errorf("#unset = %q, want %q", got, "default")
	}
}

func TestStoreFor(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body></body>`, Options{})

	global, err := rt.StoreFor("")
	if err != nil || global != rt.Store() {
		t.Errorf("StoreFor(\"\") = %p, %v, want the global store", global, err)
	}
	page, err := rt.StoreFor(PagePrefix)
	if err != nil || page != rt.Page() {
		t.Errorf("StoreFor(page) = %p, %v, want the page store", page, err)
	}
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		animate func(Animator) bool
	}{
		{
			name:    "no transitions",
			mutate:  func(c *config.Config) { c.PlayTransitions = false },
			animate: func(a Animator) bool { return a == nil },
		},
		{
			name:   "fade",
			mutate: func(c *config.Config) {},
			animate: func(a Animator) bool {
				_, ok := a.(FadeAnimator)
				return ok
			},
		},
		{
			name: "css classes",
			mutate: func(c *config.Config) {
				c.Transition.CSS = true
				c.Transition.InClass = "in"
				c.Transition.OutClass = "out"
			},
			animate: func(a Animator) bool {
				ca, ok := a.(ClassAnimator)
				return ok && ca.InClass == "in" && ca.OutClass == "out"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Mount = "main"
			cfg.Log.Level = "error"
			tt.mutate(&cfg)

			doc, _ := dom.ParseString(`<body><main></main></body>`, "http://example.com/")
			rt, err := NewFromConfig(doc, cfg, http.DefaultClient)
			if err != nil {
				t.Fatalf("NewFromConfig() error = %v", err)
			}
			defer rt.Close()

			if rt.Storage() == nil {
				t.Error("Storage() = nil, want the configured storage")
			}
			if rt.mount != "main" {
				t.Errorf("mount = %q, want %q", rt.mount, "main")
			}
			if !tt.animate(rt.animator) {
				t.Errorf("animator = %#v", rt.animator)
			}
		})
	}
}

func TestNewFromConfigBadLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "loud"
	doc, _ := dom.ParseString(`<body></body>`, "http://example.com/")

	if _, err := NewFromConfig(doc, cfg, nil); err == nil {
		t.Error("NewFromConfig() error = nil, want an invalid level error")
	}
}

func TestCloseReleasesStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"
	doc, _ := dom.ParseString(`<body></body>`, "http://example.com/")
	rt, err := NewFromConfig(doc, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	st := rt.Storage()

	if err := rt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := st.Set("k", "v"); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Set after Close error = %v, want storage.ErrClosed", err)
	}
	if err := rt.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestNormalizeURL(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body></body>`, Options{})
	u, _ := rt.Document().Resolve("/search?q=go#results")

	if got := normalizeURL(u); got != "http://example.com/search" {
		t.Errorf("normalizeURL() = %q, want %q", got, "http://example.com/search")
	}
}
