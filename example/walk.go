package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/lib/config"
	"github.com/pthm/hxnav/lib/dom"
)

// Walk drives the site at base with a headless runtime: it opens the index,
// adds a todo through the form, visits a few pages and goes back, printing
// where it is after each step.
func Walk(ctx context.Context, base, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Mount = "main"
	cfg.PlayTransitions = false

	rt, err := hxnav.NewFromConfig(dom.New(nil, nil), cfg, &http.Client{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Open(ctx, base+"/"); err != nil {
		return err
	}
	step(out, rt, "open")

	doc := rt.Document()
	if input, _ := dom.SelectOne(doc.Root(), "#add input[name=title]"); input != nil {
		dom.SetValue(input, "Try hxnav")
		form, _ := dom.SelectOne(doc.Root(), "#add")
		doc.Submit(ctx, form)
		step(out, rt, "submit")
	}

	if err := visit(ctx, rt, []string{"/about", "/todo/todo-1"}); err != nil {
		return err
	}
	step(out, rt, "visit")

	if rep := rt.Back(ctx); rep.Outcome != hxnav.Completed {
		return fmt.Errorf("back: %s: %w", rep.Outcome, rep.Err)
	}
	step(out, rt, "back")
	return nil
}

func visit(ctx context.Context, nav hxnav.Navigator, paths []string) error {
	for _, p := range paths {
		if rep := nav.Go(ctx, p); rep.Outcome != hxnav.Completed {
			return fmt.Errorf("%s: %s: %w", p, rep.Outcome, rep.Err)
		}
	}
	return nil
}

func step(out io.Writer, rt *hxnav.Runtime, name string) {
	visits, _ := rt.Store().Get("visits")
	fmt.Fprintf(out, "%-7s %-20s %s (visits %v)\n", name, rt.Document().Title(), rt.Document().Location(), visits)
}
