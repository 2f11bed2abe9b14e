package main

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/pthm/hxnav"
)

// open writes a start tag with attrs spread onto it.
func open(ctx context.Context, w io.Writer, tag string, attrs templ.Attributes) error {
	if _, err := io.WriteString(w, "<"+tag); err != nil {
		return err
	}
	if err := templ.RenderAttributes(ctx, w, attrs); err != nil {
		return err
	}
	_, err := io.WriteString(w, ">")
	return err
}

// element writes tag with attrs around escaped text.
func element(ctx context.Context, w io.Writer, tag string, attrs templ.Attributes, text string) error {
	if err := open(ctx, w, tag, attrs); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s</%s>", templ.EscapeString(text), tag)
	return err
}

// Layout wraps a page body in the site shell. The header is rebuilt on
// every navigation; only main is swapped.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body>", templ.EscapeString(title))
		open(ctx, w, "header", hxnav.Merge(templ.Attributes{"id": "nav"}, hxnav.Rebuild()))
		element(ctx, w, "a", hxnav.Link("/"), "Todos")
		io.WriteString(w, " ")
		element(ctx, w, "a", hxnav.Link("/about"), "About")
		io.WriteString(w, " visits: ")
		element(ctx, w, "span", hxnav.Merge(templ.Attributes{"id": "visits"}, hxnav.BindInitial("visits", "0")), "")
		io.WriteString(w, "</header><main>")
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		io.WriteString(w, "</main><footer>")
		element(ctx, w, "a", hxnav.Merge(hxnav.Link("https://github.com/pthm/hxnav"), hxnav.Ignore()), "Source")
		_, err := io.WriteString(w, "</footer></body></html>")
		return err
	})
}

// visitsScript counts page loads in the global store.
const visitsScript = `
export function onLoad() {
	hxnav.store.set("visits", Number(hxnav.store.get("visits") || 0) + 1);
}

export function highlight() {
	hxnav.page.set("note", "highlighted");
}
`

// IndexPage lists the todos with a form to add one.
func IndexPage(todos []Todo) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		element(ctx, w, "h1", nil, "Todos")
		io.WriteString(w, "<ul id=\"todos\">")
		for _, t := range todos {
			label := t.Title
			if t.Done {
				label += " (done)"
			}
			io.WriteString(w, "<li>")
			element(ctx, w, "a", hxnav.Link("/todo/"+t.ID), label)
			io.WriteString(w, "</li>")
		}
		io.WriteString(w, "</ul>")

		open(ctx, w, "form", templ.Attributes{"id": "add", "action": "/todos", "method": "post"})
		io.WriteString(w, `<input name="title" value=""><button type="submit">Add</button></form>`)

		element(ctx, w, "button", hxnav.Merge(templ.Attributes{"id": "highlight"}, hxnav.On(hxnav.KindClick, "highlight")), "Highlight")
		element(ctx, w, "span", hxnav.Merge(templ.Attributes{"id": "note"}, hxnav.BindPage("note")), "")

		open(ctx, w, "script", hxnav.Merge(templ.Attributes{"type": "module"}, hxnav.Exports()))
		io.WriteString(w, visitsScript)
		_, err := io.WriteString(w, "</script>")
		return err
	})
}

// TodoPage shows one todo with a toggle form and a back link.
func TodoPage(t Todo) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		element(ctx, w, "h1", templ.Attributes{"id": "title"}, t.Title)
		state := "open"
		if t.Done {
			state = "done"
		}
		element(ctx, w, "p", templ.Attributes{"id": "state"}, state)
		open(ctx, w, "form", templ.Attributes{"id": "toggle", "action": "/todo/" + t.ID + "/toggle", "method": "post"})
		io.WriteString(w, `<button type="submit">Toggle</button></form>`)
		element(ctx, w, "a", hxnav.Merge(templ.Attributes{"id": "back"}, hxnav.BackLink()), "Back")

		open(ctx, w, "script", hxnav.Merge(templ.Attributes{"type": "module"}, hxnav.Exports()))
		io.WriteString(w, visitsScript)
		_, err := io.WriteString(w, "</script>")
		return err
	})
}

// AboutPage is static apart from a namespaced page script.
func AboutPage() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		element(ctx, w, "h1", nil, "About")
		element(ctx, w, "p", nil, "A demo of hxnav page navigation.")
		open(ctx, w, "script", hxnav.Namespace("about"))
		io.WriteString(w, `var about = { opened: true }; console.log("about page loaded");`)
		_, err := io.WriteString(w, "</script>")
		return err
	})
}
