package hxnav

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pthm/hxnav/lib/dom"
)

// LinkKind is how the interceptor treats an anchor.
type LinkKind int

const (
	// LinkNavigable anchors navigate through the runtime.
	LinkNavigable LinkKind = iota
	// LinkIgnored anchors carry hn-ignore and keep their default behavior.
	LinkIgnored
	// LinkBack anchors carry hn-back and go back in the runtime history.
	LinkBack
	// LinkRejected anchors do not point at a page hxnav can load. They are
	// marked disabled and clicking them does nothing.
	LinkRejected
)

func (k LinkKind) String() string {
	switch k {
	case LinkNavigable:
		return "navigable"
	case LinkIgnored:
		return "ignored"
	case LinkBack:
		return "back"
	case LinkRejected:
		return "rejected"
	}
	return "unknown"
}

const (
	linkSlot = "hxnav.link"
	formSlot = "hxnav.form"
)

// Interceptor routes anchor clicks and form submissions through the
// runtime instead of letting them load a new document.
type Interceptor struct {
	rt *Runtime
}

// ClassifyLink decides how the anchor a is handled. A link is navigable
// when its href resolves to an http(s) URL other than the current page.
func (i *Interceptor) ClassifyLink(a *html.Node) LinkKind {
	if dom.HasAttr(a, RoleIgnore.Attr()) {
		return LinkIgnored
	}
	if dom.HasAttr(a, RoleBack.Attr()) {
		return LinkBack
	}
	href, ok := dom.Attr(a, "href")
	if !ok {
		return LinkRejected
	}
	u, err := i.rt.doc.Resolve(href)
	if err != nil {
		return LinkRejected
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return LinkRejected
	}
	if loc := i.rt.doc.Location(); loc != nil && u.String() == loc.String() {
		return LinkRejected
	}
	return LinkNavigable
}

// ScanResult counts what a Scan did.
type ScanResult struct {
	Links map[LinkKind]int
	Forms int
}

// Scan attaches handlers to every anchor and form of the document. Handlers
// live in fixed listener slots, so scanning again replaces them instead of
// stacking a second handler.
func (i *Interceptor) Scan(ctx context.Context) ScanResult {
	res := ScanResult{Links: make(map[LinkKind]int)}
	doc := i.rt.doc

	anchors, _ := dom.Select(doc.Root(), "a")
	for _, a := range anchors {
		kind := i.ClassifyLink(a)
		res.Links[kind]++

		switch kind {
		case LinkNavigable:
			if dom.AttrOr(a, "disabled", "") == "true" {
				dom.RemoveAttr(a, "disabled")
			}
			doc.SetEventListener(a, "click", linkSlot, i.navigateHandler(a))
			i.rt.log.DebugContext(ctx, "configured link", "href", dom.AttrOr(a, "href", ""))
		case LinkBack:
			doc.SetEventListener(a, "click", linkSlot, func(ev *dom.Event) {
				ev.PreventDefault()
				i.rt.Back(ev.Context())
			})
		case LinkRejected:
			dom.SetAttr(a, "disabled", "true")
			doc.SetEventListener(a, "click", linkSlot, func(ev *dom.Event) {
				ev.PreventDefault()
				i.rt.log.WarnContext(ev.Context(), "link disabled as it failed validation", "href", dom.AttrOr(a, "href", ""))
			})
		case LinkIgnored:
			doc.RemoveEventListener(a, "click", linkSlot)
		}
	}

	forms, _ := dom.Select(doc.Root(), "form")
	for _, form := range forms {
		if !dom.HasAttr(form, "action") || dom.HasAttr(form, RoleIgnore.Attr()) {
			doc.RemoveEventListener(form, "submit", formSlot)
			continue
		}
		doc.SetEventListener(form, "submit", formSlot, i.submitHandler(form))
		res.Forms++
	}

	i.rt.log.DebugContext(ctx, "scanned links and forms",
		"navigable", res.Links[LinkNavigable],
		"rejected", res.Links[LinkRejected],
		"forms", res.Forms)
	return res
}

func (i *Interceptor) navigateHandler(a *html.Node) dom.Listener {
	return func(ev *dom.Event) {
		ev.PreventDefault()
		i.rt.Go(ev.Context(), dom.AttrOr(a, "href", ""))
	}
}

func (i *Interceptor) submitHandler(form *html.Node) dom.Listener {
	return func(ev *dom.Event) {
		ev.PreventDefault()
		ctx := ev.Context()
		target, err := i.Submit(ctx, form)
		if err != nil {
			i.rt.log.ErrorContext(ctx, "form submission failed", "action", dom.AttrOr(form, "action", ""), "error", err)
			return
		}
		i.rt.Go(ctx, target.String())
	}
}

// Submit sends the form as JSON to its action with its method (POST when
// unset) and returns the URL the response was served from. A response
// redirecting to another origin returns the redirect target.
func (i *Interceptor) Submit(ctx context.Context, form *html.Node) (*url.URL, error) {
	action, err := i.rt.doc.Resolve(dom.AttrOr(form, "action", ""))
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(strings.TrimSpace(dom.AttrOr(form, "method", "")))
	if method == "" {
		method = http.MethodPost
	}

	body, err := json.Marshal(SerializeForm(form))
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, action.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	i.rt.setHeaders(req)

	resp, err := i.rt.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var away *leftOrigin
	if errors.As(redirectedAway(resp), &away) {
		return away.target, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: %d", ErrFetchStatus, method, action, resp.StatusCode)
	}
	return resp.Request.URL, nil
}

// SerializeForm collects the named controls of form into a flat object.
// Checkboxes and radios count only when checked; disabled controls and
// buttons are skipped.
func SerializeForm(form *html.Node) map[string]string {
	data := make(map[string]string)
	dom.Walk(form, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		name := dom.AttrOr(n, "name", "")
		if name == "" || dom.HasAttr(n, "disabled") {
			return
		}
		switch n.DataAtom {
		case atom.Input:
			switch strings.ToLower(dom.AttrOr(n, "type", "text")) {
			case "submit", "button", "reset", "image", "file":
				return
			case "checkbox", "radio":
				if !dom.HasAttr(n, "checked") {
					return
				}
				data[name] = dom.AttrOr(n, "value", "on")
				return
			}
			data[name] = dom.Value(n)
		case atom.Select, atom.Textarea:
			data[name] = dom.Value(n)
		}
	})
	return data
}
