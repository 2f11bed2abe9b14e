package hxnav

import (
	"context"
	"errors"

	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/script"
)

// EventKind is a DOM event a page-script export can be hooked to with an
// hn-on<event> attribute.
type EventKind int

const (
	KindChange EventKind = iota
	KindClick
	KindInput
	KindKeyDown
	KindKeyUp
	KindKeyPress
	KindSubmit
)

type hookBinding struct {
	event string
	role  Role
}

// hookTable is the dispatch table: one binding per kind.
var hookTable = map[EventKind]hookBinding{
	KindChange:   {"change", RoleOnChange},
	KindClick:    {"click", RoleOnClick},
	KindInput:    {"input", RoleOnInput},
	KindKeyDown:  {"keydown", RoleOnKeyDown},
	KindKeyUp:    {"keyup", RoleOnKeyUp},
	KindKeyPress: {"keypress", RoleOnKeyPress},
	KindSubmit:   {"submit", RoleOnSubmit},
}

// Kinds lists every kind in declaration order.
func Kinds() []EventKind {
	return []EventKind{KindChange, KindClick, KindInput, KindKeyDown, KindKeyUp, KindKeyPress, KindSubmit}
}

// Event returns the DOM event name of k.
func (k EventKind) Event() string {
	return hookTable[k].event
}

// Attr returns the hook attribute of k.
func (k EventKind) Attr() string {
	return hookTable[k].role.Attr()
}

func (k EventKind) String() string {
	if b, ok := hookTable[k]; ok {
		return b.event
	}
	return "unknown"
}

// Classify returns the kinds el has hooks for.
func Classify(el *html.Node) []EventKind {
	var kinds []EventKind
	for _, k := range Kinds() {
		if dom.HasAttr(el, k.Attr()) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

const hookSlot = "hxnav.hook"

// Hooks binds hn-on<event> attributes to the current page's exports.
type Hooks struct {
	rt *Runtime
}

// Bind attaches a listener to every hooked element in the document. The
// export name is read when the event fires, and the export table is the
// one current at that time. Binding twice replaces the earlier listeners.
func (h *Hooks) Bind(ctx context.Context) int {
	bound := 0
	for _, k := range Kinds() {
		for _, el := range dom.WithAttr(h.rt.doc.Root(), k.Attr()) {
			h.rt.doc.SetEventListener(el, k.Event(), hookSlot, h.handler(k, el))
			bound++
		}
	}
	h.rt.log.DebugContext(ctx, "bound event hooks", "count", bound)
	return bound
}

func (h *Hooks) handler(k EventKind, el *html.Node) dom.Listener {
	return func(ev *dom.Event) {
		if dom.HasAttr(el, RolePrevent.Attr()) {
			ev.PreventDefault()
		}
		name := dom.AttrOr(el, k.Attr(), "")
		if name == "" {
			return
		}
		if err := h.Invoke(ev.Context(), name, ev); err != nil {
			if errors.Is(err, script.ErrExportNotFound) {
				h.rt.log.WarnContext(ev.Context(), "hook function not found", "function", name, "event", k.String())
				return
			}
			h.rt.log.ErrorContext(ev.Context(), "hook function failed", "function", name, "event", k.String(), "error", err)
		}
	}
}

// Invoke calls the export name with the event.
func (h *Hooks) Invoke(ctx context.Context, name string, ev *dom.Event) error {
	_, err := h.rt.exports.Call(ctx, name, ev)
	return err
}
