package dom

import (
	"context"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Event is dispatched to listeners attached to a node or to the document.
type Event struct {
	Type   string
	Target *html.Node
	// Detail carries the payload of custom events.
	Detail any
	// Key is set for keyboard events.
	Key string

	ctx       context.Context
	prevented bool
	stopped   bool
}

// NewEvent creates an event targeted at n. A nil target addresses the
// document itself.
func NewEvent(ctx context.Context, typ string, target *html.Node) *Event {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Event{Type: typ, Target: target, ctx: ctx}
}

// Context returns the context the event was dispatched with.
func (e *Event) Context() context.Context {
	return e.ctx
}

// PreventDefault cancels the default action (following a link, submitting a
// form).
func (e *Event) PreventDefault() {
	e.prevented = true
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool {
	return e.prevented
}

// StopPropagation stops the event from bubbling further.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// Listener handles a dispatched event.
type Listener func(*Event)

type listener struct {
	typ  string
	slot string
	fn   Listener
}

// AddEventListener attaches fn to n (nil for the document) for events of
// type typ.
func (d *Document) AddEventListener(n *html.Node, typ string, fn Listener) {
	d.SetEventListener(n, typ, "", fn)
}

// SetEventListener attaches fn in a named slot. A later call with the same
// node, type and slot replaces the earlier listener instead of adding a
// second one. An empty slot always adds.
func (d *Document) SetEventListener(n *html.Node, typ, slot string, fn Listener) {
	l := &listener{typ: typ, slot: slot, fn: fn}
	list := d.listenersFor(n)
	if slot != "" {
		for i, existing := range list {
			if existing.typ == typ && existing.slot == slot {
				list[i] = l
				return
			}
		}
	}
	d.setListeners(n, append(list, l))
}

// RemoveEventListener removes the listener in the given slot.
func (d *Document) RemoveEventListener(n *html.Node, typ, slot string) {
	list := d.listenersFor(n)
	out := list[:0]
	for _, l := range list {
		if l.typ == typ && l.slot == slot {
			continue
		}
		out = append(out, l)
	}
	d.setListeners(n, out)
}

// ListenerCount returns how many listeners of type typ are attached to n.
func (d *Document) ListenerCount(n *html.Node, typ string) int {
	count := 0
	for _, l := range d.listenersFor(n) {
		if l.typ == typ {
			count++
		}
	}
	return count
}

func (d *Document) listenersFor(n *html.Node) []*listener {
	if n == nil {
		return d.docLisns
	}
	return d.listeners[n]
}

func (d *Document) setListeners(n *html.Node, list []*listener) {
	if n == nil {
		d.docLisns = list
		return
	}
	if len(list) == 0 {
		delete(d.listeners, n)
		return
	}
	d.listeners[n] = list
}

// Prune drops listeners attached to nodes no longer in the live tree.
func (d *Document) Prune() {
	for n := range d.listeners {
		if !d.Contains(n) {
			delete(d.listeners, n)
		}
	}
}

// Dispatch delivers ev to its target, then to each ancestor, then to the
// document listeners. It returns false when a listener prevented the
// default action.
func (d *Document) Dispatch(ev *Event) bool {
	for n := ev.Target; n != nil && !ev.stopped; n = n.Parent {
		d.fire(n, ev)
	}
	if !ev.stopped {
		d.fire(nil, ev)
	}
	return !ev.prevented
}

func (d *Document) fire(n *html.Node, ev *Event) {
	// Listeners may attach or replace listeners while running.
	list := append([]*listener(nil), d.listenersFor(n)...)
	for _, l := range list {
		if l.typ != ev.Type {
			continue
		}
		l.fn(ev)
		if ev.stopped {
			return
		}
	}
}

// DispatchCustom fires a custom event at the document.
func (d *Document) DispatchCustom(ctx context.Context, typ string, detail any) {
	ev := NewEvent(ctx, typ, nil)
	ev.Detail = detail
	d.Dispatch(ev)
}

// Click dispatches a click on n. If no listener prevents it and n sits
// inside an anchor with an href, the default action is a hard navigation.
func (d *Document) Click(ctx context.Context, n *html.Node) bool {
	ev := NewEvent(ctx, "click", n)
	if !d.Dispatch(ev) {
		return false
	}
	a := Closest(n, func(p *html.Node) bool { return p.DataAtom == atom.A })
	if a == nil {
		return true
	}
	href, ok := Attr(a, "href")
	if !ok {
		return true
	}
	if u, err := d.Resolve(href); err == nil {
		d.Assign(ctx, u)
	}
	return true
}

// Submit dispatches a submit event on form. Without a listener preventing
// it, the default action is a hard navigation to the form action.
func (d *Document) Submit(ctx context.Context, form *html.Node) bool {
	ev := NewEvent(ctx, "submit", form)
	if !d.Dispatch(ev) {
		return false
	}
	if u, err := d.Resolve(AttrOr(form, "action", "")); err == nil {
		d.Assign(ctx, u)
	}
	return true
}

// Input sets the value of a form control and dispatches "input" then
// "change".
func (d *Document) Input(ctx context.Context, n *html.Node, value string) {
	SetValue(n, value)
	d.Dispatch(NewEvent(ctx, "input", n))
	d.Dispatch(NewEvent(ctx, "change", n))
}

// Key dispatches a keyboard event (keydown, keyup, keypress) on n.
func (d *Document) Key(ctx context.Context, n *html.Node, typ, key string) bool {
	ev := NewEvent(ctx, typ, n)
	ev.Key = key
	return d.Dispatch(ev)
}
