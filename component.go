package hxnav

import (
	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
)

// Component is a DOM subtree marked with hn-component and
// hn-component-uuid. It owns one Store scoped to its UUID, created on first
// access. Elements inside the subtree bind to that store with hn-var:
//
//	<div hn-component="counter" hn-component-uuid="c1">
//	    <span hn-var="count"></span>
//	    <span hn-var="user.name"></span>
//	</div>
//
// Bindings of components nested inside this one belong to the nested
// component.
type Component struct {
	UUID string
	Name string
	Root *html.Node

	rt    *Runtime
	store *Store
}

// Store returns the component's store, created on first use with the
// runtime's store options.
func (c *Component) Store() *Store {
	if c.store == nil {
		c.store = NewStore(c.rt, c.UUID, StoreOptions{
			CreateOnLoad: c.rt.storeOpts.CreateOnLoad,
			RefreshOnSet: c.rt.storeOpts.RefreshOnSet,
		})
	}
	return c.store
}

// vars returns the hn-var elements bound to this component.
func (c *Component) vars() []*html.Node {
	attr := RoleVar.Attr()
	rootAttr := RoleComponent.Attr()
	if !dom.HasAttr(c.Root, rootAttr) {
		rootAttr = RoleComponentUUID.Attr()
	}
	var out []*html.Node
	dom.Walk(c.Root, func(n *html.Node) {
		if n.Type != html.ElementNode || !dom.HasAttr(n, attr) {
			return
		}
		if dom.ClosestWithAttr(n, rootAttr) == c.Root {
			out = append(out, n)
		}
	})
	return out
}
