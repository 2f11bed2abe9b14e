package hxnav

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/script"
)

// Scripts tracks the namespaces of the page scripts that are currently
// active, so the globals they installed can be removed before the next
// page's scripts run.
//
// A script declares its namespace with hn-namespace and is expected to
// install a single global of that name:
//
//	<script hn-namespace="cart">
//	    var cart = { items: [] };
//	</script>
//
// Scripts without a namespace still run, but nothing they install is ever
// torn down.
type Scripts struct {
	rt     *Runtime
	active []string
	inline int
	// current is the live element of the script being run, nil between
	// scripts.
	current *html.Node
}

// Current returns the element of the script that is running, or nil.
func (m *Scripts) Current() *html.Node {
	return m.current
}

// Active returns the active namespaces in activation order.
func (m *Scripts) Active() []string {
	return slices.Clone(m.active)
}

// IsActive reports whether ns is active.
func (m *Scripts) IsActive(ns string) bool {
	return slices.Contains(m.active, ns)
}

// Teardown deletes the global of every active namespace from every engine
// and clears the set.
func (m *Scripts) Teardown(ctx context.Context) {
	for _, ns := range m.active {
		m.rt.log.DebugContext(ctx, "destroying script namespace", "namespace", ns)
		m.rt.engines.DeleteGlobal(ns)
	}
	m.active = nil
}

// Activate runs a script element. A script that is not part of the live
// document is copied into the mount element first; one that already is runs
// in place. Scripts marked hn-ignore, exports scripts and scripts of a type
// no engine handles are skipped. A namespace that is already active is
// skipped and logged.
func (m *Scripts) Activate(ctx context.Context, el *html.Node) error {
	if dom.HasAttr(el, RoleIgnore.Attr()) {
		m.rt.log.DebugContext(ctx, "skipping ignored script")
		return nil
	}
	if isExportsScript(el) {
		return nil
	}
	typ := dom.AttrOr(el, "type", "")
	if !m.rt.engines.Supports(typ) {
		m.rt.log.DebugContext(ctx, "skipping script of unsupported type", "type", typ)
		return nil
	}

	src := dom.AttrOr(el, "src", "")
	ns := dom.AttrOr(el, RoleNamespace.Attr(), "")
	switch {
	case ns == "":
		m.rt.log.WarnContext(ctx, "script has no namespace, it will never unload", "src", src)
	case m.IsActive(ns):
		m.rt.log.WarnContext(ctx, "script namespace is already loaded, skipping it", "namespace", ns, "src", src)
		return nil
	default:
		m.active = append(m.active, ns)
	}

	code := dom.TextContent(el)
	name := ns
	if src != "" {
		u, err := m.rt.doc.Resolve(src)
		if err != nil {
			return fmt.Errorf("script %s: %w", src, err)
		}
		body, err := m.rt.fetchScript(ctx, u)
		if err != nil {
			return fmt.Errorf("script %s: %w", src, err)
		}
		code = body
		if name == "" {
			name = u.String()
		}
	}
	if name == "" {
		m.inline++
		name = fmt.Sprintf("inline-script-%d", m.inline)
	}

	live := el
	if !m.rt.doc.Contains(el) {
		live = dom.Clone(el, true)
		if parent := m.rt.mountElement(); parent != nil {
			dom.Append(parent, live)
		} else if body := m.rt.doc.Body(); body != nil {
			dom.Append(body, live)
		}
	}

	prev := m.current
	m.current = live
	defer func() { m.current = prev }()

	m.rt.log.InfoContext(ctx, "running script", "script", name, "namespace", ns)
	return m.rt.engines.Run(ctx, script.Source{
		Type:      typ,
		Name:      name,
		Namespace: ns,
		Code:      code,
	})
}

// isExportsScript reports whether el is the page's exports script: an
// inline script typed module or marked hn-exports.
func isExportsScript(el *html.Node) bool {
	if dom.HasAttr(el, "src") {
		return false
	}
	if dom.HasAttr(el, RoleExports.Attr()) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(dom.AttrOr(el, "type", "")), "module")
}

// findExports returns the exports script under top. A page should carry at
// most one; extra ones are logged and ignored.
func (m *Scripts) findExports(ctx context.Context, top *html.Node) *html.Node {
	var found []*html.Node
	scripts, err := dom.Select(top, "script")
	if err != nil {
		return nil
	}
	for _, el := range scripts {
		if isExportsScript(el) && !dom.HasAttr(el, RoleIgnore.Attr()) {
			found = append(found, el)
		}
	}
	if len(found) == 0 {
		return nil
	}
	if len(found) > 1 {
		m.rt.log.WarnContext(ctx, "page has more than one exports script, using the first", "count", len(found))
	}
	return found[0]
}
