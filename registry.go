package hxnav

import (
	"fmt"
	"slices"
	"sync"

	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
)

// Registry caches the components of the current page by UUID.
//
// A component is resolved from any element carrying its UUID (the root
// itself or a script inside it) and cached until the next navigation. Stores
// scoped to a component find it again through GetByUUID rather than holding
// a pointer, so a Component owns its Store and never the other way round.
type Registry struct {
	mu         sync.RWMutex
	rt         *Runtime
	components map[string]*Component
}

// NewRegistry creates an empty registry for rt.
func NewRegistry(rt *Runtime) *Registry {
	return &Registry{
		rt:         rt,
		components: make(map[string]*Component),
	}
}

// Resolve returns the component el belongs to, creating and caching it on
// first use. el must carry the component UUID attribute.
func (reg *Registry) Resolve(el *html.Node) (*Component, error) {
	uuid, ok := dom.Attr(el, RoleComponentUUID.Attr())
	if !ok || uuid == "" {
		return nil, fmt.Errorf("%w: element has no %s", ErrComponentNotFound, RoleComponentUUID.Attr())
	}

	reg.mu.RLock()
	comp, cached := reg.components[uuid]
	reg.mu.RUnlock()
	if cached {
		return comp, nil
	}

	root := reg.findRoot(uuid)
	if root == nil {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, uuid)
	}
	comp = &Component{
		UUID: uuid,
		Name: dom.AttrOr(root, RoleComponent.Attr(), ""),
		Root: root,
		rt:   reg.rt,
	}

	reg.mu.Lock()
	if existing, ok := reg.components[uuid]; ok {
		comp = existing
	} else {
		reg.components[uuid] = comp
	}
	reg.mu.Unlock()
	return comp, nil
}

// findRoot locates the live element for uuid, preferring one marked as a
// component root.
func (reg *Registry) findRoot(uuid string) *html.Node {
	candidates := dom.WithAttrValue(reg.rt.doc.Root(), RoleComponentUUID.Attr(), uuid)
	for _, n := range candidates {
		if dom.HasAttr(n, RoleComponent.Attr()) {
			return n
		}
	}
	for _, n := range candidates {
		if dom.Tag(n) != "script" {
			return n
		}
	}
	return nil
}

// GetByUUID returns an already resolved component. It never scans the
// document.
func (reg *Registry) GetByUUID(uuid string) (*Component, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	comp, ok := reg.components[uuid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, uuid)
	}
	return comp, nil
}

// Lookup returns the component with uuid, resolving it from the live
// document when it is not cached yet.
func (reg *Registry) Lookup(uuid string) (*Component, error) {
	if comp, err := reg.GetByUUID(uuid); err == nil {
		return comp, nil
	}
	if uuid == "" {
		return nil, fmt.Errorf("%w: empty uuid", ErrComponentNotFound)
	}
	els := dom.WithAttrValue(reg.rt.doc.Root(), RoleComponentUUID.Attr(), uuid)
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, uuid)
	}
	return reg.Resolve(els[0])
}

// Components returns the cached components ordered by UUID.
func (reg *Registry) Components() []*Component {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]*Component, 0, len(reg.components))
	for _, c := range reg.components {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Component) int {
		if a.UUID < b.UUID {
			return -1
		}
		if a.UUID > b.UUID {
			return 1
		}
		return 0
	})
	return out
}

// Reset drops every cached component.
func (reg *Registry) Reset() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.components = make(map[string]*Component)
}

// Refresh resets the cache, then resolves every component root in the live
// document and creates its store entries from its hn-var bindings.
func (reg *Registry) Refresh() {
	reg.Reset()

	for _, el := range dom.WithAttr(reg.rt.doc.Root(), RoleComponent.Attr()) {
		if !dom.HasAttr(el, RoleComponentUUID.Attr()) {
			reg.rt.log.WarnContext(reg.rt.context(), "component has no uuid",
				"component", dom.AttrOr(el, RoleComponent.Attr(), ""))
			continue
		}
		comp, err := reg.Resolve(el)
		if err != nil {
			reg.rt.log.WarnContext(reg.rt.context(), "could not resolve component", "error", err)
			continue
		}
		comp.Store().CreateOnLoad()
	}
}
