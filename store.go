package hxnav

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
)

// EventStoreUpdate is dispatched at the document every time an entry
// renders. Its detail is a StoreChange.
const EventStoreUpdate = "hxnav:store-update"

// StoreChange is the detail of EventStoreUpdate.
type StoreChange struct {
	Key    string
	Value  any
	Prefix string
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// CreateOnLoad creates entries for binding attributes found in the
	// document when the page becomes ready.
	CreateOnLoad bool
	// RefreshOnSet re-renders bound elements synchronously on Set.
	RefreshOnSet bool
}

// DefaultStoreOptions enables both behaviors.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{CreateOnLoad: true, RefreshOnSet: true}
}

// StoreEntry is a snapshot of one entry.
type StoreEntry struct {
	Key    string
	Value  any
	Prefix string
	// Elements are the elements the entry rendered to last.
	Elements []*html.Node
}

type entry struct {
	key      string
	value    any
	elements []*html.Node
	lists    []*html.Node
}

// Store is a keyed collection of values bound to the elements that display
// them.
//
// The prefix selects the attribute namespace: "" binds hn-store elements,
// "page" binds hn-page-store elements. Any other prefix is a component UUID
// and binds the hn-var elements of that component, found through the
// runtime's component registry.
//
// Lookup misses never fail: they log a warning and behave as an undefined
// value.
type Store struct {
	rt      *Runtime
	prefix  string
	opts    StoreOptions
	entries map[string]*entry
}

// NewStore creates a store scoped to prefix.
func NewStore(rt *Runtime, prefix string, opts StoreOptions) *Store {
	return &Store{
		rt:      rt,
		prefix:  prefix,
		opts:    opts,
		entries: make(map[string]*entry),
	}
}

// Prefix returns the store's scope prefix.
func (s *Store) Prefix() string {
	return s.prefix
}

// Create (re)creates key with value and renders its bound elements.
func (s *Store) Create(key string, value any) {
	e := &entry{key: key, value: value}
	s.entries[key] = e
	s.find(e)
	s.render(e)
}

// Set assigns value to key. Setting a key that was never created creates
// it, with a warning.
func (s *Store) Set(key string, value any) {
	e, ok := s.entries[key]
	if !ok {
		s.rt.log.WarnContext(s.rt.context(), "store key does not exist, creating it",
			"key", key, "prefix", s.prefix)
		s.Create(key, value)
		return
	}
	e.value = value
	if s.opts.RefreshOnSet {
		s.render(e)
	}
}

// Get returns the value of key. Missing keys log a warning and return
// nil, false.
func (s *Store) Get(key string) (any, bool) {
	e, ok := s.entries[key]
	if !ok {
		s.rt.log.WarnContext(s.rt.context(), "store key does not exist, returning undefined",
			"key", key, "prefix", s.prefix)
		return nil, false
	}
	return e.value, true
}

// Delete removes key. Deleting a missing key logs a warning.
func (s *Store) Delete(key string) {
	if _, ok := s.entries[key]; !ok {
		s.rt.log.WarnContext(s.rt.context(), "store key does not exist, cannot delete it",
			"key", key, "prefix", s.prefix)
		return
	}
	delete(s.entries, key)
}

// Keys returns the entry keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Entry returns a snapshot of key.
func (s *Store) Entry(key string) (StoreEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return StoreEntry{}, false
	}
	return StoreEntry{
		Key:      e.key,
		Value:    e.value,
		Prefix:   s.prefix,
		Elements: append([]*html.Node(nil), e.elements...),
	}, true
}

// Refresh re-renders key against its cached elements.
func (s *Store) Refresh(key string) {
	if e, ok := s.entries[key]; ok {
		s.render(e)
	}
}

// ReloadAll re-resolves every entry's elements against the live document
// and renders them. A navigation discards the elements entries were bound
// to, so it runs after every page swap.
func (s *Store) ReloadAll() {
	for _, key := range s.Keys() {
		e := s.entries[key]
		s.find(e)
		s.render(e)
		s.rt.log.DebugContext(s.rt.context(), "reloaded store entry", "key", key, "prefix", s.prefix)
	}
}

// CreateOnLoad creates an entry for every binding found in the document
// that has none yet, using the initial-value attribute (or "") as value.
// It does nothing unless the store was configured with CreateOnLoad.
func (s *Store) CreateOnLoad() {
	if !s.opts.CreateOnLoad {
		return
	}
	bindAttr, initAttr, ok := s.attrs()
	var elements []*html.Node
	if ok {
		elements = dom.WithAttr(s.rt.doc.Root(), bindAttr)
	} else {
		comp, err := s.rt.components.GetByUUID(s.prefix)
		if err != nil {
			s.rt.log.WarnContext(s.rt.context(), "component store without component", "uuid", s.prefix)
			return
		}
		bindAttr, initAttr = RoleVar.Attr(), RoleVarInitial.Attr()
		elements = comp.vars()
	}
	for _, el := range elements {
		name := entryName(trimVarPrefix(dom.AttrOr(el, bindAttr, "")))
		if name == "" {
			continue
		}
		if _, exists := s.entries[name]; exists {
			continue
		}
		s.rt.log.DebugContext(s.rt.context(), "creating store entry from page load",
			"key", name, "prefix", s.prefix)
		s.Create(name, dom.AttrOr(el, initAttr, ""))
	}
}

// attrs returns the binding and initial-value attributes of the store's
// scope, false for component scopes.
func (s *Store) attrs() (bind, initial string, ok bool) {
	bind, ok = AttrFor(s.prefix, RoleState)
	if !ok {
		return "", "", false
	}
	initial, _ = AttrFor(s.prefix, RoleStateInitial)
	return bind, initial, true
}

func (s *Store) find(e *entry) {
	e.elements, e.lists = nil, nil
	if bind, _, ok := s.attrs(); ok {
		root := s.rt.doc.Root()
		e.elements = dom.WithAttrPath(root, bind, e.key)
		if list, ok := AttrFor(s.prefix, RoleForeach); ok {
			e.lists = dom.WithAttrPath(root, list, e.key)
		}
		return
	}

	comp, err := s.rt.components.GetByUUID(s.prefix)
	if err != nil {
		s.rt.log.WarnContext(s.rt.context(), "could not find component for store", "uuid", s.prefix)
		return
	}
	for _, el := range comp.vars() {
		path := trimVarPrefix(dom.AttrOr(el, RoleVar.Attr(), ""))
		if matchesKey(path, e.key) {
			e.elements = append(e.elements, el)
		}
	}
}

func (s *Store) render(e *entry) {
	s.rt.doc.DispatchCustom(s.rt.context(), EventStoreUpdate, StoreChange{
		Key:    e.key,
		Value:  e.value,
		Prefix: s.prefix,
	})

	bind, _, scoped := s.attrs()
	if !scoped {
		bind = RoleVar.Attr()
	}
	valueAttr, _ := AttrFor(s.prefix, RoleStateValue)

	for _, el := range e.elements {
		path := trimVarPrefix(dom.AttrOr(el, bind, ""))
		if scoped {
			if sub, ok := dom.Attr(el, valueAttr); ok {
				if sub == "" {
					s.rt.log.WarnContext(s.rt.context(), "no value requested by element", "key", e.key)
					continue
				}
				path += "." + sub
			}
		}
		dom.SetText(el, s.resolve(e, path))
	}

	if len(e.lists) > 0 {
		listAttr, _ := AttrFor(s.prefix, RoleForeach)
		for _, el := range e.lists {
			s.renderList(e, el, dom.AttrOr(el, listAttr, ""))
		}
	}
}

// resolve renders the value at path, whose first segment names the entry.
func (s *Store) resolve(e *entry, path string) string {
	segments := strings.Split(path, ".")[1:]
	v, ok := lookup(e.value, segments)
	if !ok {
		s.rt.log.WarnContext(s.rt.context(), "value does not exist on store entry",
			"path", path, "key", e.key, "prefix", s.prefix)
		return formatValue(nil)
	}
	return formatValue(v)
}

// renderList renders a foreach element: its first hn-each child is the
// template, cloned once per item of the list value. Clones carry hn-item
// so the next render can remove them.
func (s *Store) renderList(e *entry, el *html.Node, path string) {
	v, ok := lookup(e.value, strings.Split(path, ".")[1:])
	if !ok {
		s.rt.log.WarnContext(s.rt.context(), "value does not exist on store entry", "path", path, "key", e.key)
		v = nil
	}
	items, isList := listItems(v)
	if v != nil && !isList {
		s.rt.log.WarnContext(s.rt.context(), "foreach value is not a list", "path", path, "key", e.key)
	}

	var tmpl *html.Node
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case dom.HasAttr(c, RoleItem.Attr()):
			dom.Detach(c)
		case tmpl == nil && dom.HasAttr(c, RoleEach.Attr()):
			tmpl = c
		}
		c = next
	}
	if tmpl == nil {
		s.rt.log.WarnContext(s.rt.context(), "foreach element has no template", "path", path)
		return
	}
	dom.SetAttr(tmpl, "hidden", "")

	for i, item := range items {
		clone := dom.Clone(tmpl, true)
		dom.RemoveAttr(clone, "hidden")
		dom.SetAttr(clone, RoleItem.Attr(), strconv.Itoa(i))
		fillItem(clone, item)
		dom.Append(el, clone)
	}
}

// fillItem renders the leaf hn-each elements of a cloned template. Their
// value is a dotted path into the item; empty renders the item itself.
func fillItem(clone *html.Node, item any) {
	each := RoleEach.Attr()
	var targets []*html.Node
	if dom.HasAttr(clone, each) {
		targets = append(targets, clone)
	}
	dom.Walk(clone, func(n *html.Node) {
		if dom.HasAttr(n, each) {
			targets = append(targets, n)
		}
	})
	for _, n := range targets {
		leaf := true
		for _, other := range targets {
			if other != n && dom.IsAncestor(n, other) {
				leaf = false
				break
			}
		}
		if !leaf {
			continue
		}
		path := dom.AttrOr(n, each, "")
		var segments []string
		if path != "" {
			segments = strings.Split(path, ".")
		}
		v, _ := lookup(item, segments)
		dom.SetText(n, formatValue(v))
	}
}

func listItems(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// matchesKey reports whether a binding path refers to key: the path is the
// key itself or starts with the key followed by a dot.
func matchesKey(path, key string) bool {
	return path == key || strings.HasPrefix(path, key+".")
}

// entryName returns the entry a binding path refers to.
func entryName(path string) string {
	name, _, _ := strings.Cut(path, ".")
	return name
}

// trimVarPrefix strips the "&." and "@" markers component bindings may
// carry.
func trimVarPrefix(path string) string {
	if rest, ok := strings.CutPrefix(path, "&."); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(path, "@"); ok {
		return rest
	}
	return path
}

// lookup walks path through maps, slices and structs.
func lookup(v any, path []string) (any, bool) {
	for _, seg := range path {
		next, ok := child(v, seg)
		if !ok {
			return nil, false
		}
		v = next
	}
	return v, true
}

func child(v any, seg string) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		next, ok := t[seg]
		return next, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(t) {
			return nil, false
		}
		return t[i], true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		next := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
		if !next.IsValid() {
			return nil, false
		}
		return next.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Struct:
		f := rv.FieldByNameFunc(func(name string) bool { return strings.EqualFold(name, seg) })
		if !f.IsValid() || !f.CanInterface() {
			return nil, false
		}
		return f.Interface(), true
	}
	return nil, false
}

// formatValue renders v as element text. nil renders as "undefined" and
// composite values as JSON.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "undefined"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t)
	case fmt.Stringer:
		return t.String()
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
