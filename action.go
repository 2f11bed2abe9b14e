package hxnav

import (
	"github.com/a-h/templ"
)

// Attribute builders for templ templates. Spread them onto elements:
//
//	<a { hxnav.Link("/about")... }>About</a>
//	<span { hxnav.Bind("user.name")... }></span>
//	<button { hxnav.On(hxnav.KindClick, "addToCart")... }>Add</button>
//
// Builders return fresh maps, so results can be merged with Merge before
// spreading.

// Link returns the attributes of an anchor the runtime navigates to.
func Link(href string) templ.Attributes {
	return templ.Attributes{"href": href}
}

// Ignore marks an anchor, form or script the runtime must leave alone.
func Ignore() templ.Attributes {
	return templ.Attributes{RoleIgnore.Attr(): true}
}

// BackLink returns the attributes of an anchor that goes back in the
// runtime history instead of following its href.
func BackLink() templ.Attributes {
	return templ.Attributes{"href": "#", RoleBack.Attr(): true}
}

// Bind renders the global store value at path into the element. The first
// path segment names the entry; the rest walk into its value.
func Bind(path string) templ.Attributes {
	return bind("", path)
}

// BindInitial binds path and declares the value the entry is created with
// when the page loads.
func BindInitial(path, initial string) templ.Attributes {
	attrs := bind("", path)
	name, _ := AttrFor("", RoleStateInitial)
	attrs[name] = initial
	return attrs
}

// BindPage renders the page store value at path into the element.
func BindPage(path string) templ.Attributes {
	return bind(PagePrefix, path)
}

func bind(scope, path string) templ.Attributes {
	name, _ := AttrFor(scope, RoleState)
	return templ.Attributes{name: path}
}

// Foreach renders one copy of the element's hn-each child per item of the
// global store list at path.
func Foreach(path string) templ.Attributes {
	name, _ := AttrFor("", RoleForeach)
	return templ.Attributes{name: path}
}

// Each marks a foreach template, or a field of it when path is set.
func Each(path string) templ.Attributes {
	return templ.Attributes{RoleEach.Attr(): path}
}

// Var renders a component store value into an element inside the component.
func Var(path string) templ.Attributes {
	return templ.Attributes{RoleVar.Attr(): path}
}

// VarInitial binds a component variable with the value it is created with.
func VarInitial(path, initial string) templ.Attributes {
	return templ.Attributes{
		RoleVar.Attr():        path,
		RoleVarInitial.Attr(): initial,
	}
}

// ComponentRoot marks the root element of a component instance.
func ComponentRoot(name string) templ.Attributes {
	return templ.Attributes{RoleComponent.Attr(): name}
}

// ComponentScript marks the script of a component instance with its UUID.
// The runtime resolves the component root from it.
func ComponentScript(uuid string) templ.Attributes {
	return templ.Attributes{RoleComponentUUID.Attr(): uuid}
}

// Namespace declares the global a page script installs, so it can be
// removed when the page is left.
func Namespace(ns string) templ.Attributes {
	return templ.Attributes{RoleNamespace.Attr(): ns}
}

// Rebuild marks an element outside the mount that is replaced by its
// counterpart in every fetched page.
func Rebuild() templ.Attributes {
	return templ.Attributes{RoleRebuild.Attr(): true}
}

// Exports marks the inline script whose exported functions hooks call.
func Exports() templ.Attributes {
	return templ.Attributes{RoleExports.Attr(): true}
}

// Get renders the persisted value of key into the element.
func Get(key string) templ.Attributes {
	return templ.Attributes{RoleGet.Attr(): key}
}

// On calls the exported function fn when the element fires the event of
// kind.
func On(kind EventKind, fn string) templ.Attributes {
	return templ.Attributes{kind.Attr(): fn}
}

// Prevent stops the default action of events handled by hooks.
func Prevent() templ.Attributes {
	return templ.Attributes{RolePrevent.Attr(): true}
}

// Merge combines attribute sets; later sets win on conflicts.
//
//	<input { hxnav.Merge(hxnav.On(hxnav.KindInput, "search"), hxnav.Prevent())... }/>
func Merge(sets ...templ.Attributes) templ.Attributes {
	out := templ.Attributes{}
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}
