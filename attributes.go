package hxnav

// Role is the semantic meaning of a declarative attribute.
type Role int

const (
	RoleIgnore Role = iota
	RoleBack
	RoleNamespace
	RoleRebuild
	RoleExports
	RoleState
	RoleStateValue
	RoleStateInitial
	RoleVar
	RoleVarInitial
	RoleGet
	RoleOnChange
	RoleOnClick
	RoleOnInput
	RoleOnKeyDown
	RoleOnKeyUp
	RoleOnKeyPress
	RoleOnSubmit
	RolePrevent
	RoleForeach
	RoleEach
	RoleItem
	RoleComponent
	RoleComponentUUID
)

var attributes = map[Role]string{
	RoleIgnore:        "hn-ignore",
	RoleBack:          "hn-back",
	RoleNamespace:     "hn-namespace",
	RoleRebuild:       "hn-rebuild",
	RoleExports:       "hn-exports",
	RoleState:         "hn-store",
	RoleStateValue:    "hn-store-value",
	RoleStateInitial:  "hn-store-initial",
	RoleVar:           "hn-var",
	RoleVarInitial:    "hn-var-initial",
	RoleGet:           "hn-get",
	RoleOnChange:      "hn-onchange",
	RoleOnClick:       "hn-onclick",
	RoleOnInput:       "hn-oninput",
	RoleOnKeyDown:     "hn-onkeydown",
	RoleOnKeyUp:       "hn-onkeyup",
	RoleOnKeyPress:    "hn-onkeypress",
	RoleOnSubmit:      "hn-onsubmit",
	RolePrevent:       "hn-prevent",
	RoleForeach:       "hn-foreach",
	RoleEach:          "hn-each",
	RoleItem:          "hn-item",
	RoleComponent:     "hn-component",
	RoleComponentUUID: "hn-component-uuid",
}

// Page-scoped stores bind to their own attribute names so a page value and
// a global value with the same key never collide.
var pageAttributes = map[Role]string{
	RoleState:        "hn-page-store",
	RoleStateValue:   "hn-page-store-value",
	RoleStateInitial: "hn-page-store-initial",
	RoleForeach:      "hn-page-foreach",
}

// PagePrefix is the scope prefix of the per-page store.
const PagePrefix = "page"

// Attr returns the attribute name for role in the global scope.
func (r Role) Attr() string {
	return attributes[r]
}

// AttrFor returns the attribute name for role under a store scope prefix.
// The empty prefix is the global scope and "page" the page scope. Any other
// prefix has no mapping and reports false; callers treat such a prefix as a
// component UUID.
func AttrFor(prefix string, role Role) (string, bool) {
	switch prefix {
	case "":
		name, ok := attributes[role]
		return name, ok
	case PagePrefix:
		if name, ok := pageAttributes[role]; ok {
			return name, true
		}
		// Roles without a page variant share the global name.
		name, ok := attributes[role]
		return name, ok
	}
	return "", false
}
