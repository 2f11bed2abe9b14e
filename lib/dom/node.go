package dom

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr returns the value of the named attribute and whether it is present.
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when absent.
func AttrOr(n *html.Node, name, def string) string {
	if v, ok := Attr(n, name); ok {
		return v
	}
	return def
}

// HasAttr reports whether the attribute is present, whatever its value.
func HasAttr(n *html.Node, name string) bool {
	_, ok := Attr(n, name)
	return ok
}

// SetAttr sets or adds an attribute.
func SetAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr removes an attribute if present.
func RemoveAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Tag returns the lower-case tag name of an element, or "" for other nodes.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return n.Data
}

// IsElement reports whether n is an element with the given atom.
func IsElement(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

// TextContent returns the concatenated text of n and its descendants.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	return htmlquery.InnerText(n)
}

// SetText replaces the children of n with a single text node.
func SetText(n *html.Node, text string) {
	RemoveChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&sb, c)
	}
	return sb.String()
}

// OuterHTML renders n itself.
func OuterHTML(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

// SetInnerHTML parses src in the context of n and replaces its children.
func SetInnerHTML(n *html.Node, src string) error {
	nodes, err := html.ParseFragment(strings.NewReader(src), n)
	if err != nil {
		return err
	}
	RemoveChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// ReplaceWith puts replacement where old is and detaches old. replacement is
// detached from its own tree first, so it may come from a parsed page.
func ReplaceWith(old, replacement *html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	Detach(replacement)
	parent.InsertBefore(replacement, old)
	parent.RemoveChild(old)
}

// Append detaches child from wherever it is and appends it to parent.
func Append(parent, child *html.Node) {
	Detach(child)
	parent.AppendChild(child)
}

// Clone copies n. A deep clone copies the whole subtree.
func Clone(n *html.Node, deep bool) *html.Node {
	if n == nil {
		return nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      make([]html.Attribute, len(n.Attr)),
	}
	copy(c.Attr, n.Attr)
	if deep {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			c.AppendChild(Clone(child, true))
		}
	}
	return c
}

// CreateElement returns a detached element.
func CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, DataAtom: atom.Lookup([]byte(tag)), Data: tag}
}

// IsAncestor reports whether ancestor is n or one of its ancestors.
func IsAncestor(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Closest returns the nearest node, starting at n itself, for which match
// returns true.
func Closest(n *html.Node, match func(*html.Node) bool) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && match(p) {
			return p
		}
	}
	return nil
}

// ClosestWithAttr returns the nearest element, starting at n, carrying name.
func ClosestWithAttr(n *html.Node, name string) *html.Node {
	return Closest(n, func(p *html.Node) bool { return HasAttr(p, name) })
}

// Value returns the form value of an input, select or textarea element.
func Value(n *html.Node) string {
	switch {
	case IsElement(n, atom.Textarea):
		return TextContent(n)
	case IsElement(n, atom.Select):
		var first *html.Node
		var selected *html.Node
		walk(n, func(c *html.Node) {
			if IsElement(c, atom.Option) {
				if first == nil {
					first = c
				}
				if selected == nil && HasAttr(c, "selected") {
					selected = c
				}
			}
		})
		if selected == nil {
			selected = first
		}
		if selected == nil {
			return ""
		}
		if v, ok := Attr(selected, "value"); ok {
			return v
		}
		return strings.TrimSpace(TextContent(selected))
	default:
		return AttrOr(n, "value", "")
	}
}

// SetValue sets the form value of an input, select or textarea element.
func SetValue(n *html.Node, value string) {
	switch {
	case IsElement(n, atom.Textarea):
		SetText(n, value)
	case IsElement(n, atom.Select):
		walk(n, func(c *html.Node) {
			if !IsElement(c, atom.Option) {
				return
			}
			v, ok := Attr(c, "value")
			if !ok {
				v = strings.TrimSpace(TextContent(c))
			}
			if v == value {
				SetAttr(c, "selected", "")
			} else {
				RemoveAttr(c, "selected")
			}
		})
	default:
		SetAttr(n, "value", value)
	}
}

func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		fn(c)
		walk(c, fn)
	}
}

// Walk calls fn for every descendant of n in document order.
func Walk(n *html.Node, fn func(*html.Node)) {
	walk(n, fn)
}
