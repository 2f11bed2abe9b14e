// Package dom provides the headless document hxnav operates on.
//
// A Document owns an x/net/html tree, the location it was loaded from, a
// session history and the event listeners attached to its nodes. Nodes are
// plain *html.Node values; the package offers helpers for querying,
// mutating and dispatching events on them rather than wrapping every node.
//
// Queries are XPath (via htmlquery). Select accepts a small CSS subset
// (tag, #id, .class, [attr], [attr=value], descendant combinator) and
// translates it to XPath.
package dom

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// AssignFunc performs a hard navigation: the equivalent of the browser
// abandoning the current document and loading u from scratch.
type AssignFunc func(ctx context.Context, u *url.URL)

// Document is a headless HTML document.
//
// Document is not safe for concurrent use. Callers serialize access the way
// a browser's event loop would: one task mutates the tree at a time.
type Document struct {
	root      *html.Node
	location  *url.URL
	history   *History
	listeners map[*html.Node][]*listener
	docLisns  []*listener

	// OnAssign is invoked by Assign. When nil, Assign only moves the
	// location, which models leaving the page without loading anything.
	OnAssign AssignFunc
}

// New wraps an already parsed tree. root must be a DocumentNode.
func New(root *html.Node, location *url.URL) *Document {
	d := &Document{
		root:      root,
		location:  location,
		listeners: make(map[*html.Node][]*listener),
	}
	d.history = newHistory(d)
	if location != nil {
		d.history.entries = []string{location.String()}
	}
	return d
}

// Parse reads a full HTML document.
func Parse(r io.Reader, location *url.URL) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return New(root, location), nil
}

// ParseString parses src as a document located at rawURL.
func ParseString(src, rawURL string) (*Document, error) {
	var loc *url.URL
	if rawURL != "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("dom: location: %w", err)
		}
		loc = u
	}
	return Parse(strings.NewReader(src), loc)
}

// ParseTree parses src into a detached document tree. The fetched page of a
// navigation lives in such a tree until its regions are moved into the live
// document.
func ParseTree(r io.Reader) (*html.Node, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return root, nil
}

// Root returns the DocumentNode.
func (d *Document) Root() *html.Node {
	return d.root
}

// Location returns the current document URL. It may be nil for documents
// created without one.
func (d *Document) Location() *url.URL {
	return d.location
}

// SetLocation moves the document URL without touching history.
func (d *Document) SetLocation(u *url.URL) {
	d.location = u
}

// History returns the document's session history.
func (d *Document) History() *History {
	return d.history
}

// Load replaces the whole tree, as a full page load does. Every listener is
// dropped because the nodes they were attached to are gone.
func (d *Document) Load(root *html.Node, location *url.URL) {
	d.root = root
	d.location = location
	d.listeners = make(map[*html.Node][]*listener)
	d.docLisns = nil
	if location != nil && d.history.Current() != location.String() {
		d.history.push(location.String())
	}
}

// Assign requests a hard navigation to u.
func (d *Document) Assign(ctx context.Context, u *url.URL) {
	if d.OnAssign != nil {
		d.OnAssign(ctx, u)
		return
	}
	d.location = u
}

// Resolve resolves ref against the document location.
func (d *Document) Resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if d.location == nil {
		return u, nil
	}
	return d.location.ResolveReference(u), nil
}

// Head returns the <head> element.
func (d *Document) Head() *html.Node {
	return findAtom(d.root, atom.Head)
}

// Body returns the <body> element.
func (d *Document) Body() *html.Node {
	return findAtom(d.root, atom.Body)
}

// Title returns the text of the <title> element.
func (d *Document) Title() string {
	if t := findAtom(d.root, atom.Title); t != nil {
		return strings.TrimSpace(TextContent(t))
	}
	return ""
}

// SetTitle sets the text of the <title> element, creating it in <head> when
// missing.
func (d *Document) SetTitle(title string) {
	t := findAtom(d.root, atom.Title)
	if t == nil {
		head := d.Head()
		if head == nil {
			return
		}
		t = &html.Node{Type: html.ElementNode, DataAtom: atom.Title, Data: "title"}
		head.AppendChild(t)
	}
	SetText(t, title)
}

// Contains reports whether n is attached to the live tree.
func (d *Document) Contains(n *html.Node) bool {
	return IsAncestor(d.root, n)
}

// HTML renders the whole document.
func (d *Document) HTML() string {
	return OuterHTML(d.root)
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}

// FindHead returns the <head> of a detached tree.
func FindHead(root *html.Node) *html.Node {
	return findAtom(root, atom.Head)
}

// FindBody returns the <body> of a detached tree.
func FindBody(root *html.Node) *html.Node {
	return findAtom(root, atom.Body)
}

// FindTitle returns the trimmed <title> text of a detached tree.
func FindTitle(root *html.Node) string {
	if t := findAtom(root, atom.Title); t != nil {
		return strings.TrimSpace(TextContent(t))
	}
	return ""
}
