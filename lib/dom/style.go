package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Style returns the value of one inline style property.
func Style(n *html.Node, prop string) (string, bool) {
	for _, decl := range splitStyle(AttrOr(n, "style", "")) {
		if decl[0] == prop {
			return decl[1], true
		}
	}
	return "", false
}

// SetStyle sets one inline style property, keeping the others in order.
func SetStyle(n *html.Node, prop, value string) {
	decls := splitStyle(AttrOr(n, "style", ""))
	found := false
	for i := range decls {
		if decls[i][0] == prop {
			decls[i][1] = value
			found = true
		}
	}
	if !found {
		decls = append(decls, [2]string{prop, value})
	}
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d[0] + ": " + d[1]
	}
	SetAttr(n, "style", strings.Join(parts, "; "))
}

func splitStyle(style string) [][2]string {
	var out [][2]string
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out = append(out, [2]string{k, strings.TrimSpace(v)})
	}
	return out
}

// Opacity returns the inline opacity of n, 1 when unset or unparsable.
func Opacity(n *html.Node) float64 {
	v, ok := Style(n, "opacity")
	if !ok {
		return 1
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 1
	}
	return f
}

// SetOpacity writes the inline opacity of n.
func SetOpacity(n *html.Node, v float64) {
	SetStyle(n, "opacity", strconv.FormatFloat(v, 'f', -1, 64))
}

// HasClass reports whether n carries class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(AttrOr(n, "class", "")) {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass adds class to n if missing.
func AddClass(n *html.Node, class string) {
	if class == "" || HasClass(n, class) {
		return
	}
	classes := strings.Fields(AttrOr(n, "class", ""))
	SetAttr(n, "class", strings.Join(append(classes, class), " "))
}

// RemoveClass removes class from n.
func RemoveClass(n *html.Node, class string) {
	classes := strings.Fields(AttrOr(n, "class", ""))
	out := classes[:0]
	for _, c := range classes {
		if c != class {
			out = append(out, c)
		}
	}
	SetAttr(n, "class", strings.Join(out, " "))
}
