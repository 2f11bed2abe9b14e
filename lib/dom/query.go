package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Find evaluates an XPath expression relative to top. Invalid expressions
// return an error; an empty result is not an error.
func Find(top *html.Node, expr string) ([]*html.Node, error) {
	if top == nil {
		return nil, nil
	}
	nodes, err := htmlquery.QueryAll(top, expr)
	if err != nil {
		return nil, fmt.Errorf("dom: xpath %q: %w", expr, err)
	}
	return nodes, nil
}

// FindOne returns the first match of an XPath expression, or nil.
func FindOne(top *html.Node, expr string) (*html.Node, error) {
	if top == nil {
		return nil, nil
	}
	n, err := htmlquery.Query(top, expr)
	if err != nil {
		return nil, fmt.Errorf("dom: xpath %q: %w", expr, err)
	}
	return n, nil
}

// Select returns the elements under top matching a CSS selector. Anything
// starting with "/", "./" or "(" is treated as XPath already. When top is
// an element the search is confined to its descendants.
func Select(top *html.Node, selector string) ([]*html.Node, error) {
	expr, err := translateSelector(selector, top != nil && top.Type != html.DocumentNode)
	if err != nil {
		return nil, err
	}
	return Find(top, expr)
}

// SelectOne returns the first element matching a CSS selector, or nil.
func SelectOne(top *html.Node, selector string) (*html.Node, error) {
	expr, err := translateSelector(selector, top != nil && top.Type != html.DocumentNode)
	if err != nil {
		return nil, err
	}
	return FindOne(top, expr)
}

// ByID returns the element with the given id under top.
func ByID(top *html.Node, id string) *html.Node {
	n, _ := FindOne(top, "//*[@id="+Literal(id)+"]")
	return n
}

// WithAttr returns every element under top (top included) carrying name.
func WithAttr(top *html.Node, name string) []*html.Node {
	nodes, _ := Find(top, "descendant-or-self::*[@"+name+"]")
	return nodes
}

// WithAttrValue returns every element under top (top included) whose name
// attribute equals value.
func WithAttrValue(top *html.Node, name, value string) []*html.Node {
	nodes, _ := Find(top, "descendant-or-self::*[@"+name+"="+Literal(value)+"]")
	return nodes
}

// WithAttrPath returns the elements under top (top included) whose name
// attribute equals key or continues it with a "." segment. "user" matches
// "user" and "user.name" but not "username".
func WithAttrPath(top *html.Node, name, key string) []*html.Node {
	lit := Literal(key)
	dotted := Literal(key + ".")
	expr := fmt.Sprintf("descendant-or-self::*[@%s=%s or starts-with(@%s, %s)]", name, lit, name, dotted)
	nodes, _ := Find(top, expr)
	return nodes
}

// Literal quotes s as an XPath string literal. Values holding both quote
// kinds are built with concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// TranslateSelector converts a CSS selector into XPath. Supported: type
// selectors, #id, .class, [attr], [attr=value], [attr^=value], the
// universal selector, descendant (space) and child (>) combinators, and
// selector lists separated by commas.
func TranslateSelector(selector string) (string, error) {
	return translateSelector(selector, false)
}

func translateSelector(selector string, relative bool) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", fmt.Errorf("dom: empty selector")
	}
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "./") || strings.HasPrefix(selector, "(") {
		return selector, nil
	}

	var alts []string
	for _, group := range splitTop(selector, ',') {
		expr, err := translateGroup(strings.TrimSpace(group))
		if err != nil {
			return "", err
		}
		if relative {
			expr = "." + expr
		}
		alts = append(alts, expr)
	}
	return strings.Join(alts, " | "), nil
}

func translateGroup(group string) (string, error) {
	if group == "" {
		return "", fmt.Errorf("dom: empty selector group")
	}
	var sb strings.Builder
	axis := "//"
	for _, tok := range tokenizeSelector(group) {
		if tok == ">" {
			axis = "/"
			continue
		}
		step, err := translateCompound(tok)
		if err != nil {
			return "", err
		}
		sb.WriteString(axis)
		sb.WriteString(step)
		axis = "//"
	}
	return sb.String(), nil
}

// tokenizeSelector splits on whitespace and ">" outside brackets and quotes.
func tokenizeSelector(s string) []string {
	var (
		toks  []string
		cur   strings.Builder
		depth int
		quote rune
	)
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == '[':
			depth++
			cur.WriteRune(r)
		case r == ']':
			depth--
			cur.WriteRune(r)
		case depth == 0 && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		case depth == 0 && r == '>':
			flush()
			toks = append(toks, ">")
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func splitTop(s string, sep rune) []string {
	var (
		parts []string
		start int
		depth int
		quote rune
	)
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[':
			depth++
		case r == ']':
			depth--
		case depth == 0 && r == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func translateCompound(tok string) (string, error) {
	tag := "*"
	var preds []string
	i := 0
	for i < len(tok) && isIdent(tok[i]) {
		i++
	}
	if i > 0 {
		tag = strings.ToLower(tok[:i])
	} else if i < len(tok) && tok[i] == '*' {
		i++
	}

	for i < len(tok) {
		switch tok[i] {
		case '#', '.':
			kind := tok[i]
			i++
			start := i
			for i < len(tok) && isIdent(tok[i]) {
				i++
			}
			name := tok[start:i]
			if name == "" {
				return "", fmt.Errorf("dom: bad selector %q", tok)
			}
			if kind == '#' {
				preds = append(preds, "@id="+Literal(name))
			} else {
				preds = append(preds, "contains(concat(' ', normalize-space(@class), ' '), "+Literal(" "+name+" ")+")")
			}
		case '[':
			end := strings.IndexByte(tok[i:], ']')
			if end < 0 {
				return "", fmt.Errorf("dom: unterminated attribute selector %q", tok)
			}
			pred, err := translateAttr(tok[i+1 : i+end])
			if err != nil {
				return "", err
			}
			preds = append(preds, pred)
			i += end + 1
		default:
			return "", fmt.Errorf("dom: unsupported selector %q", tok)
		}
	}

	step := tag
	for _, p := range preds {
		step += "[" + p + "]"
	}
	return step, nil
}

func translateAttr(body string) (string, error) {
	op := ""
	idx := strings.IndexByte(body, '=')
	if idx < 0 {
		name := strings.TrimSpace(body)
		if name == "" {
			return "", fmt.Errorf("dom: empty attribute selector")
		}
		return "@" + name, nil
	}
	name := body[:idx]
	if strings.HasSuffix(name, "^") {
		op = "^"
		name = name[:len(name)-1]
	}
	name = strings.TrimSpace(name)
	value := strings.TrimSpace(body[idx+1:])
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		value = value[1 : len(value)-1]
	}
	if op == "^" {
		return "starts-with(@" + name + ", " + Literal(value) + ")", nil
	}
	return "@" + name + "=" + Literal(value), nil
}

func isIdent(c byte) bool {
	return c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
