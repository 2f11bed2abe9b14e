package dom

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html>
<head><title> Home </title><link rel="stylesheet" href="/a.css"></head>
<body>
<nav id="nav" class="top bar"><a href="/b" id="to-b">B</a></nav>
<div id="app">
  <span hn-store="user.name" id="name"></span>
  <span hn-store="user" id="user"></span>
  <span hn-store="username" id="username"></span>
  <input id="q" name="q" value="x">
  <select id="s" name="s"><option value="1">one</option><option value="2" selected>two</option></select>
  <textarea id="t" name="t">hello</textarea>
</div>
</body>
</html>`

func mustParse(t *testing.T) *Document {
	t.Helper()
	d, err := ParseString(page, "http://example.test/a?x=1")
	require.NoError(t, err)
	return d
}

func TestDocumentBasics(t *testing.T) {
	d := mustParse(t)

	assert.Equal(t, "Home", d.Title())
	require.NotNil(t, d.Head())
	require.NotNil(t, d.Body())
	assert.Equal(t, "http://example.test/a?x=1", d.Location().String())

	d.SetTitle("Next")
	assert.Equal(t, "Next", d.Title())

	u, err := d.Resolve("/b")
	require.NoError(t, err)
	assert.Equal(t, "http://example.test/b", u.String())
}

func TestSelect(t *testing.T) {
	d := mustParse(t)

	tests := []struct {
		selector string
		want     []string
	}{
		{"#app", []string{"app"}},
		{"nav.bar", []string{"nav"}},
		{".top", []string{"nav"}},
		{"nav > a", []string{"to-b"}},
		{"[hn-store=user]", []string{"user"}},
		{`[hn-store^="user"]`, []string{"name", "user", "username"}},
		{"#nav a, #q", []string{"to-b", "q"}},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			nodes, err := Select(d.Root(), tt.selector)
			require.NoError(t, err)
			var ids []string
			for _, n := range nodes {
				ids = append(ids, AttrOr(n, "id", ""))
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestSelectWithinElement(t *testing.T) {
	d := mustParse(t)
	nav := ByID(d.Root(), "nav")
	require.NotNil(t, nav)

	nodes, err := Select(nav, "span")
	require.NoError(t, err)
	assert.Empty(t, nodes)

	a, err := SelectOne(nav, "a")
	require.NoError(t, err)
	assert.Equal(t, "to-b", AttrOr(a, "id", ""))
}

func TestWithAttrPathStopsAtSegments(t *testing.T) {
	d := mustParse(t)

	var ids []string
	for _, n := range WithAttrPath(d.Root(), "hn-store", "user") {
		ids = append(ids, AttrOr(n, "id", ""))
	}
	assert.ElementsMatch(t, []string{"name", "user"}, ids)
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "'a'", Literal("a"))
	assert.Equal(t, `"it's"`, Literal("it's"))
	assert.Equal(t, `concat('a"', "'", 'b')`, Literal(`a"'b`))
}

func TestTranslateSelectorErrors(t *testing.T) {
	for _, sel := range []string{"", "a[href", "a:hover"} {
		_, err := TranslateSelector(sel)
		assert.Error(t, err, sel)
	}
}

func TestMutation(t *testing.T) {
	d := mustParse(t)
	app := ByID(d.Root(), "app")

	other, err := ParseString(`<html><body><div id="app"><p>B</p></div></body></html>`, "")
	require.NoError(t, err)
	fresh := ByID(other.Root(), "app")

	ReplaceWith(app, fresh)
	assert.True(t, d.Contains(fresh))
	assert.False(t, d.Contains(app))
	assert.Equal(t, "B", TextContent(ByID(d.Root(), "app")))
	assert.Nil(t, ByID(other.Root(), "app"))

	clone := Clone(fresh, true)
	assert.Equal(t, OuterHTML(fresh), OuterHTML(clone))
	assert.Nil(t, clone.Parent)

	require.NoError(t, SetInnerHTML(fresh, "<em>x</em>"))
	assert.Equal(t, "<em>x</em>", InnerHTML(fresh))
}

func TestAttributes(t *testing.T) {
	n := CreateElement("DIV")
	assert.Equal(t, "div", Tag(n))

	SetAttr(n, "hn-ignore", "")
	assert.True(t, HasAttr(n, "hn-ignore"))
	SetAttr(n, "data-x", "1")
	SetAttr(n, "data-x", "2")
	assert.Equal(t, "2", AttrOr(n, "data-x", ""))
	RemoveAttr(n, "data-x")
	assert.False(t, HasAttr(n, "data-x"))
}

func TestFormValues(t *testing.T) {
	d := mustParse(t)

	assert.Equal(t, "x", Value(ByID(d.Root(), "q")))
	assert.Equal(t, "2", Value(ByID(d.Root(), "s")))
	assert.Equal(t, "hello", Value(ByID(d.Root(), "t")))

	SetValue(ByID(d.Root(), "s"), "1")
	assert.Equal(t, "1", Value(ByID(d.Root(), "s")))
	SetValue(ByID(d.Root(), "t"), "bye")
	assert.Equal(t, "bye", Value(ByID(d.Root(), "t")))
}

func TestStyle(t *testing.T) {
	n := CreateElement("div")
	assert.Equal(t, 1.0, Opacity(n))

	SetStyle(n, "color", "red")
	SetOpacity(n, 0.5)
	assert.Equal(t, 0.5, Opacity(n))
	assert.Equal(t, "color: red; opacity: 0.5", AttrOr(n, "style", ""))

	AddClass(n, "fade")
	AddClass(n, "fade")
	assert.Equal(t, "fade", AttrOr(n, "class", ""))
	RemoveClass(n, "fade")
	assert.False(t, HasClass(n, "fade"))
}

func TestDispatchBubbles(t *testing.T) {
	d := mustParse(t)
	a := ByID(d.Root(), "to-b")
	nav := ByID(d.Root(), "nav")

	var order []string
	d.AddEventListener(a, "click", func(*Event) { order = append(order, "a") })
	d.AddEventListener(nav, "click", func(*Event) { order = append(order, "nav") })
	d.AddEventListener(nil, "click", func(*Event) { order = append(order, "document") })

	d.Dispatch(NewEvent(context.Background(), "click", a))
	assert.Equal(t, []string{"a", "nav", "document"}, order)
}

func TestSetEventListenerReplacesSlot(t *testing.T) {
	d := mustParse(t)
	a := ByID(d.Root(), "to-b")

	calls := 0
	for i := 0; i < 3; i++ {
		d.SetEventListener(a, "click", "nav", func(ev *Event) {
			calls++
			ev.PreventDefault()
		})
	}
	assert.Equal(t, 1, d.ListenerCount(a, "click"))

	assert.False(t, d.Click(context.Background(), a))
	assert.Equal(t, 1, calls)

	d.RemoveEventListener(a, "click", "nav")
	assert.Equal(t, 0, d.ListenerCount(a, "click"))
}

func TestClickDefaultAssigns(t *testing.T) {
	d := mustParse(t)
	var got *url.URL
	d.OnAssign = func(_ context.Context, u *url.URL) { got = u }

	assert.True(t, d.Click(context.Background(), ByID(d.Root(), "to-b")))
	require.NotNil(t, got)
	assert.Equal(t, "http://example.test/b", got.String())
}

func TestPrune(t *testing.T) {
	d := mustParse(t)
	app := ByID(d.Root(), "app")
	d.AddEventListener(app, "click", func(*Event) {})

	Detach(app)
	d.Prune()
	assert.Equal(t, 0, d.ListenerCount(app, "click"))
}

func TestHistory(t *testing.T) {
	d := mustParse(t)
	h := d.History()
	assert.Equal(t, 1, h.Len())

	require.NoError(t, h.PushState("/b"))
	require.NoError(t, h.ReplaceState("/b2"))
	assert.Equal(t, []string{"http://example.test/a?x=1", "http://example.test/b2"}, h.Entries())
	assert.Equal(t, "/b2", d.Location().Path)

	var assigned string
	d.OnAssign = func(_ context.Context, u *url.URL) { assigned = u.String() }
	h.Back(context.Background())
	assert.Equal(t, "http://example.test/a?x=1", assigned)
	assert.Equal(t, "http://example.test/a?x=1", h.Current())

	var deltas []int
	h.Intercept = func(_ context.Context, delta int) { deltas = append(deltas, delta) }
	h.Forward(context.Background())
	h.Go(context.Background(), -2)
	assert.Equal(t, []int{1, -2}, deltas)
}
