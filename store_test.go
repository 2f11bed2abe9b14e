package hxnav

import (
	"log/slog"
	"testing"

	"github.com/pthm/hxnav/lib/dom"
)

// newDocRuntime builds a runtime over src without starting it.
func newDocRuntime(t *testing.T, src string, opts Options) (*Runtime, *LogRecorder) {
	t.Helper()
	doc, err := dom.ParseString(src, "http://example.com/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var rec *LogRecorder
	if opts.Logger == nil {
		opts.Logger, rec = CaptureLogs()
	}
	return New(doc, opts), rec
}

func textOf(t *testing.T, rt *Runtime, id string) string {
	t.Helper()
	n := dom.ByID(rt.Document().Root(), id)
	if n == nil {
		t.Fatalf("no element #%s", id)
	}
	return dom.TextContent(n)
}

func TestStoreLifecycle(t *testing.T) {
	rt, logs := newDocRuntime(t, `<body><span id="c" hn-store="count"></span></body>`, Options{})
	s := rt.Store()

	s.Create("count", 1)
	if got := textOf(t, rt, "c"); got != "1" {
		t.Errorf("after Create text = %q, want %q", got, "1")
	}

	s.Set("count", 2)
	if got := textOf(t, rt, "c"); got != "2" {
		t.Errorf("after Set text = %q, want %q", got, "2")
	}
	if v, ok := s.Get("count"); !ok || v != 2 {
		t.Errorf("Get(count) = %v, %v, want 2, true", v, ok)
	}

	s.Delete("count")
	v, ok := s.Get("count")
	if ok || v != nil {
		t.Errorf("Get after Delete = %v, %v, want nil, false", v, ok)
	}
	if !logs.Contains(slog.LevelWarn, "store key does not exist") {
		t.Error("Get of a deleted key did not warn")
	}
}

func TestStoreSetMissingKeyCreates(t *testing.T) {
	rt, logs := newDocRuntime(t, `<body><span id="c" hn-store="theme"></span></body>`, Options{})

	rt.Store().Set("theme", "dark")

	if got := textOf(t, rt, "c"); got != "dark" {
		t.Errorf("text = %q, want %q", got, "dark")
	}
	if got := rt.Store().Keys(); len(got) != 1 || got[0] != "theme" {
		t.Errorf("Keys() = %v, want [theme]", got)
	}
	if !logs.Contains(slog.LevelWarn, "creating it") {
		t.Error("Set of a missing key did not warn")
	}
}

func TestStoreDeleteMissingKeyWarns(t *testing.T) {
	rt, logs := newDocRuntime(t, `<body></body>`, Options{})

	rt.Store().Delete("nothing")

	if !logs.Contains(slog.LevelWarn, "cannot delete") {
		t.Error("Delete of a missing key did not warn")
	}
}

func TestStoreNestedPaths(t *testing.T) {
	rt, logs := newDocRuntime(t, `<body>
		<span id="name" hn-store="user.name"></span>
		<span id="missing" hn-store="user.age"></span>
		<span id="whole" hn-store="user"></span>
		<span id="other" hn-store="username">keep</span>
	</body>`, Options{})

	rt.Store().Create("user", map[string]any{"name": "Ada"})

	tests := []struct {
		id     string
		expect string
	}{
		{"name", "Ada"},
		{"missing", "undefined"},
		{"whole", `{"name":"Ada"}`},
		{"other", "keep"},
	}
	for _, tt := range tests {
		if got := textOf(t, rt, tt.id); got != tt.expect {
			t.Errorf("#%s = %q, want %q", tt.id, got, tt.expect)
		}
	}
	if !logs.Contains(slog.LevelWarn, "value does not exist") {
		t.Error("missing path did not warn")
	}

	entry, ok := rt.Store().Entry("user")
	if !ok {
		t.Fatal("Entry(user) missing")
	}
	if len(entry.Elements) != 3 {
		t.Errorf("len(Elements) = %d, want 3", len(entry.Elements))
	}
}

type profile struct {
	Name string
	Tags []string
}

func TestStoreStructValues(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body>
		<span id="name" hn-store="me.name"></span>
		<span id="tag" hn-store="me.tags.1"></span>
	</body>`, Options{})

	rt.Store().Create("me", profile{Name: "Grace", Tags: []string{"navy", "cobol"}})

	if got := textOf(t, rt, "name"); got != "Grace" {
		t.Errorf("#name = %q, want %q", got, "Grace")
	}
	if got := textOf(t, rt, "tag"); got != "cobol" {
		t.Errorf("#tag = %q, want %q", got, "cobol")
	}
}

func TestStoreValueAttribute(t *testing.T) {
	rt, logs := newDocRuntime(t, `<body>
		<span id="name" hn-store="user" hn-store-value="name"></span>
		<span id="empty" hn-store="user" hn-store-value="">keep</span>
	</body>`, Options{})

	rt.Store().Create("user", map[string]any{"name": "Ada"})

	if got := textOf(t, rt, "name"); got != "Ada" {
		t.Errorf("#name = %q, want %q", got, "Ada")
	}
	if got := textOf(t, rt, "empty"); got != "keep" {
		t.Errorf("#empty = %q, want %q", got, "keep")
	}
	if !logs.Contains(slog.LevelWarn, "no value requested") {
		t.Error("empty value attribute did not warn")
	}
}

func TestStoreRefreshOnSetDisabled(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body><span id="c" hn-store="count"></span></body>`, Options{
		Store: &StoreOptions{CreateOnLoad: true},
	})
	s := rt.Store()

	s.Create("count", 1)
	s.Set("count", 5)
	if got := textOf(t, rt, "c"); got != "1" {
		t.Errorf("before Refresh text = %q, want %q", got, "1")
	}

	s.Refresh("count")
	if got := textOf(t, rt, "c"); got != "5" {
		t.Errorf("after Refresh text = %q, want %q", got, "5")
	}
}

func TestStoreCreateOnLoad(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body>
		<span id="theme" hn-store="theme" hn-store-initial="dark"></span>
		<span id="name" hn-store="user.name"></span>
		<span id="count" hn-store="count"></span>
	</body>`, Options{})
	s := rt.Store()
	s.Create("count", 7)

	s.CreateOnLoad()

	if v, _ := s.Get("theme"); v != "dark" {
		t.Errorf("theme = %v, want dark", v)
	}
	if got := textOf(t, rt, "theme"); got != "dark" {
		t.Errorf("#theme = %q, want %q", got, "dark")
	}
	if v, ok := s.Get("user"); !ok || v != "" {
		t.Errorf("user = %v, %v, want empty string, true", v, ok)
	}
	if v, _ := s.Get("count"); v != 7 {
		t.Errorf("count = %v, want 7 (existing entries are kept)", v)
	}
}

func TestStoreCreateOnLoadDisabled(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body><span hn-store="theme"></span></body>`, Options{
		Store: &StoreOptions{RefreshOnSet: true},
	})

	rt.Store().CreateOnLoad()

	if got := rt.Store().Keys(); len(got) != 0 {
		t.Errorf("Keys() = %v, want none", got)
	}
}

func TestStoreForeach(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body>
		<ul id="list" hn-foreach="todos"><li hn-each><b hn-each="title"></b></li></ul>
	</body>`, Options{})
	s := rt.Store()

	s.Create("todos", []any{
		map[string]any{"title": "write"},
		map[string]any{"title": "test"},
	})

	items := dom.WithAttr(rt.Document().Root(), "hn-item")
	if len(items) != 2 {
		t.Fatalf("rendered %d items, want 2", len(items))
	}
	for i, want := range []string{"write", "test"} {
		if got := dom.TextContent(items[i]); got != want {
			t.Errorf("item %d = %q, want %q", i, got, want)
		}
	}
	tmpl, _ := dom.SelectOne(rt.Document().Root(), "li")
	if !dom.HasAttr(tmpl, "hidden") || dom.HasAttr(tmpl, "hn-item") {
		t.Error("template is not the hidden first child")
	}

	s.Set("todos", []any{map[string]any{"title": "ship"}})
	items = dom.WithAttr(rt.Document().Root(), "hn-item")
	if len(items) != 1 || dom.TextContent(items[0]) != "ship" {
		t.Errorf("after Set items = %d, want one reading ship", len(items))
	}
}

func TestStoreForeachScalars(t *testing.T) {
	rt, logs := newDocRuntime(t, `<body>
		<ul hn-foreach="tags"><li hn-each></li></ul>
	</body>`, Options{})

	rt.Store().Create("tags", []string{"go", "html"})

	items := dom.WithAttr(rt.Document().Root(), "hn-item")
	if len(items) != 2 {
		t.Fatalf("rendered %d items, want 2", len(items))
	}
	if dom.TextContent(items[0]) != "go" || dom.TextContent(items[1]) != "html" {
		t.Errorf("items = %q, %q", dom.TextContent(items[0]), dom.TextContent(items[1]))
	}

	rt.Store().Set("tags", "not a list")
	if len(dom.WithAttr(rt.Document().Root(), "hn-item")) != 0 {
		t.Error("clones survived a non-list value")
	}
	if !logs.Contains(slog.LevelWarn, "not a list") {
		t.Error("non-list value did not warn")
	}
}

func TestPageStoreIsSeparate(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body>
		<span id="global" hn-store="title"></span>
		<span id="page" hn-page-store="title"></span>
	</body>`, Options{})

	rt.Page().Create("title", "Page")
	rt.Store().Create("title", "Global")

	if got := textOf(t, rt, "page"); got != "Page" {
		t.Errorf("#page = %q, want %q", got, "Page")
	}
	if got := textOf(t, rt, "global"); got != "Global" {
		t.Errorf("#global = %q, want %q", got, "Global")
	}
	if rt.Page().Prefix() != PagePrefix {
		t.Errorf("Page().Prefix() = %q, want %q", rt.Page().Prefix(), PagePrefix)
	}
}

func TestStoreUpdateEvent(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body></body>`, Options{})
	var changes []StoreChange
	rt.Document().AddEventListener(nil, EventStoreUpdate, func(ev *dom.Event) {
		changes = append(changes, ev.Detail.(StoreChange))
	})

	rt.Store().Create("count", 1)
	rt.Page().Set("count", 2)

	if len(changes) != 2 {
		t.Fatalf("got %d events, want 2", len(changes))
	}
	if changes[0] != (StoreChange{Key: "count", Value: 1, Prefix: ""}) {
		t.Errorf("first change = %+v", changes[0])
	}
	if changes[1] != (StoreChange{Key: "count", Value: 2, Prefix: PagePrefix}) {
		t.Errorf("second change = %+v", changes[1])
	}
}

func TestStoreReloadAllRebinds(t *testing.T) {
	rt, _ := newDocRuntime(t, `<body><main><span id="c" hn-store="count"></span></main></body>`, Options{})
	rt.Store().Create("count", 3)

	main, _ := dom.SelectOne(rt.Document().Root(), "main")
	if err := dom.SetInnerHTML(main, `<span id="c" hn-store="count"></span>`); err != nil {
		t.Fatal(err)
	}
	rt.Store().ReloadAll()

	if got := textOf(t, rt, "c"); got != "3" {
		t.Errorf("text after reload = %q, want %q", got, "3")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		expect string
	}{
		{"nil", nil, "undefined"},
		{"string", "hi", "hi"},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"int64", int64(-3), "-3"},
		{"float", 1.5, "1.5"},
		{"whole float", float64(2), "2"},
		{"map", map[string]any{"a": 1}, `{"a":1}`},
		{"slice", []any{1, "x"}, `[1,"x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.value); got != tt.expect {
				t.Errorf("formatValue(%v) = %q, want %q", tt.value, got, tt.expect)
			}
		})
	}
}

func TestMatchesKey(t *testing.T) {
	tests := []struct {
		path, key string
		expect    bool
	}{
		{"user", "user", true},
		{"user.name", "user", true},
		{"username", "user", false},
		{"use", "user", false},
	}
	for _, tt := range tests {
		if got := matchesKey(tt.path, tt.key); got != tt.expect {
			t.Errorf("matchesKey(%q, %q) = %v, want %v", tt.path, tt.key, got, tt.expect)
		}
	}
}
