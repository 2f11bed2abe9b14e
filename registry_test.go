package hxnav

import (
	"errors"
	"testing"

	"github.com/pthm/hxnav/lib/dom"
)

const componentPage = `<body>
	<div id="outer" hn-component="counter" hn-component-uuid="c-outer">
		<span id="count" hn-var="count" hn-var-initial="1"></span>
		<span id="label" hn-var="&.label"></span>
		<div id="inner" hn-component="badge" hn-component-uuid="c-inner">
			<span id="inner-count" hn-var="count" hn-var-initial="9"></span>
		</div>
	</div>
	<div hn-component="orphan"></div>
	<p id="loose" hn-component-uuid="c-loose"><span id="loose-var" hn-var="x"></span></p>
	<script hn-component-uuid="c-loose"></script>
</body>`

func TestRegistryRefresh(t *testing.T) {
	rt, _ := newDocRuntime(t, componentPage, Options{})
	reg := rt.Components()

	reg.Refresh()

	comps := reg.Components()
	if len(comps) != 2 {
		t.Fatalf("len(Components()) = %d, want 2", len(comps))
	}
	if comps[0].UUID != "c-inner" || comps[1].UUID != "c-outer" {
		t.Errorf("UUIDs = %s, %s, want c-inner, c-outer", comps[0].UUID, comps[1].UUID)
	}
	outer, err := reg.GetByUUID("c-outer")
	if err != nil {
		t.Fatalf("GetByUUID(c-outer) error = %v", err)
	}
	if outer.Name != "counter" {
		t.Errorf("Name = %q, want %q", outer.Name, "counter")
	}
	if got := dom.AttrOr(outer.Root, "id", ""); got != "outer" {
		t.Errorf("Root id = %q, want %q", got, "outer")
	}
}

func TestRegistryResolveFromScript(t *testing.T) {
	rt, _ := newDocRuntime(t, componentPage, Options{})
	scriptEl, _ := dom.SelectOne(rt.Document().Root(), "script")

	comp, err := rt.Components().Resolve(scriptEl)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := dom.AttrOr(comp.Root, "id", ""); got != "loose" {
		t.Errorf("Root id = %q, want %q (the non-script element)", got, "loose")
	}

	again, _ := rt.Components().Resolve(scriptEl)
	if again != comp {
		t.Error("Resolve() did not return the cached component")
	}
}

func TestRegistryNotFound(t *testing.T) {
	rt, _ := newDocRuntime(t, componentPage, Options{})

	_, err := rt.Components().GetByUUID("nope")
	if !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("GetByUUID error = %v, want ErrComponentNotFound", err)
	}

	p, _ := dom.SelectOne(rt.Document().Root(), "span")
	if _, err := rt.Components().Resolve(p); !IsNotFound(err) {
		t.Errorf("Resolve without uuid error = %v, want not found", err)
	}

	if _, err := rt.StoreFor("nope"); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("StoreFor error = %v, want ErrComponentNotFound", err)
	}
}

func TestRegistryReset(t *testing.T) {
	rt, _ := newDocRuntime(t, componentPage, Options{})
	rt.Components().Refresh()

	rt.Components().Reset()

	if got := len(rt.Components().Components()); got != 0 {
		t.Errorf("len(Components()) after Reset = %d, want 0", got)
	}
}

func TestComponentStoreScope(t *testing.T) {
	rt, _ := newDocRuntime(t, componentPage, Options{})
	rt.Components().Refresh()

	outer, _ := rt.StoreFor("c-outer")
	inner, _ := rt.StoreFor("c-inner")

	if got := textOf(t, rt, "count"); got != "1" {
		t.Errorf("#count = %q, want %q", got, "1")
	}
	if got := textOf(t, rt, "inner-count"); got != "9" {
		t.Errorf("#inner-count = %q, want %q", got, "9")
	}

	outer.Set("count", 2)
	if got := textOf(t, rt, "count"); got != "2" {
		t.Errorf("#count = %q, want %q", got, "2")
	}
	if got := textOf(t, rt, "inner-count"); got != "9" {
		t.Errorf("#inner-count = %q, want %q (nested component untouched)", got, "9")
	}

	outer.Set("label", "clicks")
	if got := textOf(t, rt, "label"); got != "clicks" {
		t.Errorf("#label = %q, want %q", got, "clicks")
	}

	entry, _ := inner.Entry("count")
	if len(entry.Elements) != 1 || dom.AttrOr(entry.Elements[0], "id", "") != "inner-count" {
		t.Errorf("inner count bound to %d elements, want #inner-count only", len(entry.Elements))
	}
}

func TestComponentWithoutRootMarker(t *testing.T) {
	rt, _ := newDocRuntime(t, componentPage, Options{})
	scriptEl, _ := dom.SelectOne(rt.Document().Root(), "script")
	comp, err := rt.Components().Resolve(scriptEl)
	if err != nil {
		t.Fatal(err)
	}

	comp.Store().Create("x", "set")

	if got := textOf(t, rt, "loose-var"); got != "set" {
		t.Errorf("#loose-var = %q, want %q", got, "set")
	}
}

func TestRegistryLookup(t *testing.T) {
	rt, _ := newDocRuntime(t, componentPage, Options{})
	reg := rt.Components()

	comp, err := reg.Lookup("c-loose")
	if err != nil {
		t.Fatalf("Lookup(c-loose) error = %v", err)
	}
	if got := dom.AttrOr(comp.Root, "id", ""); got != "loose" {
		t.Errorf("Root id = %q, want %q", got, "loose")
	}
	if cached, err := reg.GetByUUID("c-loose"); err != nil || cached != comp {
		t.Errorf("GetByUUID(c-loose) = %v, %v, want the looked up component", cached, err)
	}

	if _, err := reg.Lookup("nope"); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("Lookup(nope) error = %v, want ErrComponentNotFound", err)
	}
	if _, err := reg.Lookup(""); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("Lookup(\"\") error = %v, want ErrComponentNotFound", err)
	}
}

func TestComponentStoreFollowsCreateOnLoad(t *testing.T) {
	rt, _ := newDocRuntime(t, componentPage, Options{
		Store: &StoreOptions{RefreshOnSet: true},
	})

	rt.Components().Refresh()

	outer, err := rt.StoreFor("c-outer")
	if err != nil {
		t.Fatal(err)
	}
	if got := outer.Keys(); len(got) != 0 {
		t.Errorf("Keys() = %v, want none with CreateOnLoad off", got)
	}
}
