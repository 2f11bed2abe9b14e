package script

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
)

var jsTypes = map[string]bool{
	"":                       true,
	"text/javascript":        true,
	"application/javascript": true,
	"text/ecmascript":        true,
	"application/ecmascript": true,
	"module":                 true,
}

// JS runs JavaScript page scripts on a single goja VM. Globals installed by
// one script are visible to the next, as they would be on a page.
//
// Besides the usual window, self and console globals, scripts see a small
// document API (getElementById, querySelector, querySelectorAll, title,
// addEventListener) and the hxnav object:
//
//	hxnav.store.get("count")
//	hxnav.store.set("count", 2)
//	hxnav.page.set("draft", "...")
//	hxnav.component(uuid).get("open")
//	hxnav.storage.set("token", "abc")
//	hxnav.go("/next")
//	hxnav.back()
//
// Exports scripts use CommonJS style (exports.onLoad = function () {...});
// top-level "export function" and "export const" declarations are rewritten
// to that form.
type JS struct {
	vm       *goja.Runtime
	host     Host
	ctx      context.Context
	elements map[*html.Node]*goja.Object
}

// NewJS creates a JavaScript engine bound to host.
func NewJS(host Host) *JS {
	j := &JS{
		vm:       goja.New(),
		host:     host,
		ctx:      context.Background(),
		elements: make(map[*html.Node]*goja.Object),
	}
	j.install()
	return j
}

func (j *JS) Name() string { return "javascript" }

func (j *JS) Supports(typ string) bool {
	return jsTypes[normalizeType(typ)]
}

// enter binds ctx to the VM for the duration of a call. Cancelling ctx
// interrupts the running script.
func (j *JS) enter(ctx context.Context) func() {
	prev := j.ctx
	j.ctx = ctx
	stop := context.AfterFunc(ctx, func() {
		j.vm.Interrupt(context.Cause(ctx))
	})
	return func() {
		stop()
		j.vm.ClearInterrupt()
		j.ctx = prev
	}
}

func (j *JS) Run(ctx context.Context, src Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if normalizeType(src.Type) == "module" {
		_, err := j.Exports(ctx, src)
		return err
	}
	defer j.enter(ctx)()
	if _, err := j.vm.RunScript(src.Name, src.Code); err != nil {
		return fmt.Errorf("script %s: %w", src.Name, err)
	}
	return nil
}

func (j *JS) Exports(ctx context.Context, src Source) (Exports, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer j.enter(ctx)()

	// A new page means new elements; drop wrappers of the old ones.
	j.elements = make(map[*html.Node]*goja.Object)

	wrapped := "(function (exports, module) {\n" + rewriteExports(src.Code) + "\n})"
	v, err := j.vm.RunScript(src.Name, wrapped)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", src.Name, err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("script %s: module wrapper is not callable", src.Name)
	}
	exports := j.vm.NewObject()
	module := j.vm.NewObject()
	module.Set("exports", exports)
	if _, err := fn(goja.Undefined(), exports, module); err != nil {
		return nil, fmt.Errorf("script %s: %w", src.Name, err)
	}

	out := module.Get("exports")
	if out == nil || goja.IsUndefined(out) || goja.IsNull(out) {
		return &jsExports{j: j, obj: j.vm.NewObject()}, nil
	}
	return &jsExports{j: j, obj: out.ToObject(j.vm)}, nil
}

func (j *JS) DeleteGlobal(name string) bool {
	if !j.HasGlobal(name) {
		return false
	}
	g := j.vm.GlobalObject()
	// var declarations are not configurable; clear them instead.
	if err := g.Delete(name); err != nil || g.Get(name) != nil {
		g.Set(name, goja.Undefined())
	}
	return true
}

func (j *JS) HasGlobal(name string) bool {
	v := j.vm.GlobalObject().Get(name)
	return v != nil && !goja.IsUndefined(v)
}

// Eval evaluates an expression and exports the result. It is meant for
// tests and debugging.
func (j *JS) Eval(ctx context.Context, expr string) (any, error) {
	defer j.enter(ctx)()
	v, err := j.vm.RunString(expr)
	if err != nil {
		return nil, err
	}
	return exportValue(v), nil
}

var exportDecl = regexp.MustCompile(`(?m)^([ \t]*)export[ \t]+(?:(function\*?)[ \t]+([A-Za-z_$][\w$]*)|(const|let|var)[ \t]+([A-Za-z_$][\w$]*)[ \t]*=)`)

func rewriteExports(code string) string {
	return exportDecl.ReplaceAllStringFunc(code, func(m string) string {
		sub := exportDecl.FindStringSubmatch(m)
		indent := sub[1]
		if sub[3] != "" {
			return indent + "exports." + sub[3] + " = " + sub[2] + " " + sub[3]
		}
		return indent + sub[4] + " " + sub[5] + " = exports." + sub[5] + " ="
	})
}

type jsExports struct {
	j   *JS
	obj *goja.Object
}

func (e *jsExports) Names() []string {
	var names []string
	for _, k := range e.obj.Keys() {
		if _, ok := goja.AssertFunction(e.obj.Get(k)); ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func (e *jsExports) Has(name string) bool {
	_, ok := goja.AssertFunction(e.obj.Get(name))
	return ok
}

func (e *jsExports) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := goja.AssertFunction(e.obj.Get(name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer e.j.enter(ctx)()

	vals := make([]goja.Value, len(args))
	for i, a := range args {
		vals[i] = e.j.toValue(a)
	}
	res, err := fn(goja.Undefined(), vals...)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", name, err)
	}
	return exportValue(res), nil
}

func exportValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func (j *JS) toValue(v any) goja.Value {
	switch v := v.(type) {
	case *html.Node:
		return j.wrap(v)
	case *dom.Event:
		return j.eventValue(v)
	case map[string]any:
		obj := j.vm.NewObject()
		for k, val := range v {
			obj.Set(k, j.toValue(val))
		}
		return obj
	}
	return j.vm.ToValue(v)
}

func (j *JS) install() {
	global := j.vm.GlobalObject()
	j.vm.Set("window", global)
	j.vm.Set("self", global)

	console := j.vm.NewObject()
	levels := map[string]slog.Level{
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, level := range levels {
		console.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			j.host.Logger().Log(j.ctx, level, strings.Join(parts, " "), "source", "console")
			return goja.Undefined()
		})
	}
	j.vm.Set("console", console)

	j.vm.Set("document", j.documentObject())

	api := j.vm.NewObject()
	api.Set("store", j.storeObject(""))
	api.Set("page", j.storeObject("page"))
	api.Set("component", func(call goja.FunctionCall) goja.Value {
		return j.storeObject(call.Argument(0).String())
	})
	storage := j.vm.NewObject()
	storage.Set("get", func(call goja.FunctionCall) goja.Value {
		v, err := j.host.StorageGet(call.Argument(0).String())
		if err != nil {
			panic(j.vm.NewGoError(err))
		}
		return j.toValue(v)
	})
	storage.Set("set", func(call goja.FunctionCall) goja.Value {
		if err := j.host.StorageSet(call.Argument(0).String(), exportValue(call.Argument(1))); err != nil {
			panic(j.vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	api.Set("storage", storage)
	api.Set("go", func(call goja.FunctionCall) goja.Value {
		j.host.Navigate(j.ctx, call.Argument(0).String())
		return goja.Undefined()
	})
	api.Set("back", func(goja.FunctionCall) goja.Value {
		j.host.Back(j.ctx)
		return goja.Undefined()
	})
	j.vm.Set("hxnav", api)
}

func (j *JS) storeObject(scope string) *goja.Object {
	obj := j.vm.NewObject()
	obj.Set("get", func(call goja.FunctionCall) goja.Value {
		v, ok := j.host.StoreGet(scope, call.Argument(0).String())
		if !ok {
			return goja.Undefined()
		}
		return j.toValue(v)
	})
	obj.Set("set", func(call goja.FunctionCall) goja.Value {
		j.host.StoreSet(scope, call.Argument(0).String(), exportValue(call.Argument(1)))
		return goja.Undefined()
	})
	obj.Set("create", func(call goja.FunctionCall) goja.Value {
		j.host.StoreCreate(scope, call.Argument(0).String(), exportValue(call.Argument(1)))
		return goja.Undefined()
	})
	obj.Set("delete", func(call goja.FunctionCall) goja.Value {
		j.host.StoreDelete(scope, call.Argument(0).String())
		return goja.Undefined()
	})
	return obj
}

func (j *JS) root() *html.Node {
	if d := j.host.Document(); d != nil {
		return d.Root()
	}
	return nil
}

func (j *JS) documentObject() *goja.Object {
	doc := j.vm.NewObject()
	doc.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return j.wrap(dom.ByID(j.root(), call.Argument(0).String()))
	})
	doc.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return j.querySelector(j.root(), call.Argument(0).String())
	})
	doc.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return j.querySelectorAll(j.root(), call.Argument(0).String())
	})
	doc.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		j.listen(nil, call)
		return goja.Undefined()
	})
	j.accessor(doc, "title", func() goja.Value {
		return j.vm.ToValue(j.host.Document().Title())
	}, func(v goja.Value) {
		j.host.Document().SetTitle(v.String())
	})
	j.accessor(doc, "body", func() goja.Value {
		return j.wrap(j.host.Document().Body())
	}, nil)
	j.accessor(doc, "head", func() goja.Value {
		return j.wrap(j.host.Document().Head())
	}, nil)
	j.accessor(doc, "location", func() goja.Value {
		if loc := j.host.Document().Location(); loc != nil {
			return j.vm.ToValue(loc.String())
		}
		return goja.Null()
	}, nil)
	return doc
}

func (j *JS) querySelector(top *html.Node, selector string) goja.Value {
	n, err := dom.SelectOne(top, selector)
	if err != nil {
		panic(j.vm.NewGoError(err))
	}
	return j.wrap(n)
}

func (j *JS) querySelectorAll(top *html.Node, selector string) goja.Value {
	nodes, err := dom.Select(top, selector)
	if err != nil {
		panic(j.vm.NewGoError(err))
	}
	vals := make([]any, len(nodes))
	for i, n := range nodes {
		vals[i] = j.wrap(n)
	}
	return j.vm.NewArray(vals...)
}

func (j *JS) listen(n *html.Node, call goja.FunctionCall) {
	typ := call.Argument(0).String()
	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		return
	}
	j.host.Document().AddEventListener(n, typ, func(ev *dom.Event) {
		if _, err := fn(goja.Undefined(), j.eventValue(ev)); err != nil {
			j.host.Logger().ErrorContext(ev.Context(), "script listener failed", "event", ev.Type, "error", err)
		}
	})
}

func (j *JS) eventValue(ev *dom.Event) goja.Value {
	obj := j.vm.NewObject()
	obj.Set("type", ev.Type)
	obj.Set("target", j.wrap(ev.Target))
	obj.Set("key", ev.Key)
	if ev.Target != nil {
		obj.Set("value", dom.Value(ev.Target))
	}
	if ev.Detail != nil {
		obj.Set("detail", j.toValue(ev.Detail))
	}
	obj.Set("preventDefault", func(goja.FunctionCall) goja.Value {
		ev.PreventDefault()
		return goja.Undefined()
	})
	return obj
}

func (j *JS) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := j.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return get()
	})
	var setter goja.Value
	if set != nil {
		setter = j.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// wrap returns the script object for n, creating it on first use so the same
// element is always the same object.
func (j *JS) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := j.elements[n]; ok {
		return obj
	}
	obj := j.vm.NewObject()
	j.elements[n] = obj

	j.accessor(obj, "id", func() goja.Value {
		return j.vm.ToValue(dom.AttrOr(n, "id", ""))
	}, func(v goja.Value) {
		dom.SetAttr(n, "id", v.String())
	})
	j.accessor(obj, "tagName", func() goja.Value {
		return j.vm.ToValue(strings.ToUpper(dom.Tag(n)))
	}, nil)
	j.accessor(obj, "textContent", func() goja.Value {
		return j.vm.ToValue(dom.TextContent(n))
	}, func(v goja.Value) {
		dom.SetText(n, v.String())
	})
	j.accessor(obj, "innerHTML", func() goja.Value {
		return j.vm.ToValue(dom.InnerHTML(n))
	}, func(v goja.Value) {
		if err := dom.SetInnerHTML(n, v.String()); err != nil {
			panic(j.vm.NewGoError(err))
		}
	})
	j.accessor(obj, "value", func() goja.Value {
		return j.vm.ToValue(dom.Value(n))
	}, func(v goja.Value) {
		dom.SetValue(n, v.String())
	})
	j.accessor(obj, "checked", func() goja.Value {
		return j.vm.ToValue(dom.HasAttr(n, "checked"))
	}, func(v goja.Value) {
		if v.ToBoolean() {
			dom.SetAttr(n, "checked", "")
		} else {
			dom.RemoveAttr(n, "checked")
		}
	})
	j.accessor(obj, "parentElement", func() goja.Value {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return j.wrap(n.Parent)
	}, nil)

	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		v, ok := dom.Attr(n, call.Argument(0).String())
		if !ok {
			return goja.Null()
		}
		return j.vm.ToValue(v)
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		dom.SetAttr(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		dom.RemoveAttr(n, call.Argument(0).String())
		return goja.Undefined()
	})
	obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		return j.vm.ToValue(dom.HasAttr(n, call.Argument(0).String()))
	})
	obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return j.querySelector(n, call.Argument(0).String())
	})
	obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return j.querySelectorAll(n, call.Argument(0).String())
	})
	obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		j.listen(n, call)
		return goja.Undefined()
	})
	obj.Set("click", func(goja.FunctionCall) goja.Value {
		j.host.Document().Click(j.ctx, n)
		return goja.Undefined()
	})
	return obj
}
