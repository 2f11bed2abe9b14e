package script

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

var starlarkTypes = map[string]bool{
	"text/x-starlark": true,
	"text/starlark":   true,
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

const threadContextKey = "hxnav.context"

// Starlark runs Starlark page scripts. Every script executes in a fresh
// module scope; a script with a namespace publishes its globals as a module
// of that name, visible to later scripts until the namespace is torn down.
//
// Predeclared names:
//
//	store_get(key, scope="")          store_set(key, value, scope="")
//	store_create(key, value, scope="") store_delete(key, scope="")
//	storage_get(key)                  storage_set(key, value)
//	navigate(url)                     back()
//	log(msg, level="info")            json
type Starlark struct {
	host     Host
	maxSteps uint64
	modules  starlark.StringDict
}

// NewStarlark creates a Starlark engine. maxSteps bounds every execution;
// zero means unbounded.
func NewStarlark(host Host, maxSteps uint64) *Starlark {
	return &Starlark{
		host:     host,
		maxSteps: maxSteps,
		modules:  make(starlark.StringDict),
	}
}

func (s *Starlark) Name() string { return "starlark" }

func (s *Starlark) Supports(typ string) bool {
	return starlarkTypes[normalizeType(typ)]
}

func (s *Starlark) thread(ctx context.Context, name string) (*starlark.Thread, func() bool) {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			s.host.Logger().InfoContext(ctx, msg, "source", "starlark", "script", name)
		},
	}
	thread.SetLocal(threadContextKey, ctx)
	if s.maxSteps > 0 {
		thread.SetMaxExecutionSteps(s.maxSteps)
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	return thread, stop
}

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(threadContextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func (s *Starlark) exec(ctx context.Context, src Source) (starlark.StringDict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	thread, stop := s.thread(ctx, src.Name)
	defer stop()
	globals, err := starlark.ExecFileOptions(fileOptions, thread, src.Name, src.Code, s.predeclared())
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", src.Name, err)
	}
	return globals, nil
}

func (s *Starlark) Run(ctx context.Context, src Source) error {
	globals, err := s.exec(ctx, src)
	if err != nil {
		return err
	}
	if src.Namespace != "" {
		s.modules[src.Namespace] = &starlarkstruct.Module{Name: src.Namespace, Members: globals}
	}
	return nil
}

func (s *Starlark) Exports(ctx context.Context, src Source) (Exports, error) {
	globals, err := s.exec(ctx, src)
	if err != nil {
		return nil, err
	}
	return &starlarkExports{s: s, name: src.Name, globals: globals}, nil
}

func (s *Starlark) DeleteGlobal(name string) bool {
	if _, ok := s.modules[name]; !ok {
		return false
	}
	delete(s.modules, name)
	return true
}

func (s *Starlark) HasGlobal(name string) bool {
	_, ok := s.modules[name]
	return ok
}

func (s *Starlark) predeclared() starlark.StringDict {
	env := starlark.StringDict{
		"store_get":    starlark.NewBuiltin("store_get", s.storeGet),
		"store_set":    starlark.NewBuiltin("store_set", s.storeSet),
		"store_create": starlark.NewBuiltin("store_create", s.storeCreate),
		"store_delete": starlark.NewBuiltin("store_delete", s.storeDelete),
		"storage_get":  starlark.NewBuiltin("storage_get", s.storageGet),
		"storage_set":  starlark.NewBuiltin("storage_set", s.storageSet),
		"navigate":     starlark.NewBuiltin("navigate", s.navigate),
		"back":         starlark.NewBuiltin("back", s.back),
		"log":          starlark.NewBuiltin("log", s.log),
		"json":         json.Module,
	}
	for name, mod := range s.modules {
		env[name] = mod
	}
	return env
}

func (s *Starlark) storeGet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, scope string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "scope?", &scope); err != nil {
		return nil, err
	}
	v, ok := s.host.StoreGet(scope, key)
	if !ok {
		return starlark.None, nil
	}
	return toStarlark(v)
}

func (s *Starlark) storeSet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, scope string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "value", &value, "scope?", &scope); err != nil {
		return nil, err
	}
	s.host.StoreSet(scope, key, fromStarlark(value))
	return starlark.None, nil
}

func (s *Starlark) storeCreate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, scope string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "value", &value, "scope?", &scope); err != nil {
		return nil, err
	}
	s.host.StoreCreate(scope, key, fromStarlark(value))
	return starlark.None, nil
}

func (s *Starlark) storeDelete(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, scope string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "scope?", &scope); err != nil {
		return nil, err
	}
	s.host.StoreDelete(scope, key)
	return starlark.None, nil
}

func (s *Starlark) storageGet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key); err != nil {
		return nil, err
	}
	v, err := s.host.StorageGet(key)
	if err != nil {
		return nil, err
	}
	return toStarlark(v)
}

func (s *Starlark) storageSet(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "value", &value); err != nil {
		return nil, err
	}
	return starlark.None, s.host.StorageSet(key, fromStarlark(value))
}

func (s *Starlark) navigate(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &target); err != nil {
		return nil, err
	}
	s.host.Navigate(threadContext(thread), target)
	return starlark.None, nil
}

func (s *Starlark) back(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	s.host.Back(threadContext(thread))
	return starlark.None, nil
}

func (s *Starlark) log(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	level := "info"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "msg", &msg, "level?", &level); err != nil {
		return nil, err
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	s.host.Logger().Log(threadContext(thread), lvl, msg, "source", "starlark", "script", thread.Name)
	return starlark.None, nil
}

type starlarkExports struct {
	s       *Starlark
	name    string
	globals starlark.StringDict
}

func (e *starlarkExports) Names() []string {
	var names []string
	for name, v := range e.globals {
		if _, ok := v.(starlark.Callable); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (e *starlarkExports) Has(name string) bool {
	_, ok := e.globals[name].(starlark.Callable)
	return ok
}

func (e *starlarkExports) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := e.globals[name].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	thread, stop := e.s.thread(ctx, e.name)
	defer stop()

	tuple := make(starlark.Tuple, len(args))
	for i, a := range args {
		v, err := toStarlark(a)
		if err != nil {
			return nil, fmt.Errorf("export %s: argument %d: %w", name, i, err)
		}
		tuple[i] = v
	}
	res, err := starlark.Call(thread, fn, tuple, nil)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", name, err)
	}
	return fromStarlark(res), nil
}
