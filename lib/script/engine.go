// Package script is the capability boundary between hxnav and page scripts.
//
// Page scripts never touch the Go process directly. Each Engine evaluates
// source text inside its own interpreter and reaches the outside world only
// through a Host: the reactive stores, persisted storage, navigation and the
// live document. Two engines ship with the package:
//
//   - JS runs JavaScript on goja (script types "", "text/javascript",
//     "application/javascript", "module").
//   - Starlark runs Starlark on go.starlark.net (script types
//     "text/x-starlark", "text/starlark") with an execution step budget.
//
// Engines are combined with Engines, which picks an engine by script type.
package script

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pthm/hxnav/lib/dom"
)

var (
	// ErrExportNotFound is returned by Exports.Call for names the page
	// script does not export.
	ErrExportNotFound = errors.New("script: export not found")

	// ErrUnsupported is returned when no engine handles a script type.
	ErrUnsupported = errors.New("script: unsupported script type")
)

// Source is one script to evaluate.
type Source struct {
	// Type is the script element's type attribute.
	Type string
	// Name identifies the script in errors and logs (namespace, src URL or
	// a synthetic name for inline scripts).
	Name string
	// Namespace is the declared namespace, empty when none.
	Namespace string
	// Code is the script text.
	Code string
}

// Engine evaluates page scripts of the types it supports.
type Engine interface {
	Name() string
	Supports(typ string) bool
	// Run executes a script for its side effects.
	Run(ctx context.Context, src Source) error
	// Exports evaluates an exports script and returns its callable table.
	Exports(ctx context.Context, src Source) (Exports, error)
	// DeleteGlobal removes a global binding. It reports whether the
	// binding existed.
	DeleteGlobal(name string) bool
	HasGlobal(name string) bool
}

// Exports is the name to callable table a page script publishes.
type Exports interface {
	Names() []string
	Has(name string) bool
	// Call invokes an export. Missing names return ErrExportNotFound.
	Call(ctx context.Context, name string, args ...any) (any, error)
}

// Host is the surface page scripts can reach. Scope selects a store: "" is
// the global store, "page" the page store, anything else a component UUID.
type Host interface {
	StoreGet(scope, key string) (any, bool)
	StoreSet(scope, key string, value any)
	StoreCreate(scope, key string, value any)
	StoreDelete(scope, key string)

	StorageGet(key string) (any, error)
	StorageSet(key string, value any) error

	Navigate(ctx context.Context, url string)
	Back(ctx context.Context)

	Document() *dom.Document
	Logger() *slog.Logger
}

// Engines dispatches to the first engine supporting a script type.
type Engines []Engine

// For returns the engine for typ.
func (e Engines) For(typ string) (Engine, bool) {
	typ = normalizeType(typ)
	for _, eng := range e {
		if eng.Supports(typ) {
			return eng, true
		}
	}
	return nil, false
}

// Supports reports whether any engine handles typ.
func (e Engines) Supports(typ string) bool {
	_, ok := e.For(typ)
	return ok
}

// Run executes src on the matching engine.
func (e Engines) Run(ctx context.Context, src Source) error {
	eng, ok := e.For(src.Type)
	if !ok {
		return ErrUnsupported
	}
	return eng.Run(ctx, src)
}

// Exports evaluates an exports script on the matching engine.
func (e Engines) Exports(ctx context.Context, src Source) (Exports, error) {
	eng, ok := e.For(src.Type)
	if !ok {
		return nil, ErrUnsupported
	}
	return eng.Exports(ctx, src)
}

// DeleteGlobal removes name from every engine.
func (e Engines) DeleteGlobal(name string) bool {
	deleted := false
	for _, eng := range e {
		if eng.DeleteGlobal(name) {
			deleted = true
		}
	}
	return deleted
}

// HasGlobal reports whether any engine binds name.
func (e Engines) HasGlobal(name string) bool {
	for _, eng := range e {
		if eng.HasGlobal(name) {
			return true
		}
	}
	return false
}

func normalizeType(typ string) string {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = strings.TrimSpace(typ[:i])
	}
	return typ
}

// NoExports is an empty export table.
var NoExports Exports = noExports{}

type noExports struct{}

func (noExports) Names() []string { return nil }
func (noExports) Has(string) bool { return false }
func (noExports) Call(context.Context, string, ...any) (any, error) {
	return nil, ErrExportNotFound
}
