package hxnav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/config"
	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/logs"
	"github.com/pthm/hxnav/lib/script"
	"github.com/pthm/hxnav/lib/storage"
)

// Request headers sent with every page, script and form request.
const (
	HeaderRequest    = "HN-Request"
	HeaderCurrentURL = "HN-Current-URL"
)

// EventPageChange is dispatched at the document once per completed
// navigation.
const EventPageChange = "hxnav:pagechange"

// State is the navigation state of a Runtime.
type State int32

const (
	StateIdle State = iota
	StateNavigating
)

func (s State) String() string {
	if s == StateNavigating {
		return "navigating"
	}
	return "idle"
}

// Options configures a Runtime.
type Options struct {
	// Client fetches pages, scripts and form submissions. Nil uses
	// http.DefaultClient.
	Client *http.Client
	// Logger receives every log line. Nil uses slog.Default().
	Logger *slog.Logger
	// Mount is the selector of the element swapped on navigation.
	// Empty means "body".
	Mount string
	// Animator plays the transition around a swap. Nil plays none.
	Animator Animator
	// CaptureHistory redirects the document's history traversal to Back.
	CaptureHistory bool
	// Store configures the global and page stores. Nil enables
	// CreateOnLoad and RefreshOnSet.
	Store *StoreOptions
	// Storage hydrates hn-get elements and backs the storage calls of page
	// scripts. Nil disables both.
	Storage *storage.Storage
	// MaxSteps bounds the execution steps of one Starlark call. Zero means
	// unbounded.
	MaxSteps uint64
	// Engines builds the script engines. Nil installs JavaScript and
	// Starlark.
	Engines func(script.Host) script.Engines
	// OnAssign performs hard navigations (cross-origin targets, the
	// default action of unhandled links). Nil loads the target with Open.
	OnAssign dom.AssignFunc
}

// Runtime is one document under hxnav control. It owns the navigation
// state, the global store, the component registry, the script namespaces
// and the export table of the current page.
//
// A Runtime is driven from a single goroutine, the way a browser's event
// loop drives a page. The only exception is Go and Back, which may be
// called concurrently: a call made while a navigation is in flight is
// dropped rather than queued.
type Runtime struct {
	doc       *dom.Document
	client    *http.Client
	log       *slog.Logger
	animator  Animator
	mount     string
	capture   bool
	storeOpts StoreOptions
	storage   *storage.Storage
	closers   []io.Closer

	state   atomic.Int32
	history []string
	ctx     context.Context

	engines     script.Engines
	exports     script.Exports
	store       *Store
	page        *Store
	components  *Registry
	scripts     *Scripts
	interceptor *Interceptor
	hooks       *Hooks
	started     bool
}

// New creates a runtime for doc. Call Start (or Open) before navigating.
func New(doc *dom.Document, opts Options) *Runtime {
	rt := &Runtime{
		doc:       doc,
		client:    opts.Client,
		log:       opts.Logger,
		animator:  opts.Animator,
		mount:     opts.Mount,
		capture:   opts.CaptureHistory,
		storeOpts: DefaultStoreOptions(),
		storage:   opts.Storage,
		exports:   script.NoExports,
	}
	if rt.client == nil {
		rt.client = http.DefaultClient
	}
	rt.client = stopCrossOrigin(rt.client)
	if rt.log == nil {
		rt.log = slog.Default()
	}
	if rt.mount == "" {
		rt.mount = "body"
	}
	if opts.Store != nil {
		rt.storeOpts = *opts.Store
	}

	host := &scriptHost{rt: rt}
	if opts.Engines != nil {
		rt.engines = opts.Engines(host)
	} else {
		rt.engines = script.Engines{
			script.NewJS(host),
			script.NewStarlark(host, opts.MaxSteps),
		}
	}

	rt.store = NewStore(rt, "", rt.storeOpts)
	rt.page = NewStore(rt, PagePrefix, rt.storeOpts)
	rt.components = NewRegistry(rt)
	rt.scripts = &Scripts{rt: rt}
	rt.interceptor = &Interceptor{rt: rt}
	rt.hooks = &Hooks{rt: rt}

	if doc != nil {
		if opts.OnAssign != nil {
			doc.OnAssign = opts.OnAssign
		} else {
			doc.OnAssign = rt.assign
		}
	}
	return rt
}

// NewFromConfig creates a runtime for doc from loaded configuration. The
// runtime opens the configured storage and builds its logger; Close
// releases the storage.
func NewFromConfig(doc *dom.Document, cfg config.Config, client *http.Client) (*Runtime, error) {
	level, err := logs.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logs.New(logs.Options{Level: level, Journal: cfg.Log.Journal})

	store, err := storage.Open(storage.Options{
		Path:     cfg.Storage.Path,
		InMemory: cfg.Storage.InMemory,
		Key:      []byte(cfg.Storage.Key),
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("hxnav: %w", err)
	}

	var animator Animator
	switch {
	case !cfg.PlayTransitions:
	case cfg.Transition.CSS:
		animator = ClassAnimator{InClass: cfg.Transition.InClass, OutClass: cfg.Transition.OutClass}
	default:
		animator = FadeAnimator{FrameInterval: cfg.Transition.FrameInterval}
	}

	rt := New(doc, Options{
		Client:         client,
		Logger:         logger,
		Mount:          cfg.Mount,
		Animator:       animator,
		CaptureHistory: cfg.CaptureHistory,
		Store: &StoreOptions{
			CreateOnLoad: cfg.Store.CreateOnLoad,
			RefreshOnSet: cfg.Store.RefreshOnSet,
		},
		Storage:  store,
		MaxSteps: cfg.Script.MaxSteps,
	})
	rt.closers = append(rt.closers, store)
	return rt, nil
}

// Close releases resources the runtime opened itself.
func (rt *Runtime) Close() error {
	var first error
	for _, c := range rt.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}

// Start makes the current document interactive: it creates store entries
// declared in the page, binds links, forms and hooks, and loads the page's
// exports. A runtime without a document location or HTTP client cannot
// navigate; Start then logs an error and returns ErrIncompatible without
// initializing anything.
func (rt *Runtime) Start(ctx context.Context) error {
	return rt.start(ctx, true)
}

// start initializes the current document. Open prepares the page stores
// itself before running scripts and passes prepare false.
func (rt *Runtime) start(ctx context.Context, prepare bool) error {
	if rt.doc == nil || rt.doc.Location() == nil || rt.client == nil {
		rt.log.ErrorContext(ctx, "no document to navigate, hxnav will not work")
		return ErrIncompatible
	}

	if rt.capture {
		rt.doc.History().Intercept = func(ctx context.Context, delta int) {
			rt.log.DebugContext(ctx, "history traversal redirected to back", "delta", delta)
			rt.Back(ctx)
		}
	}
	if len(rt.history) == 0 {
		rt.history = append(rt.history, normalizeURL(rt.doc.Location()))
	}

	prev := rt.ctx
	rt.ctx = ctx
	defer func() { rt.ctx = prev }()

	rt.store.CreateOnLoad()
	if prepare {
		rt.preparePage()
	}
	rt.hydrate(ctx)
	rt.interceptor.Scan(ctx)
	rt.hooks.Bind(ctx)
	if err := rt.mountExports(ctx, rt.doc.Root()); err != nil {
		rt.log.ErrorContext(ctx, "could not load page exports", "error", err)
	}

	rt.started = true
	rt.log.InfoContext(ctx, "hxnav is active", "url", rt.doc.Location().String())
	return nil
}

// Open performs a full page load of rawURL: the document is replaced by the
// fetched page, every script in its body runs, and the runtime starts.
func (rt *Runtime) Open(ctx context.Context, rawURL string) error {
	if rt.doc == nil {
		return ErrIncompatible
	}
	u, err := rt.doc.Resolve(rawURL)
	if err != nil {
		return fmt.Errorf("hxnav: open %s: %w", rawURL, err)
	}
	ctx, _ = logs.NewNavigation(ctx)

	resp, err := rt.fetch(ctx, u)
	if err != nil {
		return fmt.Errorf("hxnav: open %s: %w", u, err)
	}
	defer resp.Body.Close()
	root, err := dom.ParseTree(resp.Body)
	if err != nil {
		return fmt.Errorf("hxnav: open %s: %w", u, err)
	}

	rt.scripts.Teardown(ctx)
	rt.exports = script.NoExports
	rt.doc.Load(root, resp.Request.URL)
	rt.history = []string{normalizeURL(resp.Request.URL)}

	prev := rt.ctx
	rt.ctx = ctx
	defer func() { rt.ctx = prev }()

	rt.store.CreateOnLoad()
	rt.preparePage()

	if body := rt.doc.Body(); body != nil {
		scripts, _ := dom.Select(body, "script")
		for _, el := range scripts {
			if err := rt.scripts.Activate(ctx, el); err != nil {
				rt.log.ErrorContext(ctx, "script failed", "error", err)
			}
		}
	}
	return rt.start(ctx, false)
}

// assign is the default hard navigation.
func (rt *Runtime) assign(ctx context.Context, u *url.URL) {
	if err := rt.Open(ctx, u.String()); err != nil {
		rt.log.ErrorContext(ctx, "hard navigation failed", "url", u.String(), "error", err)
	}
}

// preparePage gives the current page a fresh page store and resolves its
// components, so the page's scripts write into stores that outlive them.
func (rt *Runtime) preparePage() {
	rt.page = NewStore(rt, PagePrefix, rt.storeOpts)
	rt.page.CreateOnLoad()
	rt.components.Refresh()
}

// Document returns the live document.
func (rt *Runtime) Document() *dom.Document {
	return rt.doc
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.log
}

// Store returns the global store.
func (rt *Runtime) Store() *Store {
	return rt.store
}

// Page returns the store of the current page. It is replaced on every
// navigation.
func (rt *Runtime) Page() *Store {
	return rt.page
}

// StoreFor returns the store of a scope: "" for the global store, "page"
// for the page store, otherwise the store of the component with that UUID.
func (rt *Runtime) StoreFor(scope string) (*Store, error) {
	switch scope {
	case "":
		return rt.store, nil
	case PagePrefix:
		return rt.page, nil
	}
	comp, err := rt.components.GetByUUID(scope)
	if err != nil {
		return nil, err
	}
	return comp.Store(), nil
}

// Components returns the component registry.
func (rt *Runtime) Components() *Registry {
	return rt.components
}

// Scripts returns the script lifecycle manager.
func (rt *Runtime) Scripts() *Scripts {
	return rt.scripts
}

// Interceptor returns the link and form interceptor.
func (rt *Runtime) Interceptor() *Interceptor {
	return rt.interceptor
}

// Hooks returns the declarative event hooks.
func (rt *Runtime) Hooks() *Hooks {
	return rt.hooks
}

// Exports returns the export table of the current page.
func (rt *Runtime) Exports() script.Exports {
	return rt.exports
}

// Engines returns the script engines.
func (rt *Runtime) Engines() script.Engines {
	return rt.engines
}

// Storage returns the persisted storage, nil when none is configured.
func (rt *Runtime) Storage() *storage.Storage {
	return rt.storage
}

// State returns the navigation state.
func (rt *Runtime) State() State {
	return State(rt.state.Load())
}

// History returns the visited URLs, oldest first, query strings stripped.
func (rt *Runtime) History() []string {
	return append([]string(nil), rt.history...)
}

// Started reports whether Start succeeded.
func (rt *Runtime) Started() bool {
	return rt.started
}

func (rt *Runtime) context() context.Context {
	if rt.ctx != nil {
		return rt.ctx
	}
	return context.Background()
}

func (rt *Runtime) mountElement() *html.Node {
	n, err := dom.SelectOne(rt.doc.Root(), rt.mount)
	if err != nil {
		rt.log.WarnContext(rt.context(), "invalid mount selector", "mount", rt.mount, "error", err)
		return nil
	}
	return n
}

// hydrate renders persisted values into hn-get elements.
func (rt *Runtime) hydrate(ctx context.Context) {
	if rt.storage == nil {
		return
	}
	attr := RoleGet.Attr()
	for _, el := range dom.WithAttr(rt.doc.Root(), attr) {
		key := dom.AttrOr(el, attr, "")
		v, err := rt.storage.Get(key)
		if IsTampered(err) {
			rt.log.ErrorContext(ctx, "stored value failed verification", "key", key, "error", err)
			continue
		}
		if err != nil {
			rt.log.WarnContext(ctx, "could not read stored value", "key", key, "error", err)
			continue
		}
		if v == nil {
			continue
		}
		dom.SetText(el, formatValue(v))
	}
}

func (rt *Runtime) setHeaders(req *http.Request) {
	req.Header.Set(HeaderRequest, "true")
	if loc := rt.doc.Location(); loc != nil {
		req.Header.Set(HeaderCurrentURL, loc.String())
	}
}

// fetch GETs u. Responses outside 2xx are returned as ErrFetchStatus with
// the body closed.
func (rt *Runtime) fetch(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	rt.setHeaders(req)

	resp, err := rt.client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := redirectedAway(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %d", ErrFetchStatus, u, resp.StatusCode)
	}
	return resp, nil
}

// leftOrigin reports a response redirecting to another origin.
type leftOrigin struct {
	target *url.URL
}

func (e *leftOrigin) Error() string {
	return fmt.Sprintf("%v: redirected to %s", ErrCrossOrigin, e.target)
}

func (e *leftOrigin) Unwrap() error {
	return ErrCrossOrigin
}

// stopCrossOrigin returns a copy of c that does not follow redirects to
// another origin. The redirect response is returned instead and surfaces
// from fetch as a leftOrigin error.
func stopCrossOrigin(c *http.Client) *http.Client {
	cp := *c
	next := c.CheckRedirect
	cp.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !sameOrigin(req.URL, via[0].URL) {
			return http.ErrUseLastResponse
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	return &cp
}

func redirectedAway(resp *http.Response) error {
	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return nil
	}
	loc, err := resp.Location()
	if err != nil || sameOrigin(loc, resp.Request.URL) {
		return nil
	}
	return &leftOrigin{target: loc}
}

// fetchScript loads an external script. Only same-origin sources are
// fetched.
func (rt *Runtime) fetchScript(ctx context.Context, u *url.URL) (string, error) {
	if !sameOrigin(u, rt.doc.Location()) {
		return "", fmt.Errorf("%w: %s", ErrCrossOrigin, u)
	}
	resp, err := rt.fetch(ctx, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Scheme == b.Scheme && a.Host == b.Host
}

// normalizeURL strips the query and fragment of u.
func normalizeURL(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.ForceQuery = false
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
