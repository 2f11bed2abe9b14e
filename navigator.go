package hxnav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/logs"
	"github.com/pthm/hxnav/lib/script"
)

type goOptions struct {
	transition bool
	// back replaces the top two history entries with the destination
	// instead of pushing it.
	back bool
}

// GoOption configures a single navigation.
type GoOption func(*goOptions)

// WithoutTransition skips the fade around this navigation.
func WithoutTransition() GoOption {
	return func(o *goOptions) { o.transition = false }
}

func (rt *Runtime) tryEnter() bool {
	return rt.state.CompareAndSwap(int32(StateIdle), int32(StateNavigating))
}

func (rt *Runtime) leave() {
	rt.state.Store(int32(StateIdle))
}

// Go navigates to rawURL, resolved against the document location.
//
// The page is fetched and its mount element and hn-rebuild regions replace
// the live ones. Then the previous page's script namespaces are torn down,
// the new page's scripts run, stylesheets are reloaded, links and forms are
// re-bound, stores re-render, hooks are re-bound and the page's exports are
// loaded, calling its onLoad export if it has one.
//
// Only one navigation runs at a time. A call made while another is in
// flight is dropped and reports Dropped. Go never panics and never leaves
// the runtime navigating.
func (rt *Runtime) Go(ctx context.Context, rawURL string, opts ...GoOption) Report {
	o := goOptions{transition: rt.animator != nil}
	for _, opt := range opts {
		opt(&o)
	}
	return rt.run(ctx, rawURL, o)
}

// run performs one guarded navigation. For a back navigation rawURL is
// ignored and the destination is read from the history once the runtime
// is navigating.
func (rt *Runtime) run(ctx context.Context, rawURL string, o goOptions) (rep Report) {
	rep.URL = rawURL
	if !rt.tryEnter() {
		rt.log.WarnContext(ctx, "navigation is already in progress, skipping navigation", "url", rawURL, "back", o.back)
		rep.Outcome = Dropped
		rep.Err = ErrNavigationInFlight
		return rep
	}
	defer rt.leave()

	if o.back {
		if len(rt.history) < 2 {
			rt.log.DebugContext(ctx, "no history to go back to")
			rep.Outcome = NoHistory
			rep.Err = ErrNoHistory
			return rep
		}
		rawURL = rt.history[len(rt.history)-2]
		rep.URL = rawURL
	}

	ctx, id := logs.NewNavigation(ctx)
	prev := rt.ctx
	rt.ctx = ctx
	defer func() { rt.ctx = prev }()

	defer func() {
		if r := recover(); r != nil {
			rt.log.ErrorContext(ctx, "navigation panicked", "url", rawURL, "panic", r)
			rep.Outcome = Aborted
			rep.Err = fmt.Errorf("hxnav: navigation to %s panicked: %v", rawURL, r)
		}
	}()

	rt.log.DebugContext(ctx, "navigating", "url", rawURL, "navigation", id)
	rt.navigate(ctx, rawURL, o, &rep)
	return rep
}

func (rt *Runtime) navigate(ctx context.Context, rawURL string, o goOptions, rep *Report) {
	target, err := rt.doc.Resolve(rawURL)
	if err != nil {
		rt.abort(ctx, rep, nil, fmt.Errorf("hxnav: resolve %q: %w", rawURL, err))
		return
	}
	rep.URL = target.String()

	if !sameOrigin(target, rt.doc.Location()) {
		rt.external(ctx, rep, target)
		return
	}

	mount := rt.mountElement()
	if mount == nil {
		rt.abort(ctx, rep, nil, fmt.Errorf("%w: %s", ErrMountNotFound, rt.mount))
		return
	}

	// faded is the element whose opacity an abort has to restore.
	var faded *html.Node
	if o.transition {
		faded = mount
		if err := rt.animator.FadeOut(ctx, mount); err != nil {
			if ctx.Err() != nil {
				rt.abort(ctx, rep, faded, err)
				return
			}
			rep.fault(fmt.Errorf("fade out: %w", err))
		}
	}

	rt.log.DebugContext(ctx, "requesting page", "url", target.String())
	resp, err := rt.fetch(ctx, target)
	var away *leftOrigin
	if errors.As(err, &away) {
		if faded != nil {
			dom.SetOpacity(faded, 1)
		}
		rt.external(ctx, rep, away.target)
		return
	}
	if err != nil {
		rt.abort(ctx, rep, faded, err)
		return
	}
	final := resp.Request.URL
	root, err := dom.ParseTree(resp.Body)
	resp.Body.Close()
	if err != nil {
		rt.abort(ctx, rep, faded, err)
		return
	}
	rep.URL = final.String()

	newMount, err := dom.SelectOne(root, rt.mount)
	if err != nil || newMount == nil {
		rt.abort(ctx, rep, faded, fmt.Errorf("%w: %s not in %s", ErrMountNotFound, rt.mount, final))
		return
	}

	// Everything the new page brings is collected before its nodes move
	// into the live document.
	newBody := dom.FindBody(root)
	var scripts []*html.Node
	if newBody != nil {
		scripts, _ = dom.Select(newBody, "script")
	}
	links, _ := dom.Select(root, "link")
	exportsScript := rt.scripts.findExports(ctx, root)

	if title := dom.FindTitle(root); title != "" {
		rt.doc.SetTitle(title)
	}
	rt.reconcile(ctx, newBody, newMount, mount)
	// Scripts and link classification resolve against the new page.
	rt.doc.SetLocation(final)
	rt.preparePage()

	rt.scripts.Teardown(ctx)
	for _, el := range scripts {
		if err := rt.scripts.Activate(ctx, el); err != nil {
			rt.log.ErrorContext(ctx, "script failed", "error", err)
			rep.fault(err)
		}
	}
	rt.reloadStylesheets(ctx, links)

	rt.interceptor.Scan(ctx)
	rt.store.ReloadAll()
	rt.hydrate(ctx)
	rt.hooks.Bind(ctx)

	if o.transition {
		if live := rt.mountElement(); live != nil {
			if err := rt.animator.FadeIn(ctx, live); err != nil {
				dom.SetOpacity(live, 1)
				rep.fault(fmt.Errorf("fade in: %w", err))
			}
		}
	}

	rt.doc.DispatchCustom(ctx, EventPageChange, final.String())
	if o.back {
		rt.history = rt.history[:len(rt.history)-1]
		rt.history[len(rt.history)-1] = normalizeURL(final)
	} else {
		rt.history = append(rt.history, normalizeURL(final))
	}
	if err := rt.doc.History().ReplaceState(normalizeURL(final)); err != nil {
		rep.fault(err)
	}
	rt.leave()

	rt.exports = script.NoExports
	if exportsScript != nil {
		if err := rt.loadExports(ctx, exportsScript); err != nil {
			rt.log.ErrorContext(ctx, "could not load page exports", "error", err)
			rep.fault(err)
		}
	}
	if err := rt.callOnLoad(ctx); err != nil {
		rep.fault(err)
	}

	rep.Outcome = Completed
	rt.log.InfoContext(ctx, "navigated", "url", rep.URL, "faults", len(rep.Faults))
}

// reconcile moves the new page into the live document: every hn-rebuild
// region replaces its live counterpart (same id, else the first element
// with the same tag), then the new mount element replaces the live one.
func (rt *Runtime) reconcile(ctx context.Context, newBody, newMount, mount *html.Node) {
	if newBody != nil {
		liveBody := rt.doc.Body()
		for _, region := range dom.WithAttr(newBody, RoleRebuild.Attr()) {
			// Regions inside the mount travel with it.
			if dom.IsAncestor(newMount, region) || region == newBody {
				continue
			}
			old := rt.counterpart(liveBody, region)
			if old == nil || dom.IsAncestor(mount, old) {
				rt.log.DebugContext(ctx, "no live counterpart for rebuildable region", "tag", dom.Tag(region))
				continue
			}
			dom.ReplaceWith(old, region)
			rt.log.DebugContext(ctx, "rebuilt region", "tag", dom.Tag(region), "id", dom.AttrOr(region, "id", ""))
		}
	}
	dom.ReplaceWith(mount, newMount)
	rt.doc.Prune()
}

func (rt *Runtime) counterpart(liveBody, region *html.Node) *html.Node {
	if liveBody == nil {
		return nil
	}
	if id := dom.AttrOr(region, "id", ""); id != "" {
		return dom.ByID(liveBody, id)
	}
	n, _ := dom.SelectOne(liveBody, dom.Tag(region))
	return n
}

// reloadStylesheets appends a fresh <link> to the head for every
// stylesheet of the new page, replacing a link with the same href.
func (rt *Runtime) reloadStylesheets(ctx context.Context, links []*html.Node) {
	head := rt.doc.Head()
	if head == nil {
		return
	}
	for _, link := range links {
		if !strings.Contains(strings.ToLower(dom.AttrOr(link, "rel", "")), "stylesheet") {
			continue
		}
		href := dom.AttrOr(link, "href", "")
		if href == "" {
			continue
		}
		existing, _ := dom.Select(head, "link")
		for _, old := range existing {
			if dom.AttrOr(old, "href", "") == href {
				dom.Detach(old)
			}
		}
		fresh := dom.CreateElement("link")
		dom.SetAttr(fresh, "rel", dom.AttrOr(link, "rel", ""))
		dom.SetAttr(fresh, "href", href)
		if typ, ok := dom.Attr(link, "type"); ok {
			dom.SetAttr(fresh, "type", typ)
		}
		dom.Append(head, fresh)
		rt.log.DebugContext(ctx, "reloaded stylesheet", "href", href)
	}
}

// mountExports loads the exports script found under top and calls onLoad.
func (rt *Runtime) mountExports(ctx context.Context, top *html.Node) error {
	rt.exports = script.NoExports
	el := rt.scripts.findExports(ctx, top)
	if el == nil {
		return nil
	}
	if err := rt.loadExports(ctx, el); err != nil {
		return err
	}
	return rt.callOnLoad(ctx)
}

func (rt *Runtime) loadExports(ctx context.Context, el *html.Node) error {
	typ := dom.AttrOr(el, "type", "")
	if strings.EqualFold(strings.TrimSpace(typ), "module") {
		typ = "module"
	}
	exports, err := rt.engines.Exports(ctx, script.Source{
		Type: typ,
		Name: "exports",
		Code: dom.TextContent(el),
	})
	if err != nil {
		return fmt.Errorf("exports: %w", err)
	}
	rt.exports = exports
	rt.log.DebugContext(ctx, "loaded page exports", "names", exports.Names())
	return nil
}

func (rt *Runtime) callOnLoad(ctx context.Context) error {
	if !rt.exports.Has("onLoad") {
		return nil
	}
	if _, err := rt.exports.Call(ctx, "onLoad"); err != nil {
		rt.log.ErrorContext(ctx, "onLoad failed", "function", "onLoad", "error", err)
		return err
	}
	return nil
}

// abort ends a navigation that failed before the swap.
func (rt *Runtime) abort(ctx context.Context, rep *Report, mount *html.Node, err error) {
	if mount != nil {
		dom.SetOpacity(mount, 1)
	}
	rt.log.ErrorContext(ctx, "navigation aborted", "url", rep.URL, "error", err)
	rep.Outcome = Aborted
	rep.Err = err
}

// external hands a cross-origin target to a hard navigation.
func (rt *Runtime) external(ctx context.Context, rep *Report, target *url.URL) {
	rt.log.WarnContext(ctx, "leaving current website, hxnav will not handle it", "url", target.String())
	rep.URL = target.String()
	rep.Outcome = External
	rep.Err = fmt.Errorf("%w: %s", ErrCrossOrigin, target)
	rt.leave()
	rt.doc.Assign(ctx, target)
}

// Back navigates to the previous entry of the runtime history. When the
// navigation completes, the current entry is dropped and the previous one
// becomes the top, so travelling back never grows the history. A back
// navigation that does not complete leaves the history untouched.
func (rt *Runtime) Back(ctx context.Context) Report {
	return rt.run(ctx, "", goOptions{transition: rt.animator != nil, back: true})
}

// scriptHost is the surface page scripts reach the runtime through.
type scriptHost struct {
	rt *Runtime
}

func (h *scriptHost) store(scope string) *Store {
	s, err := h.rt.StoreFor(scope)
	if errors.Is(err, ErrComponentNotFound) {
		s, err = h.componentStore(scope)
	}
	if err != nil {
		h.rt.log.WarnContext(h.rt.context(), "no store for scope", "scope", scope, "error", err)
		return nil
	}
	return s
}

// componentStore resolves a component the registry has not cached yet,
// starting from the running script when it carries the component's UUID.
func (h *scriptHost) componentStore(uuid string) (*Store, error) {
	reg := h.rt.components
	var (
		comp *Component
		err  error
	)
	if cur := h.rt.scripts.Current(); cur != nil && dom.AttrOr(cur, RoleComponentUUID.Attr(), "") == uuid {
		comp, err = reg.Resolve(cur)
	} else {
		comp, err = reg.Lookup(uuid)
	}
	if err != nil {
		return nil, err
	}
	s := comp.Store()
	s.CreateOnLoad()
	return s, nil
}

func (h *scriptHost) StoreGet(scope, key string) (any, bool) {
	if s := h.store(scope); s != nil {
		return s.Get(key)
	}
	return nil, false
}

func (h *scriptHost) StoreSet(scope, key string, value any) {
	if s := h.store(scope); s != nil {
		s.Set(key, value)
	}
}

func (h *scriptHost) StoreCreate(scope, key string, value any) {
	if s := h.store(scope); s != nil {
		s.Create(key, value)
	}
}

func (h *scriptHost) StoreDelete(scope, key string) {
	if s := h.store(scope); s != nil {
		s.Delete(key)
	}
}

func (h *scriptHost) StorageGet(key string) (any, error) {
	if h.rt.storage == nil {
		return nil, ErrNoStorage
	}
	return h.rt.storage.Get(key)
}

func (h *scriptHost) StorageSet(key string, value any) error {
	if h.rt.storage == nil {
		return ErrNoStorage
	}
	return h.rt.storage.Set(key, value)
}

func (h *scriptHost) Navigate(ctx context.Context, url string) {
	rep := h.rt.Go(ctx, url)
	if rep.Outcome != Completed && !errors.Is(rep.Err, ErrCrossOrigin) {
		h.rt.log.WarnContext(ctx, "script navigation did not complete", "url", url, "outcome", rep.Outcome.String())
	}
}

func (h *scriptHost) Back(ctx context.Context) {
	h.rt.Back(ctx)
}

func (h *scriptHost) Document() *dom.Document {
	return h.rt.doc
}

func (h *scriptHost) Logger() *slog.Logger {
	return h.rt.log
}
