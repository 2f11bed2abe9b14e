// Package hxnav turns a multi-page website into a single-page application
// without changing how its pages are served.
//
// A Runtime owns one document. Instead of letting a link load a new
// document, it fetches the target page, swaps the page's mount element (and
// any hn-rebuild regions) into the live document, and re-initializes
// everything that depended on the old page. Servers keep returning complete
// HTML documents; hxnav decides which parts of them move.
//
// # Core Concepts
//
// Pages opt into behavior through hn-* attributes:
//
//	<a href="/about">About</a>                 navigates through the runtime
//	<a href="/raw" hn-ignore>Raw</a>            left alone
//	<a href="#" hn-back>Back</a>                goes back in the runtime history
//	<header hn-rebuild>...</header>             replaced on every navigation
//	<script hn-namespace="cart">...</script>    torn down when the page is left
//
// Start binds the current document; Go and Back navigate:
//
//	rt := hxnav.New(doc, hxnav.Options{Mount: "main"})
//	if err := rt.Start(ctx); err != nil {
//	    return err
//	}
//	rep := rt.Go(ctx, "/settings")
//
// Only one navigation runs at a time. Go called while another navigation
// is in flight returns immediately with the Dropped outcome. Go never
// returns an error: the Report says how the navigation ended and which
// non-fatal steps failed along the way.
//
// # Stores
//
// A Store is a keyed set of values rendered into the elements bound to
// them. The global store binds hn-store elements and survives navigation;
// the page store binds hn-page-store elements and is recreated for every
// page. Each component (an element marked hn-component) gets a store of its
// own binding the hn-var elements inside it.
//
//	<span hn-store="user.name"></span>
//
//	rt.Store().Set("user", map[string]any{"name": "Ada"})
//
// Bindings take a dotted path whose first segment names the entry. Missing
// paths render "undefined" and log a warning rather than failing.
// hn-foreach elements repeat their hn-each template once per list item.
//
// # Scripts
//
// Page scripts run in embedded interpreters: JavaScript through goja and
// text/x-starlark through Starlark. Both see the same host surface (stores,
// persisted storage, navigation, the document). A page's exports script
// (an inline type="module" or hn-exports script) provides the functions
// that hn-onclick, hn-oninput and the other hook attributes call, and an
// optional onLoad run after every navigation.
//
// # Serving Pages
//
// Requests sent by the runtime carry HN-Request: true and HN-Current-URL.
// Render, IsNavigation and CurrentURL help handlers that want to tell them
// apart, and the attribute builders in this package produce the hn-*
// attributes for templ templates.
//
// # Testing
//
// NewTestSite and OpenTest run a runtime against an in-process site with
// logs and hard navigations recorded. See TestSite.
package hxnav
