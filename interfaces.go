package hxnav

import (
	"context"

	"golang.org/x/net/html"
)

// Animator plays the transition around a page swap. FadeOut runs on the
// mount element before the fetch, FadeIn on the new mount element once the
// page is in place. Both return when the transition has finished or ctx is
// done.
//
// FadeAnimator and ClassAnimator cover inline-style and CSS-class
// transitions. Custom animators only need to leave the element visible
// when FadeIn returns:
//
//	type instant struct{}
//
//	func (instant) FadeOut(context.Context, *html.Node) error { return nil }
//	func (instant) FadeIn(context.Context, *html.Node) error  { return nil }
type Animator interface {
	FadeOut(ctx context.Context, el *html.Node) error
	FadeIn(ctx context.Context, el *html.Node) error
}

// Navigator is implemented by *Runtime. Code that only moves between pages
// (a crawler walking links, a test driving a site) should accept a
// Navigator rather than the whole runtime.
//
//	func visitAll(ctx context.Context, nav hxnav.Navigator, paths []string) {
//	    for _, p := range paths {
//	        if rep := nav.Go(ctx, p); !rep.OK() {
//	            log.Printf("%s: %v", p, rep.Error())
//	        }
//	    }
//	}
type Navigator interface {
	Go(ctx context.Context, rawURL string, opts ...GoOption) Report
	Back(ctx context.Context) Report
	History() []string
}

var _ Navigator = (*Runtime)(nil)
