package hxnav

import (
	"net/http"

	"github.com/a-h/templ"
)

// Render writes a templ component to the HTTP response.
//
// Sets Content-Type to text/html and renders the component using the
// request's context. Pages served to hxnav are ordinary full documents, so
// the same handler serves the first load and every navigation:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    hxnav.Render(w, r, layout(content()))
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsNavigation returns true if the request was sent by a hxnav runtime.
//
// Every page fetch, script fetch and form submission carries
// HN-Request: true. Use it to skip work only a first load needs:
//
//	if !hxnav.IsNavigation(r) {
//	    preloadFonts(w)
//	}
func IsNavigation(r *http.Request) bool {
	return r.Header.Get(HeaderRequest) == "true"
}

// CurrentURL returns the page the runtime was on when it sent the request.
//
// This is not the request URL: for a navigation from /a to /b it is /a.
// Returns empty string for requests that did not come from hxnav.
func CurrentURL(r *http.Request) string {
	return r.Header.Get(HeaderCurrentURL)
}

// SeeOther answers a form submission by sending the runtime to url.
//
// The runtime follows the redirect and navigates to wherever the response
// was finally served from:
//
//	func save(w http.ResponseWriter, r *http.Request) {
//	    // ... store the form
//	    hxnav.SeeOther(w, r, "/saved")
//	}
func SeeOther(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}
