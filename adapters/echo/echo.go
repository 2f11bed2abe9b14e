// Package hxnavecho provides Echo framework integration for sites driven by
// hxnav.
//
// Serve pages from an Echo instance or group:
//
//	e := echo.New()
//	e.Use(hxnavecho.Middleware())
//	hxnavecho.Mount(e, map[string]templ.Component{
//	    "/":      home(),
//	    "/about": about(),
//	}, hxnavecho.WithLayout(layout))
//
// Or mount on a group with middleware:
//
//	g := e.Group("/docs", authMiddleware)
//	hxnavecho.MountGroup(g, docsPages)
package hxnavecho

import (
	"net/http"
	"slices"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/hxnav"
)

// navigationKey is the Echo context key holding the navigation flag.
const navigationKey = "hxnav.navigation"

// Middleware marks requests sent by a hxnav runtime and adds
// Vary: HN-Request to every response, so caches keep navigation and
// first-load responses apart.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Add("Vary", hxnav.HeaderRequest)
			c.Set(navigationKey, hxnav.IsNavigation(c.Request()))
			return next(c)
		}
	}
}

// IsNavigation reports whether the request came from a hxnav runtime. It
// works with or without Middleware.
func IsNavigation(c echo.Context) bool {
	if v, ok := c.Get(navigationKey).(bool); ok {
		return v
	}
	return hxnav.IsNavigation(c.Request())
}

// CurrentURL returns the page the runtime was on when it sent the request.
func CurrentURL(c echo.Context) string {
	return hxnav.CurrentURL(c.Request())
}

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	layout func(templ.Component) templ.Component
}

// WithLayout wraps every mounted page in layout.
func WithLayout(layout func(templ.Component) templ.Component) Option {
	return func(o *options) {
		o.layout = layout
	}
}

// Mount registers a GET route per page on an Echo instance.
//
//	hxnavecho.Mount(e, map[string]templ.Component{"/": home()})
func Mount(e *echo.Echo, pages map[string]templ.Component, opts ...Option) {
	mount(e.GET, pages, opts)
}

// MountGroup registers a GET route per page on an Echo group, so pages
// share the group's middleware.
func MountGroup(g *echo.Group, pages map[string]templ.Component, opts ...Option) {
	mount(g.GET, pages, opts)
}

func mount(get func(string, echo.HandlerFunc, ...echo.MiddlewareFunc) *echo.Route, pages map[string]templ.Component, opts []Option) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	paths := make([]string, 0, len(pages))
	for p := range pages {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, p := range paths {
		page := pages[p]
		if o.layout != nil {
			page = o.layout(page)
		}
		get(p, func(c echo.Context) error {
			return Render(c, page)
		})
	}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxnavecho.Render(c, myTemplate())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}

// SeeOther answers a form submission by sending the runtime to url.
func SeeOther(c echo.Context, url string) error {
	return c.Redirect(http.StatusSeeOther, url)
}
