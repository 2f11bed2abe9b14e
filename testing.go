package hxnav

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"golang.org/x/net/html"

	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/logs"
)

// TestSite is an in-process website for exercising a runtime.
//
// Pages are registered by path and served as full HTML documents. Every
// request is recorded, so tests can check what the runtime fetched and
// which headers it sent:
//
//	site := hxnav.NewTestSite(t)
//	site.Page("/a", `<html><body><main>A <a href="/b">b</a></main></body></html>`)
//	site.Page("/b", `<html><body><main>B</main></body></html>`)
//
//	rt := hxnav.OpenTest(t, site, "/a", hxnav.Options{Mount: "main"})
//	rt.ClickSelector("a")
//	if got := rt.Text("main"); got != "B" {
//	    t.Errorf("main = %q, want %q", got, "B")
//	}
type TestSite struct {
	Server *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	blocks   map[string]*testBlock
	requests []TestRequest
}

// TestRequest is a request received by a TestSite.
type TestRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

type testBlock struct {
	arrived chan struct{}
	release chan struct{}
}

// NewTestSite starts a site that is closed when the test ends.
func NewTestSite(t testing.TB) *TestSite {
	t.Helper()
	s := &TestSite{
		routes: make(map[string]http.HandlerFunc),
		blocks: make(map[string]*testBlock),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Server.Close)
	return s
}

// URL returns the absolute URL of path on the site.
func (s *TestSite) URL(path string) string {
	return s.Server.URL + path
}

// Page serves body as an HTML document at path.
func (s *TestSite) Page(path, body string) {
	s.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	})
}

// Script serves body as JavaScript at path.
func (s *TestSite) Script(path, body string) {
	s.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		io.WriteString(w, body)
	})
}

// Status answers path with code and body.
func (s *TestSite) Status(path string, code int, body string) {
	s.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		io.WriteString(w, body)
	})
}

// Redirect answers path with a 303 to target.
func (s *TestSite) Redirect(path, target string) {
	s.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// Handle serves path with h.
func (s *TestSite) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = h
}

// Block holds the next request for path until release is called. arrived
// is closed once that request reaches the site. Use it to observe a
// runtime while a navigation is in flight:
//
//	arrived, release := site.Block("/slow")
//	go func() { done <- rt.Go(ctx, "/slow") }()
//	<-arrived
//	// the runtime is navigating here
//	release()
func (s *TestSite) Block(path string) (arrived <-chan struct{}, release func()) {
	b := &testBlock{
		arrived: make(chan struct{}),
		release: make(chan struct{}),
	}
	s.mu.Lock()
	s.blocks[path] = b
	s.mu.Unlock()

	var once sync.Once
	return b.arrived, func() { once.Do(func() { close(b.release) }) }
}

// Requests returns every request received so far.
func (s *TestSite) Requests() []TestRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TestRequest(nil), s.requests...)
}

// Count returns how many requests path received.
func (s *TestSite) Count(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (s *TestSite) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, TestRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	block := s.blocks[r.URL.Path]
	delete(s.blocks, r.URL.Path)
	h := s.routes[r.URL.Path]
	s.mu.Unlock()

	if block != nil {
		close(block.arrived)
		select {
		case <-block.release:
		case <-r.Context().Done():
			return
		}
	}
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// TestRuntime is a runtime opened on a TestSite page, with its logs and
// hard navigations recorded.
type TestRuntime struct {
	*Runtime
	Site *TestSite
	Logs *LogRecorder

	mu       sync.Mutex
	assigned []string
}

// OpenTest loads path from site into a fresh document and starts a runtime
// on it. opts.Client, opts.Logger and opts.OnAssign are set by the harness
// unless the test provides them; hard navigations are recorded rather
// than performed. The test fails if the page cannot be opened.
func OpenTest(t testing.TB, site *TestSite, path string, opts Options) *TestRuntime {
	t.Helper()
	tr := &TestRuntime{Site: site}
	if opts.Client == nil {
		opts.Client = site.Server.Client()
	}
	if opts.Logger == nil {
		opts.Logger, tr.Logs = CaptureLogs()
	}
	if opts.OnAssign == nil {
		opts.OnAssign = func(ctx context.Context, u *url.URL) {
			tr.mu.Lock()
			defer tr.mu.Unlock()
			tr.assigned = append(tr.assigned, u.String())
		}
	}

	tr.Runtime = New(dom.New(nil, nil), opts)
	if err := tr.Open(context.Background(), site.URL(path)); err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return tr
}

// Assigned returns the hard navigations requested so far.
func (tr *TestRuntime) Assigned() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.assigned...)
}

// Find returns the first element matching selector, nil if none does.
func (tr *TestRuntime) Find(selector string) *html.Node {
	n, err := dom.SelectOne(tr.doc.Root(), selector)
	if err != nil {
		return nil
	}
	return n
}

// Text returns the trimmed text of the first element matching selector.
func (tr *TestRuntime) Text(selector string) string {
	n := tr.Find(selector)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(dom.TextContent(n))
}

// ClickSelector clicks the first element matching selector. It reports
// false when nothing matched or the default action was prevented.
func (tr *TestRuntime) ClickSelector(selector string) bool {
	n := tr.Find(selector)
	if n == nil {
		return false
	}
	return tr.doc.Click(context.Background(), n)
}

// Path returns the path of the document location.
func (tr *TestRuntime) Path() string {
	if loc := tr.doc.Location(); loc != nil {
		return loc.Path
	}
	return ""
}

// Events counts the custom events of type typ dispatched from now on.
func (tr *TestRuntime) Events(typ string) *EventRecorder {
	rec := &EventRecorder{}
	tr.doc.AddEventListener(nil, typ, func(ev *dom.Event) {
		rec.Details = append(rec.Details, ev.Detail)
	})
	return rec
}

// EventRecorder collects the details of recorded events.
type EventRecorder struct {
	Details []any
}

// Count returns how many events were recorded.
func (r *EventRecorder) Count() int {
	return len(r.Details)
}

// LogRecorder keeps the records of a logger built by CaptureLogs.
type LogRecorder struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	records []slog.Record
}

// CaptureLogs returns a debug level logger that records every line, with
// navigation ids attached the way the runtime's own logger does.
func CaptureLogs() (*slog.Logger, *LogRecorder) {
	rec := &LogRecorder{}
	text := slog.NewTextHandler(&lockedWriter{rec: rec}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(&logs.Handler{Handler: &recordingHandler{Handler: text, rec: rec}}), rec
}

// Messages returns the messages logged at level or above.
func (r *LogRecorder) Messages(level slog.Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.records {
		if rec.Level >= level {
			out = append(out, rec.Message)
		}
	}
	return out
}

// Contains reports whether a record at level or above has a message
// containing substr.
func (r *LogRecorder) Contains(level slog.Level, substr string) bool {
	for _, m := range r.Messages(level) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// String returns the text rendering of every record.
func (r *LogRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

type recordingHandler struct {
	slog.Handler
	rec *LogRecorder
}

func (h *recordingHandler) Handle(ctx context.Context, record slog.Record) error {
	h.rec.mu.Lock()
	h.rec.records = append(h.rec.records, record.Clone())
	h.rec.mu.Unlock()
	return h.Handler.Handle(ctx, record)
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{Handler: h.Handler.WithAttrs(attrs), rec: h.rec}
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return &recordingHandler{Handler: h.Handler.WithGroup(name), rec: h.rec}
}

type lockedWriter struct {
	rec *LogRecorder
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.rec.mu.Lock()
	defer w.rec.mu.Unlock()
	return w.rec.buf.Write(p)
}
