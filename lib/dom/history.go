package dom

import (
	"context"
	"net/url"
)

// History is the session history of a document: the browser-side list of
// visited entries and a cursor into it.
type History struct {
	doc     *Document
	entries []string
	index   int

	// Intercept, when set, receives every Back/Forward/Go call instead of
	// the default traversal.
	Intercept func(ctx context.Context, delta int)
}

func newHistory(d *Document) *History {
	return &History{doc: d}
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Current returns the entry under the cursor.
func (h *History) Current() string {
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[h.index]
}

// Entries returns a copy of the entries.
func (h *History) Entries() []string {
	return append([]string(nil), h.entries...)
}

func (h *History) push(entry string) {
	if len(h.entries) > 0 {
		h.entries = h.entries[:h.index+1]
	}
	h.entries = append(h.entries, entry)
	h.index = len(h.entries) - 1
}

// PushState adds an entry and moves the document location to it.
func (h *History) PushState(rawURL string) error {
	u, err := h.doc.Resolve(rawURL)
	if err != nil {
		return err
	}
	h.push(u.String())
	h.doc.location = u
	return nil
}

// ReplaceState rewrites the current entry and the document location.
func (h *History) ReplaceState(rawURL string) error {
	u, err := h.doc.Resolve(rawURL)
	if err != nil {
		return err
	}
	if len(h.entries) == 0 {
		h.entries = []string{u.String()}
		h.index = 0
	} else {
		h.entries[h.index] = u.String()
	}
	h.doc.location = u
	return nil
}

// Back is Go(ctx, -1).
func (h *History) Back(ctx context.Context) {
	h.Go(ctx, -1)
}

// Forward is Go(ctx, 1).
func (h *History) Forward(ctx context.Context) {
	h.Go(ctx, 1)
}

// Go moves the cursor by delta and hard-navigates to the entry it lands on.
// Out-of-range moves do nothing.
func (h *History) Go(ctx context.Context, delta int) {
	if h.Intercept != nil {
		h.Intercept(ctx, delta)
		return
	}
	target := h.index + delta
	if delta == 0 || target < 0 || target >= len(h.entries) {
		return
	}
	u, err := url.Parse(h.entries[target])
	if err != nil {
		return
	}
	h.index = target
	h.doc.Assign(ctx, u)
}
