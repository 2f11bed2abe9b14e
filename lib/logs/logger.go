// Package logs builds the slog logger hxnav writes through and carries the
// navigation id every line emitted during one navigation is tagged with.
package logs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// NavigationAttr is the attribute key holding the navigation id.
const NavigationAttr = "hxnav.navigation"

type navigationKey struct{}

// NewNavigation returns ctx tagged with a fresh navigation id.
func NewNavigation(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, navigationKey{}, id), id
}

// Navigation returns the navigation id carried by ctx.
func Navigation(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(navigationKey{}).(string)
	return id, ok
}

// Handler adds the navigation id from the context to every record.
type Handler struct {
	slog.Handler
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if id, ok := Navigation(ctx); ok {
		record.Add(NavigationAttr, id)
	}
	return h.Handler.Handle(ctx, record)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{Handler: h.Handler.WithGroup(name)}
}

// Options configures New.
type Options struct {
	// Level of the text handler. Nil means info.
	Level slog.Leveler
	// Writer of the text handler. Nil means stderr.
	Writer io.Writer
	// Journal also sends records to the systemd journal when available.
	Journal bool
}

// New builds a logger fanning out to a text handler and, optionally, the
// systemd journal.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	handlers := []slog.Handler{text}

	if opts.Journal {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal unavailable", 0)
			record.Add("error", err)
			_ = text.Handle(context.Background(), record)
		} else {
			handlers = append(handlers, journal)
		}
	}

	return slog.New(&Handler{
		Handler: slogmulti.Fanout(handlers...),
	})
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logs: level %q: %w", s, err)
	}
	return level, nil
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	str = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
	return str
}
