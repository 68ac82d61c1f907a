// Package logging provides the leveled slog logger used by every command.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// LevelTrace is below Debug and enables per-tick output.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps "info", "debug", "trace" or "warn" (case-insensitive) to a
// slog.Level. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	case "warn":
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled text logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
