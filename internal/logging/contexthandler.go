package logging

import (
	"context"
	"log/slog"
	"time"
)

// ContextProvider returns attributes evaluated when a record is written, such
// as the number of objects a participant currently holds.
type ContextProvider func() []slog.Attr

// Static always returns attrs.
func Static(attrs ...slog.Attr) ContextProvider {
	return func() []slog.Attr { return attrs }
}

// Gauge reports fn under key on every record.
func Gauge(key string, fn func() int) ContextProvider {
	return func() []slog.Attr { return []slog.Attr{slog.Int(key, fn())} }
}

// Uptime reports the time since start, rounded to milliseconds.
func Uptime(start time.Time) ContextProvider {
	return func() []slog.Attr {
		return []slog.Attr{slog.Duration("uptime", time.Since(start).Round(time.Millisecond))}
	}
}

// JoinProviders concatenates the attributes of ps in order. Nil providers are
// skipped.
func JoinProviders(ps ...ContextProvider) ContextProvider {
	return func() []slog.Attr {
		var out []slog.Attr
		for _, p := range ps {
			if p != nil {
				out = append(out, p()...)
			}
		}
		return out
	}
}

// WithContext returns a logger that appends p's attributes to each record
// written through it.
func WithContext(logger *slog.Logger, p ContextProvider) *slog.Logger {
	if p == nil {
		return logger
	}
	return slog.New(NewContextHandler(logger.Handler(), p))
}

// ContextHandler appends a ContextProvider's attributes to every record
// before passing it on.
type ContextHandler struct {
	next    slog.Handler
	provide ContextProvider
}

func NewContextHandler(next slog.Handler, p ContextProvider) *ContextHandler {
	return &ContextHandler{next: next, provide: p}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provide != nil {
		r.AddAttrs(h.provide()...)
	}
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewContextHandler(h.next.WithAttrs(attrs), h.provide)
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return NewContextHandler(h.next.WithGroup(name), h.provide)
}
