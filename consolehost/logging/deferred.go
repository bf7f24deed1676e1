package logging

import (
	"context"
	"log/slog"
)

// Deferred returns a logger that looks up slog.Default on every record.
// Components built before a renderer swaps the default logger still end up
// in the renderer's handler.
func Deferred() *slog.Logger {
	return slog.New(deferredHandler{})
}

// deferredHandler replays WithAttrs and WithGroup calls on top of whatever
// handler is the default when a record is handled.
type deferredHandler struct {
	wrap []func(slog.Handler) slog.Handler
}

func (h deferredHandler) current() slog.Handler {
	base := slog.Default().Handler()
	// a deferred logger installed as the default would resolve to itself
	if _, ok := base.(deferredHandler); ok {
		return nil
	}
	for _, w := range h.wrap {
		base = w(base)
	}
	return base
}

func (h deferredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	cur := h.current()
	return cur != nil && cur.Enabled(ctx, level)
}

func (h deferredHandler) Handle(ctx context.Context, r slog.Record) error {
	cur := h.current()
	if cur == nil {
		return nil
	}
	return cur.Handle(ctx, r)
}

func (h deferredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h deferredHandler) WithGroup(name string) slog.Handler {
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h deferredHandler) with(w func(slog.Handler) slog.Handler) deferredHandler {
	wrap := make([]func(slog.Handler) slog.Handler, len(h.wrap), len(h.wrap)+1)
	copy(wrap, h.wrap)
	return deferredHandler{wrap: append(wrap, w)}
}
