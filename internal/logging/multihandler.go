package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler writes each console record to every configured output: the
// session log file, the OTel bridge and Graylog when enabled.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler drops nil outputs so callers can pass disabled sinks as is.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	outputs := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			outputs = append(outputs, h)
		}
	}
	return &MultiHandler{handlers: outputs}
}

// Enabled reports whether at least one output accepts level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers r to every output that accepts its level. A failing output
// (an unreachable Graylog, a closed log file) does not keep the record from
// the others; the failures are joined into the returned error.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) each(fn func(slog.Handler) slog.Handler) *MultiHandler {
	outputs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		outputs[i] = fn(h)
	}
	return &MultiHandler{handlers: outputs}
}
