package logging

import (
	"context"
	"log/slog"
)

type correlationKey struct{}

// correlation identifies one interpretation across log lines.
type correlation struct {
	id     string
	source string
}

func fromContext(ctx context.Context) correlation {
	c, _ := ctx.Value(correlationKey{}).(correlation)
	return c
}

// WithInterpretationID tags ctx with the id of one interpretation call.
func WithInterpretationID(ctx context.Context, id string) context.Context {
	c := fromContext(ctx)
	c.id = id
	return context.WithValue(ctx, correlationKey{}, c)
}

// WithSource tags ctx with where the script came from: a file path, "stdin"
// or an MCP tool name.
func WithSource(ctx context.Context, source string) context.Context {
	c := fromContext(ctx)
	c.source = source
	return context.WithValue(ctx, correlationKey{}, c)
}

func WithIDs(ctx context.Context, interpretationID, source string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlation{id: interpretationID, source: source})
}

func InterpretationID(ctx context.Context) string { return fromContext(ctx).id }

func Source(ctx context.Context) string { return fromContext(ctx).source }

// CorrelationHandler adds interpretation_id and source from the record's
// context to every record. Empty values are left out.
type CorrelationHandler struct {
	inner slog.Handler
}

func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	c := fromContext(ctx)
	if c.id != "" {
		r.AddAttrs(slog.String("interpretation_id", c.id))
	}
	if c.source != "" {
		r.AddAttrs(slog.String("source", c.source))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewCorrelationHandler(h.inner.WithAttrs(attrs))
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return NewCorrelationHandler(h.inner.WithGroup(name))
}
