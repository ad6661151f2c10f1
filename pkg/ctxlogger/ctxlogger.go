package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// ContextHandler adds the slog attributes carried by the context to every
// record it handles.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

// AppendCtx returns a context carrying the given attribute in addition to any
// attributes already present.
func AppendCtx(ctx context.Context, attr slog.Attr) context.Context {
	attrs, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	attrs = append(attrs[:len(attrs):len(attrs)], attr)
	return context.WithValue(ctx, ctxKey{}, attrs)
}
