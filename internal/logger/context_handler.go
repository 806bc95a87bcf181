package logger

import (
	"context"
	"log/slog"

	"github.com/garyellow/cardbot/internal/ctxutil"
)

// ContextHandler decorates another slog.Handler and adds the turn's
// conversation_id, activity_id and request_id from the context to every record.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler creates a new ContextHandler that wraps the provided handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds tracing attributes and delegates.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := ctxutil.GetConversationID(ctx); id != "" {
		r.AddAttrs(slog.String("conversation_id", id))
	}
	if id := ctxutil.GetActivityID(ctx); id != "" {
		r.AddAttrs(slog.String("activity_id", id))
	}
	if id, ok := ctxutil.GetRequestID(ctx); ok {
		r.AddAttrs(slog.String("request_id", id))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a ContextHandler over handler.WithAttrs(attrs).
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a ContextHandler over handler.WithGroup(name).
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
