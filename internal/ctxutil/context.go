// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	conversationIDKey contextKey = "ctxutil.conversationID"
	activityIDKey     contextKey = "ctxutil.activityID"
	requestIDKey      contextKey = "ctxutil.requestID"
)

// WithConversationID adds the hosting platform's conversation ID to the context.
// It keys per-conversation rate limiting and log correlation.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationIDKey, conversationID)
}

// GetConversationID retrieves the conversation ID from the context.
// Returns empty string if absent.
func GetConversationID(ctx context.Context) string {
	if v, ok := ctx.Value(conversationIDKey).(string); ok {
		return v
	}
	return ""
}

// WithActivityID adds the inbound activity ID to the context.
func WithActivityID(ctx context.Context, activityID string) context.Context {
	return context.WithValue(ctx, activityIDKey, activityID)
}

// GetActivityID retrieves the activity ID from the context.
func GetActivityID(ctx context.Context) string {
	if v, ok := ctx.Value(activityIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID adds a request ID to the context for tracing.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok && requestID != ""
}

// MustGetRequestID retrieves the request ID from the context.
// Panics if the request ID is not found.
func MustGetRequestID(ctx context.Context) string {
	requestID, ok := GetRequestID(ctx)
	if !ok {
		panic("ctxutil: requestID not found")
	}
	return requestID
}

// PreserveTracing creates a detached context that keeps only tracing values.
// The new context is independent of the parent's cancellation and deadlines,
// so a turn can finish after the HTTP client goes away.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if conversationID := GetConversationID(ctx); conversationID != "" {
		newCtx = WithConversationID(newCtx, conversationID)
	}
	if activityID := GetActivityID(ctx); activityID != "" {
		newCtx = WithActivityID(newCtx, activityID)
	}
	if requestID, ok := GetRequestID(ctx); ok {
		newCtx = WithRequestID(newCtx, requestID)
	}

	return newCtx
}
