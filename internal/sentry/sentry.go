// Package sentry wires the Sentry SDK to Better Stack error tracking and adds
// helpers for reporting failed bot turns.
package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/garyellow/cardbot/internal/ctxutil"
	"github.com/getsentry/sentry-go"
)

// Config holds the error tracking settings.
type Config struct {
	// Token is the Better Stack Errors application token. Empty disables reporting.
	Token string
	// Host is the ingesting host, e.g. "errors.betterstack.com".
	Host        string
	Environment string
	Release     string
	// SampleRate is clamped to (0, 1]; zero means report everything.
	SampleRate float64
	Debug      bool
}

// DSN builds the Sentry DSN for Better Stack. The project id is required by
// the SDK and ignored by the backend.
func (c Config) DSN() string {
	return fmt.Sprintf("https://%s@%s/1", c.Token, c.Host)
}

// Initialize configures the global hub. It is a no-op when Token is empty.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return fmt.Errorf("sentry host is required when token is provided")
	}

	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN(),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       rate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend:       scrubRequest,
	})
}

// scrubRequest drops inbound payloads; activity text is user content.
func scrubRequest(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		event.Request.Data = ""
		event.Request.Cookies = ""
	}
	return event
}

// Flush waits for buffered events. It reports whether the queue drained in time.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled reports whether a client is bound to the current hub.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// TurnInfo describes the activity whose handling failed.
type TurnInfo struct {
	ActivityType   string
	ConversationID string
	ActivityID     string
}

// CaptureTurnError reports err tagged with the turn identifiers. The hub is
// taken from ctx when the gin middleware attached one.
func CaptureTurnError(ctx context.Context, err error, turn TurnInfo) {
	if err == nil {
		return
	}
	hub := hubFromContext(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("activity_type", turn.ActivityType)
		if turn.ConversationID != "" {
			scope.SetTag("conversation_id", turn.ConversationID)
		}
		if id, ok := ctxutil.GetRequestID(ctx); ok {
			scope.SetTag("request_id", id)
		}
		if turn.ActivityID != "" {
			scope.SetContext("activity", sentry.Context{"id": turn.ActivityID})
		}
		hub.CaptureException(err)
	})
}

// CaptureException reports err on the hub bound to ctx, or the global hub.
func CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hubFromContext(ctx).CaptureException(err)
}

func hubFromContext(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// Carry copies the hub bound to from onto to, so detached turn contexts keep
// reporting to the request's scope.
func Carry(from, to context.Context) context.Context {
	if hub := sentry.GetHubFromContext(from); hub != nil {
		return sentry.SetHubOnContext(to, hub)
	}
	return to
}
