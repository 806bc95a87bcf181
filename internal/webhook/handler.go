// Package webhook exposes the bot over HTTP. Each POST carries one Bot
// Framework activity; the reply activities are returned in the response body.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/garyellow/cardbot/internal/bot"
	"github.com/garyellow/cardbot/internal/ctxutil"
	domerrors "github.com/garyellow/cardbot/internal/errors"
	"github.com/garyellow/cardbot/internal/logger"
	"github.com/garyellow/cardbot/internal/metrics"
	"github.com/garyellow/cardbot/internal/ratelimit"
	"github.com/garyellow/cardbot/internal/sentry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// FailureText is sent when a turn fails without a user-facing message.
const FailureText = "Sorry, something went wrong. Please try again."

// Response is the body returned for every accepted activity.
type Response struct {
	Activities []bot.Activity `json:"activities"`
}

// Handler serves POST /api/messages.
type Handler struct {
	bot               bot.Handler
	limiter           *ratelimit.KeyedLimiter
	metrics           *metrics.Metrics
	logger            *logger.Logger
	turnTimeout       time.Duration
	textPreviewLength int
	maxBodyBytes      int64
}

// HandlerConfig holds the dependencies of a Handler. Limiter and Metrics are
// optional.
type HandlerConfig struct {
	Bot         bot.Handler
	Limiter     *ratelimit.KeyedLimiter
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
	TurnTimeout time.Duration
	// TextPreviewLength caps the message text written to debug logs.
	// Selection always sees the full text.
	TextPreviewLength int
	MaxBodyBytes      int64
}

// NewHandler creates a webhook handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Bot == nil {
		return nil, fmt.Errorf("webhook: bot handler is required")
	}
	if cfg.TurnTimeout <= 0 {
		return nil, fmt.Errorf("webhook: turn timeout must be positive")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		bot:               cfg.Bot,
		limiter:           cfg.Limiter,
		metrics:           cfg.Metrics,
		logger:            log.WithModule("webhook"),
		turnTimeout:       cfg.TurnTimeout,
		textPreviewLength: cfg.TextPreviewLength,
		maxBodyBytes:      cfg.MaxBodyBytes,
	}, nil
}

// Handle is the gin handler for the messages endpoint.
func (h *Handler) Handle(c *gin.Context) {
	start := time.Now()

	requestID := c.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(RequestIDHeader, requestID)
	log := h.logger.WithRequestID(requestID)

	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	var act bot.Activity
	if err := c.ShouldBindJSON(&act); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(c, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		log.WithError(err).Debug("Invalid activity body")
		h.reject(c, http.StatusBadRequest, "invalid_json", "invalid activity JSON")
		return
	}
	if act.Type == "" {
		h.reject(c, http.StatusBadRequest, "missing_type", bot.ErrMissingActivityType.Error())
		return
	}

	label := activityLabel(act.Type)
	log = log.WithFields(map[string]any{
		"activity_type":   act.Type,
		"conversation_id": act.Conversation.ID,
	})

	if h.limiter != nil && !h.limiter.Allow(act.Conversation.ID) {
		log.Warn("Conversation rate limit exceeded")
		h.metrics.RecordTurn(label, "rate_limited", time.Since(start).Seconds())
		h.reject(c, http.StatusTooManyRequests, "rate_limited", domerrors.ErrRateLimited.Error())
		return
	}

	act.Text = removeRecipientMentions(&act)
	if act.Type == bot.ActivityTypeMessage {
		preview, cut := truncateRunes(act.Text, h.textPreviewLength)
		log.WithFields(map[string]any{
			"text_preview":   preview,
			"text_truncated": cut,
		}).Debug("Message received")
	}

	ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
	ctx = ctxutil.WithConversationID(ctx, act.Conversation.ID)
	ctx = ctxutil.WithActivityID(ctx, act.ID)

	// The turn outlives a dropped client; only the turn timeout bounds it.
	turnCtx, cancel := context.WithTimeout(sentry.Carry(ctx, ctxutil.PreserveTracing(ctx)), h.turnTimeout)
	defer cancel()

	transcript := bot.NewTranscript(&act)
	handled, err := bot.Dispatch(turnCtx, h.bot, &act, transcript)
	duration := time.Since(start)

	switch {
	case err != nil:
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		h.metrics.RecordTurn(label, status, duration.Seconds())
		log.WithError(err).WithField("duration_ms", duration.Milliseconds()).Error("Turn failed")
		sentry.CaptureTurnError(ctx, err, sentry.TurnInfo{
			ActivityType:   act.Type,
			ConversationID: act.Conversation.ID,
			ActivityID:     act.ID,
		})

		// Partial output is discarded in favor of a single notice.
		transcript.Reset()
		if sendErr := transcript.SendText(context.WithoutCancel(turnCtx), domerrors.GetUserMessage(err, FailureText)); sendErr != nil {
			log.WithError(sendErr).Warn("Failed to record failure notice")
		}
	case !handled:
		log.Debug("Activity ignored")
		h.metrics.RecordTurn(label, "ignored", duration.Seconds())
	default:
		h.metrics.RecordTurn(label, "ok", duration.Seconds())
		log.WithField("replies", transcript.Len()).
			WithField("duration_ms", duration.Milliseconds()).
			Info("Turn processed")
	}

	c.JSON(http.StatusOK, Response{Activities: transcript.Activities()})
}

// activityLabel bounds the metric label set to known activity types.
func activityLabel(t string) string {
	switch t {
	case bot.ActivityTypeMessage, bot.ActivityTypeConversationUpdate, bot.ActivityTypeMembersAdded:
		return t
	default:
		return "other"
	}
}

func (h *Handler) reject(c *gin.Context, status int, errorType, message string) {
	h.metrics.RecordHTTPError(errorType)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
