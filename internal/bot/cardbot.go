package bot

import (
	"context"
	"fmt"

	"github.com/garyellow/cardbot/internal/card"
	domerrors "github.com/garyellow/cardbot/internal/errors"
	"github.com/garyellow/cardbot/internal/logger"
	"github.com/garyellow/cardbot/internal/metrics"
)

// Fixed reply texts.
const (
	WelcomeText  = "This bot will introduce you to AdaptiveCards. Type anything to see an AdaptiveCard."
	RandomNotice = "Displaying a random card"
	Prompt       = "Please enter any text to see another card."

	// LoadFailureText is the user-facing text attached to payload load errors.
	LoadFailureText = "Sorry, that card could not be loaded right now. Please try again."
)

// WelcomeMessage returns the greeting sent to a newly added member.
func WelcomeMessage(name string) string {
	return fmt.Sprintf("Welcome to Adaptive Cards Bot %s. %s", name, WelcomeText)
}

// CardBot answers every message with an Adaptive Card chosen by keyword or at
// random, and greets members as they join.
type CardBot struct {
	loader    *card.Loader
	rules     []card.KeywordRule
	newRandom func() card.RandomSource
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

var _ Handler = (*CardBot)(nil)

// Option configures a CardBot.
type Option func(*CardBot)

// WithRules replaces the default keyword rules.
func WithRules(rules []card.KeywordRule) Option {
	return func(b *CardBot) { b.rules = append([]card.KeywordRule(nil), rules...) }
}

// WithRandomSource sets the factory called once per fallback draw.
func WithRandomSource(factory func() card.RandomSource) Option {
	return func(b *CardBot) { b.newRandom = factory }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(b *CardBot) { b.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *CardBot) { b.metrics = m }
}

// NewCardBot creates a bot over loader. The rules are checked against the
// loader's catalog.
func NewCardBot(loader *card.Loader, opts ...Option) (*CardBot, error) {
	b := &CardBot{
		loader:    loader,
		rules:     card.DefaultRules(),
		newRandom: card.NewRandomSource,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := card.ValidateRules(b.rules, loader.Catalog().Len()); err != nil {
		return nil, err
	}
	return b, nil
}

// OnMembersAdded greets every added member except the bot itself.
func (b *CardBot) OnMembersAdded(ctx context.Context, act *Activity, s Sender) error {
	for _, member := range act.MembersAdded {
		if member.ID == act.Recipient.ID {
			continue
		}
		if err := s.SendText(ctx, WelcomeMessage(member.Name)); err != nil {
			return fmt.Errorf("send welcome to %s: %w", member.ID, err)
		}
		b.metrics.RecordWelcome()
	}
	return nil
}

// OnMessage selects a card for the message text and sends, in order, the
// random-card notice (or the rule's acknowledgement, if any), the card and the
// trailing prompt. Nothing is sent when the card fails to load.
func (b *CardBot) OnMessage(ctx context.Context, act *Activity, s Sender) error {
	catalog := b.loader.Catalog()

	sel, err := card.Select(act.Text, b.rules, catalog.Len(), lazySource{factory: b.newRandom})
	if err != nil {
		return err
	}

	payload, err := b.loader.Load(ctx, sel.Index)
	if err != nil {
		return domerrors.NewWrapper("bot", "on_message").Wrap(err, LoadFailureText)
	}

	name, _ := catalog.Name(sel.Index)
	b.metrics.RecordSelection(sel.Source(), name)
	b.logger.DebugContext(ctx, "Card selected",
		"card", name,
		"source", sel.Source(),
	)

	notice := RandomNotice
	if sel.Matched {
		notice = sel.Rule.Ack
	}
	if notice != "" {
		if err := s.SendText(ctx, notice); err != nil {
			return err
		}
	}
	if err := s.SendAttachment(ctx, Attachment{ContentType: card.ContentType, Content: payload}); err != nil {
		return err
	}
	return s.SendText(ctx, Prompt)
}

// lazySource defers building a generator until a fallback draw needs one.
type lazySource struct {
	factory func() card.RandomSource
}

func (l lazySource) IntN(n int) int {
	return l.factory().IntN(n)
}
