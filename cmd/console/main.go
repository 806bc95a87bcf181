// Command console plays bot turns locally against the configured card store.
// Each line typed is sent as a message; replies are printed as text and card
// summaries.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/garyellow/cardbot/internal/bot"
	"github.com/garyellow/cardbot/internal/card"
	"github.com/garyellow/cardbot/internal/cardstore"
	"github.com/garyellow/cardbot/internal/config"
	"github.com/garyellow/cardbot/internal/logger"
)

var (
	nameFlag    = flag.String("name", "User", "Display name used for the welcome message")
	historyFlag = flag.String("history", "", "Readline history file (default: none)")
)

// storeOpener opens the card store named by the config.
type storeOpener func(ctx context.Context, cfg cardstore.Config) (cardstore.Store, error)

type options struct {
	name    string
	history string
	rules   []card.KeywordRule // nil keeps the default routing table
	stdin   io.ReadCloser
	stdout  io.Writer
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithWriter(cfg.LogLevel, os.Stderr)

	opts := options{name: *nameFlag, history: *historyFlag}
	if err := run(context.Background(), cfg, log, cardstore.Open, opts); err != nil {
		log.WithError(err).Error("Console failed")
		os.Exit(1)
	}
}

// run serves the console until /quit, EOF or an interrupt on an empty line.
// The store is closed before it returns.
func run(ctx context.Context, cfg *config.Config, log *logger.Logger, open storeOpener, opts options) error {
	store, err := open(ctx, cfg.Store.CardStore())
	if err != nil {
		return fmt.Errorf("open card store: %w", err)
	}
	defer func() { _ = store.Close() }()

	botOpts := []bot.Option{bot.WithLogger(log)}
	if opts.rules != nil {
		botOpts = append(botOpts, bot.WithRules(opts.rules))
	}
	cardBot, err := bot.NewCardBot(card.NewLoader(store, card.DefaultCatalog()), botOpts...)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     opts.history,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           opts.stdin,
		Stdout:          opts.stdout,
	})
	if err != nil {
		return fmt.Errorf("start readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	s := newSession(cardBot, opts.name, cfg.TurnTimeout, rl.Stdout())
	if err := s.join(ctx); err != nil {
		log.WithError(err).Error("Welcome turn failed")
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		if strings.TrimSpace(line) == "/quit" {
			return nil
		}
		if err := s.say(ctx, line); err != nil {
			_, _ = fmt.Fprintf(rl.Stdout(), "!! %v\n", err)
		}
	}
}

// session holds the fixed conversation identities for one console run.
type session struct {
	bot     bot.Handler
	user    bot.ChannelAccount
	botID   bot.ChannelAccount
	conv    bot.ConversationAccount
	timeout time.Duration
	out     io.Writer
	seq     int
}

func newSession(h bot.Handler, name string, timeout time.Duration, out io.Writer) *session {
	return &session{
		bot:     h,
		user:    bot.ChannelAccount{ID: "console-user", Name: name},
		botID:   bot.ChannelAccount{ID: "console-bot", Name: "CardBot"},
		conv:    bot.ConversationAccount{ID: "console"},
		timeout: timeout,
		out:     out,
	}
}

// join plays the conversation update that adds the bot and the user.
func (s *session) join(ctx context.Context) error {
	return s.turn(ctx, &bot.Activity{
		Type:         bot.ActivityTypeConversationUpdate,
		MembersAdded: []bot.ChannelAccount{s.botID, s.user},
	})
}

// say plays one message turn.
func (s *session) say(ctx context.Context, text string) error {
	return s.turn(ctx, &bot.Activity{Type: bot.ActivityTypeMessage, Text: text})
}

func (s *session) turn(ctx context.Context, act *bot.Activity) error {
	s.seq++
	act.ID = fmt.Sprintf("console-%d", s.seq)
	act.ChannelID = "console"
	act.From = s.user
	act.Recipient = s.botID
	act.Conversation = s.conv

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := bot.Dispatch(ctx, s.bot, act, printer{out: s.out})
	return err
}

// printer is a Sender that writes replies to a terminal.
type printer struct {
	out io.Writer
}

func (p printer) SendText(_ context.Context, text string) error {
	_, err := fmt.Fprintf(p.out, "bot> %s\n", text)
	return err
}

func (p printer) SendAttachment(_ context.Context, att bot.Attachment) error {
	_, err := fmt.Fprintf(p.out, "bot> [%s] %s\n", att.ContentType, cardSummary(att.Content))
	return err
}

// cardSummary describes an Adaptive Card in one line: its speak text when
// present, otherwise the first text block.
func cardSummary(content any) string {
	payload, ok := content.(card.Payload)
	if !ok {
		if m, isMap := content.(map[string]any); isMap {
			payload = m
		} else {
			return fmt.Sprintf("%T", content)
		}
	}

	if speak, ok := payload["speak"].(string); ok && speak != "" {
		return truncate(speak, 80)
	}
	if text := firstText(payload["body"]); text != "" {
		return truncate(text, 80)
	}
	version, _ := payload["version"].(string)
	return "AdaptiveCard " + version
}

func firstText(v any) string {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if text := firstText(item); text != "" {
				return text
			}
		}
	case map[string]any:
		if node["type"] == "TextBlock" {
			if text, ok := node["text"].(string); ok {
				return text
			}
		}
		for _, key := range []string{"items", "columns", "body"} {
			if text := firstText(node[key]); text != "" {
				return text
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
