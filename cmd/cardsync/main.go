// Command cardsync copies the card documents into the configured writable
// store (sqlite, r2 or redis) and optionally verifies every catalog entry
// loads from it afterwards.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/garyellow/cardbot/internal/card"
	"github.com/garyellow/cardbot/internal/cardstore"
	"github.com/garyellow/cardbot/internal/config"
	"github.com/garyellow/cardbot/internal/logger"
)

// CLI flags
var (
	fromFlag    = flag.String("from", "", "Directory to read cards from (default: the embedded set)")
	cardsFlag   = flag.String("cards", "", "Comma-separated card names to copy (default: the whole catalog)")
	verifyFlag  = flag.Bool("verify", true, "Load every catalog card from the destination after copying")
	timeoutFlag = flag.Duration("timeout", 2*time.Minute, "Overall timeout")
)

type options struct {
	from    string
	names   []string
	verify  bool
	timeout time.Duration
}

// writerOpener opens the destination store.
type writerOpener func(ctx context.Context, cfg cardstore.Config) (cardstore.Writer, error)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel).WithModule("cardsync")

	opts := options{
		from:    *fromFlag,
		names:   parseCards(*cardsFlag),
		verify:  *verifyFlag,
		timeout: *timeoutFlag,
	}
	if err := syncCards(cfg, log, cardstore.OpenWriter, opts, os.Stdout); err != nil {
		log.WithError(err).Error("Card sync failed")
		os.Exit(1)
	}
}

// syncCards opens the source and destination stores and runs the copy. Both
// stores are closed before it returns.
func syncCards(cfg *config.Config, log *logger.Logger, open writerOpener, opts options, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	var src cardstore.Store = cardstore.NewEmbedded()
	if opts.from != "" {
		dir, err := cardstore.NewDir(opts.from)
		if err != nil {
			return fmt.Errorf("open source directory: %w", err)
		}
		src = dir
	}
	defer func() { _ = src.Close() }()

	dst, err := open(ctx, cfg.Store.CardStore())
	if err != nil {
		return fmt.Errorf("open destination store: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if len(opts.names) == 0 {
		opts.names = card.DefaultCatalog().Names()
	}

	log.WithField("from", src.Name()).
		WithField("to", dst.Name()).
		WithField("cards", len(opts.names)).
		Info("Syncing cards")

	return run(ctx, dst, src, opts, out)
}

// run copies opts.names from src to dst and, when asked, audits dst against
// the default catalog. A failed audit entry is reported as an error.
func run(ctx context.Context, dst cardstore.Writer, src cardstore.Store, opts options, out io.Writer) error {
	start := time.Now()
	written, err := cardstore.Seed(ctx, dst, src, opts.names)
	if err != nil {
		_, _ = fmt.Fprintf(out, "❌ Copied %d of %d cards: %v\n", written, len(opts.names), err)
		return err
	}
	_, _ = fmt.Fprintf(out, "✅ Copied %d cards to %s in %v\n", written, dst.Name(), time.Since(start).Round(time.Millisecond))

	if !opts.verify {
		return nil
	}

	statuses, err := card.NewLoader(dst, card.DefaultCatalog()).Audit(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	failed := 0
	for _, s := range statuses {
		if s.OK() {
			_, _ = fmt.Fprintf(out, "✅ %s\n", s.Name)
			continue
		}
		failed++
		_, _ = fmt.Fprintf(out, "❌ %s: %v\n", s.Name, s.Err)
	}
	_, _ = fmt.Fprintf(out, "\n📈 Summary: %d loadable, %d failed\n", len(statuses)-failed, failed)

	if failed > 0 {
		return fmt.Errorf("verify: %d of %d cards failed to load", failed, len(statuses))
	}
	return nil
}

// parseCards splits a comma-separated card list, dropping blanks.
func parseCards(cards string) []string {
	parts := strings.Split(cards, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			result = append(result, name)
		}
	}
	return result
}
