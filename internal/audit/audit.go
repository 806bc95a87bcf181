// Package audit checks that every catalog card can be loaded, both once at
// startup (gating readiness) and on a cron schedule afterwards.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyellow/cardbot/internal/card"
	"github.com/garyellow/cardbot/internal/logger"
	"github.com/garyellow/cardbot/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Report is the outcome of one audit run.
type Report struct {
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Cards     []card.CardStatus `json:"-"`
	Available int               `json:"available"`
	Total     int               `json:"total"`
}

// Healthy reports whether every card loaded.
func (r Report) Healthy() bool {
	return r.Total > 0 && r.Available == r.Total
}

// Failed returns the entries that did not load.
func (r Report) Failed() []card.CardStatus {
	var failed []card.CardStatus
	for _, c := range r.Cards {
		if !c.OK() {
			failed = append(failed, c)
		}
	}
	return failed
}

// Auditor runs catalog audits and publishes the results.
type Auditor struct {
	loader    *card.Loader
	readiness *ReadinessState
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu   sync.RWMutex
	last *Report
}

// NewAuditor creates an auditor. readiness may be nil.
func NewAuditor(loader *card.Loader, readiness *ReadinessState, log *logger.Logger, m *metrics.Metrics) *Auditor {
	if log == nil {
		log = logger.Discard()
	}
	return &Auditor{
		loader:    loader,
		readiness: readiness,
		logger:    log.WithModule("audit"),
		metrics:   m,
	}
}

// Run audits the catalog once. A finished run marks the service ready even
// when some cards fail, since turns for the remaining cards still succeed.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	cards, err := a.loader.Audit(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("audit catalog: %w", err)
	}

	report := Report{
		StartedAt: start,
		Duration:  time.Since(start),
		Cards:     cards,
		Total:     len(cards),
	}
	for _, c := range cards {
		a.metrics.SetCardAvailable(c.Name, c.OK())
		if c.OK() {
			report.Available++
			continue
		}
		a.logger.WithError(c.Err).
			WithField("card", c.Name).
			WithField("index", c.Index).
			Warn("Card failed audit")
	}

	status := "healthy"
	if !report.Healthy() {
		status = "degraded"
	}
	a.metrics.RecordAudit(status, report.Duration.Seconds())
	a.logger.WithField("available", report.Available).
		WithField("total", report.Total).
		WithField("duration_ms", report.Duration.Milliseconds()).
		Info("Catalog audit finished")

	a.mu.Lock()
	a.last = &report
	a.mu.Unlock()

	if a.readiness != nil {
		a.readiness.MarkReady()
	}
	return report, nil
}

// Last returns the most recent report.
func (a *Auditor) Last() (Report, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return Report{}, false
	}
	return *a.last, true
}

// Scheduler re-runs audits on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// Schedule starts periodic audits using a standard five-field cron spec
// (descriptors such as "@every 10m" are accepted). Overlapping runs are
// skipped. Each run is bounded by timeout.
func (a *Auditor) Schedule(spec string, timeout time.Duration) (*Scheduler, error) {
	if spec == "" {
		return nil, errors.New("audit: schedule is required")
	}

	cl := cronLogger{log: a.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := a.Run(ctx); err != nil {
			a.logger.WithError(err).Error("Scheduled audit failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("audit: invalid schedule %q: %w", spec, err)
	}

	c.Start()
	return &Scheduler{cron: c}, nil
}

// Stop stops scheduling and waits for a running audit or ctx, whichever
// ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithError(err).Error("cron: "+msg, keysAndValues...)
}
