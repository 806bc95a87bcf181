// Package app wires the card bot's dependencies and runs the HTTP host.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/garyellow/cardbot/internal/audit"
	"github.com/garyellow/cardbot/internal/bot"
	"github.com/garyellow/cardbot/internal/buildinfo"
	"github.com/garyellow/cardbot/internal/card"
	"github.com/garyellow/cardbot/internal/cardstore"
	"github.com/garyellow/cardbot/internal/config"
	"github.com/garyellow/cardbot/internal/logger"
	"github.com/garyellow/cardbot/internal/metrics"
	"github.com/garyellow/cardbot/internal/ratelimit"
	"github.com/garyellow/cardbot/internal/sentry"
	"github.com/garyellow/cardbot/internal/webhook"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName identifies this service in logs and responses.
const ServiceName = "cardbot"

const sentryFlushTimeout = 2 * time.Second

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg       *config.Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	store     cardstore.Store
	loader    *card.Loader
	limiter   *ratelimit.KeyedLimiter
	webhook   *webhook.Handler
	auditor   *audit.Auditor
	readiness *audit.ReadinessState
	router    *gin.Engine
	server    *http.Server
	wg        sync.WaitGroup // startup audit
}

// Initialize creates the logger, error tracking and card store, then wires
// the rest of the application.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStack.Token,
		BetterStackEndpoint: cfg.BetterStack.Endpoint,
	})
	log = log.WithField("service", ServiceName)
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog calls pick up conversation and request ids too.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.String()).Info("Initializing application...")

	release := cfg.Sentry.Release
	if release == "" {
		release = buildinfo.Version
	}
	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.Sentry.Token,
		Host:        cfg.Sentry.Host,
		Environment: cfg.Sentry.Environment,
		Release:     release,
		SampleRate:  cfg.Sentry.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	if sentry.IsEnabled() {
		log.WithField("host", cfg.Sentry.Host).Info("Error tracking enabled")
	}

	store, err := cardstore.Open(ctx, cfg.Store.CardStore())
	if err != nil {
		return nil, fmt.Errorf("card store: %w", err)
	}
	log.WithField("backend", store.Name()).Info("Card store opened")

	app, err := build(cfg, log, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Info("Initialization complete")
	return app, nil
}

// build wires everything that does not touch process-global state.
func build(cfg *config.Config, log *logger.Logger, store cardstore.Store) (*Application, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	loader := card.NewLoader(store, card.DefaultCatalog(), card.WithLoaderMetrics(m))
	cardBot, err := bot.NewCardBot(loader, bot.WithLogger(log), bot.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "conversation",
		Burst:         cfg.RateLimit.Burst,
		RefillRate:    cfg.RateLimit.RefillPerSec,
		CleanupPeriod: cfg.RateLimit.Cleanup,
		Metrics:       m,
	})

	handler, err := webhook.NewHandler(webhook.HandlerConfig{
		Bot:               cardBot,
		Limiter:           limiter,
		Metrics:           m,
		Logger:            log,
		TurnTimeout:       cfg.TurnTimeout,
		TextPreviewLength: cfg.TextPreviewLength,
		MaxBodyBytes:      cfg.MaxBodyBytes,
	})
	if err != nil {
		limiter.Stop()
		return nil, fmt.Errorf("webhook: %w", err)
	}

	readiness := audit.NewReadinessState(cfg.Audit.ReadinessTimeout)

	app := &Application{
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		registry:  registry,
		store:     store,
		loader:    loader,
		limiter:   limiter,
		webhook:   handler,
		auditor:   audit.NewAuditor(loader, readiness, log, m),
		readiness: readiness,
	}
	app.router = app.routes()
	app.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.router,
		ReadHeaderTimeout: config.HTTPReadHeader,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      cfg.HTTPWrite(),
		IdleTimeout:       config.HTTPIdle,
	}
	return app, nil
}

func (a *Application) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.serviceInfo)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.POST("/api/messages", a.readinessMiddleware(), a.webhook.Handle)
	router.GET("/metrics",
		metricsAuthMiddleware(a.metrics, a.cfg.Metrics.Username, a.cfg.Metrics.Password),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	return router
}

func (a *Application) serviceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": ServiceName,
		"version": buildinfo.String(),
		"cards":   a.loader.Catalog().Len(),
	})
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	if !a.readiness.IsReady() {
		status := a.readiness.Status()
		a.logger.WithField("elapsed_seconds", status.ElapsedSeconds).
			WithField("timeout_seconds", status.TimeoutSeconds).
			Debug("Readiness check: audit in progress")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": status.Reason,
			"progress": gin.H{
				"elapsed_seconds": status.ElapsedSeconds,
				"timeout_seconds": status.TimeoutSeconds,
			},
		})
		return
	}

	body := gin.H{
		"status": "ready",
		"store":  a.store.Name(),
	}
	if report, ok := a.auditor.Last(); ok {
		failed := make([]string, 0, len(report.Failed()))
		for _, s := range report.Failed() {
			failed = append(failed, s.Name)
		}
		body["audit"] = gin.H{
			"finished_at": report.StartedAt.Add(report.Duration).UTC().Format(time.RFC3339),
			"available":   report.Available,
			"total":       report.Total,
			"failed":      failed,
		}
	} else {
		body["audit"] = gin.H{"reason": a.readiness.Status().Reason}
	}
	c.JSON(http.StatusOK, body)
}

// readinessMiddleware rejects turns with 503 until the startup audit
// completes or the readiness timeout passes.
func (a *Application) readinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.readiness.IsReady() {
			a.metrics.RecordHTTPError("not_ready")
			c.Header("Retry-After", "5")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":       "service starting",
				"retry_after": 5,
			})
			return
		}
		c.Next()
	}
}

// Run starts the HTTP server and background jobs, blocks until SIGINT or
// SIGTERM, then shuts down.
//
// Shutdown order:
//  1. Stop the audit scheduler so no new audit starts
//  2. Stop accepting requests and drain in-flight turns
//  3. Wait for the startup audit
//  4. Close the limiter and the store, flush Sentry and the logger
func (a *Application) Run() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	scheduler := a.startBackgroundJobs()
	serverErr := a.startHTTPServer()

	var runErr error
	select {
	case sig := <-quit:
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErr:
		a.logger.WithError(err).Error("HTTP server error")
		runErr = err
	}

	return errors.Join(runErr, a.shutdown(scheduler))
}

// startBackgroundJobs runs the startup audit and, when configured, the
// periodic audit schedule.
func (a *Application) startBackgroundJobs() *audit.Scheduler {
	a.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Audit.Timeout)
		defer cancel()
		if _, err := a.auditor.Run(ctx); err != nil {
			a.logger.WithError(err).Error("Startup audit failed")
		}
	})

	if a.cfg.Audit.Schedule == "" {
		return nil
	}
	scheduler, err := a.auditor.Schedule(a.cfg.Audit.Schedule, a.cfg.Audit.Timeout)
	if err != nil {
		a.logger.WithError(err).Error("Audit schedule disabled")
		return nil
	}
	a.logger.WithField("schedule", a.cfg.Audit.Schedule).Info("Catalog audits scheduled")
	return scheduler
}

func (a *Application) startHTTPServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func (a *Application) shutdown(scheduler *audit.Scheduler) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			a.logger.WithError(err).Warn("Audit scheduler stop timed out")
		}
	}

	a.logger.Info("Stopping HTTP server...")
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
		errs = append(errs, err)
	}

	a.wg.Wait()
	a.close()

	if sentry.IsEnabled() && !sentry.Flush(sentryFlushTimeout) {
		a.logger.Warn("Sentry flush timed out")
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("logger shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// close releases the limiter and the store.
func (a *Application) close() {
	a.limiter.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "card_store").Error("Component close error")
	}
}
