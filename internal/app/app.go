// Package app provides application initialization and lifecycle management.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/utsbot/uts-chatbot-go/internal/backup"
	"github.com/utsbot/uts-chatbot-go/internal/buildinfo"
	"github.com/utsbot/uts-chatbot-go/internal/chat"
	"github.com/utsbot/uts-chatbot-go/internal/config"
	"github.com/utsbot/uts-chatbot-go/internal/directory"
	"github.com/utsbot/uts-chatbot-go/internal/genai"
	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/metrics"
	"github.com/utsbot/uts-chatbot-go/internal/rag"
	"github.com/utsbot/uts-chatbot-go/internal/ratelimit"
	"github.com/utsbot/uts-chatbot-go/internal/sentry"
	"github.com/utsbot/uts-chatbot-go/internal/storage"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg           *config.Config
	logger        *logger.Logger
	closeLogger   func(context.Context) error
	db            *storage.DB
	metrics       *metrics.Metrics
	registry      *prometheus.Registry
	retriever     *rag.Retriever
	generator     *genai.FallbackGenerator
	service       *chat.Service
	limiter       *ratelimit.KeyedLimiter
	ipLimiter     *ratelimit.KeyedLimiter
	backups       *backup.Manager
	server        *http.Server
	wg            sync.WaitGroup // Track background goroutines for graceful shutdown
	sentryEnabled bool
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log, closeLogger := logger.NewWithOptions(logger.Options{
		Level:               cfg.LogLevel,
		Output:              os.Stdout,
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "uts-chatbot-go").WithField("version", buildinfo.Release())
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog.*Context() calls pick up request, session and user
	// type from the context through the default logger.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		Release:          buildinfo.Release(),
		SampleRate:       cfg.SentrySampleRate,
		TracesSampleRate: cfg.SentryTracesSampleRate,
		ServerName:       cfg.ServerName,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed, error reporting disabled")
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	parser := directory.NewParser(cfg.Chat.DirectoryEmailDomain)
	loader := knowledge.NewRepositoryLoader(db, knowledge.NewBuilder(parser), log)
	retriever := rag.NewRetriever(loader, log,
		rag.WithThreshold(cfg.Chat.FuzzyThreshold),
		rag.WithRecorder(m),
	)

	reloadCtx, cancel := context.WithTimeout(ctx, config.KnowledgeReload)
	count, err := retriever.Reload(reloadCtx)
	cancel()
	if err != nil {
		// /readyz reports not ready until a later reload succeeds.
		log.WithError(err).Error("Initial knowledge load failed")
	}

	app := &Application{
		cfg:           cfg,
		logger:        log,
		closeLogger:   closeLogger,
		db:            db,
		metrics:       m,
		registry:      registry,
		retriever:     retriever,
		sentryEnabled: sentry.IsEnabled(),
	}

	var llm genai.TextGenerator
	if !cfg.LLM.Mock {
		gen, err := genai.NewGenerator(ctx, cfg.LLM, m)
		if err != nil {
			log.WithError(err).Warn("LLM initialization failed, answers use the evidence fallback")
		}
		if gen != nil {
			app.generator = gen
			llm = gen
		}
	}

	composer := chat.NewComposer(retriever, llm, directory.NewResolver(parser), chat.Options{
		TopK: cfg.Chat.TopK,
		Budgets: chat.Budgets{
			History:  cfg.Chat.MaxHistoryChars,
			Evidence: cfg.Chat.MaxEvidenceChars,
			Response: cfg.Chat.MaxResponseChars,
		},
		Mock: cfg.UseMockLLM(),
	}, log)
	store := chat.NewStorageStore(db)
	app.service = chat.NewService(composer, store, store, cfg.Chat.HistoryWindow, m, log)

	app.limiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "session",
		Burst:         int(cfg.Chat.RateBurst),
		RefillRate:    cfg.Chat.RateRefill,
		CleanupPeriod: config.RateLimiterCleanup,
		Recorder:      m,
	})
	app.ipLimiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "ip",
		Burst:         int(cfg.Chat.IPRateBurst),
		RefillRate:    cfg.Chat.IPRateRefill,
		CleanupPeriod: config.RateLimiterCleanup,
		Recorder:      m,
	})

	if cfg.R2.Enabled {
		mgr, err := backup.NewR2(ctx, cfg.R2, db, log, backup.WithRecorder(m))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("backup: %w", err)
		}
		app.backups = mgr
		log.WithField("bucket", cfg.R2.BucketName).Info("R2 backups enabled")
	}

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(app.routerDeps()),
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.WithField("entries", count).
		WithField("llm", app.generator != nil && !cfg.UseMockLLM()).
		Info("Initialization complete")
	return app, nil
}

func (a *Application) routerDeps() RouterDeps {
	deps := RouterDeps{
		Chat:            a.service,
		Index:           a.retriever,
		DB:              a.db,
		Limiter:         a.limiter,
		IPLimiter:       a.ipLimiter,
		Logger:          a.logger,
		Registry:        a.registry,
		HTTP:            a.metrics,
		Errors:          a.metrics,
		RequestTimeout:  a.cfg.RequestTimeout,
		LLMEnabled:      a.generator != nil && !a.cfg.UseMockLLM(),
		SentryEnabled:   a.sentryEnabled,
		AdminUsername:   a.cfg.AdminUsername,
		AdminPassword:   a.cfg.AdminPassword,
		MetricsUsername: a.cfg.MetricsUsername,
		MetricsPassword: a.cfg.MetricsPassword,
	}
	if a.backups != nil {
		deps.Backups = a.backups
	}
	return deps
}

// Run starts the HTTP server and background jobs.
//
// Graceful shutdown sequence:
//  1. Receive shutdown signal (SIGINT/SIGTERM)
//  2. Cancel context and stop the scheduler, waiting for running jobs
//  3. Wait for the remaining background goroutines
//  4. Close resources in order (HTTP server, LLM clients, database, rate limiter, logger)
//
// This order prevents "sql: database is closed" errors during a scheduled
// reload or backup.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, err := a.startBackgroundJobs(ctx)
	if err != nil {
		return err
	}
	errCh := a.startHTTPServer()

	select {
	case sig := <-a.waitForShutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-errCh:
		a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
	}

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	sched.stop()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs schedules reloads, backups and conversation cleanup
// and starts the gauges refresher tracked by the WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) (*scheduler, error) {
	sched := newScheduler(ctx, a.logger)
	if err := sched.add(knowledgeReloadJob(a.cfg.ReloadSchedule, a.retriever)); err != nil {
		return nil, err
	}
	if a.backups != nil {
		if err := sched.add(backupJob(a.cfg.BackupSchedule, a.backups)); err != nil {
			return nil, err
		}
	}
	cleanup := conversationCleanupJob(a.cfg.CleanupSchedule, a.cfg.ConversationRetention, a.db, a.logger.WithModule("retention"))
	if err := sched.add(cleanup); err != nil {
		return nil, err
	}
	sched.start()
	a.logger.WithField("jobs", sched.len()).Info("Scheduler started")

	a.wg.Go(func() {
		a.updateGauges(ctx)
	})
	return sched, nil
}

// startHTTPServer starts the HTTP server in a goroutine. The channel
// receives the error if the listener fails.
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

// waitForShutdownSignal returns a channel that receives SIGINT/SIGTERM.
func (a *Application) waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// updateGauges keeps the knowledge and limiter gauges current.
func (a *Application) updateGauges(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		a.metrics.SetKnowledgeEntries(a.retriever.Size())
		a.metrics.SetRateLimiterKeys("session", a.limiter.GetActiveCount())
		a.metrics.SetRateLimiterKeys("ip", a.ipLimiter.GetActiveCount())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// shutdown performs graceful shutdown of HTTP server and resources.
// It must run after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")

	if a.generator != nil {
		if err := a.generator.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "llm").Error("Component close error")
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	a.limiter.Stop()
	a.ipLimiter.Stop()
	sentry.Flush(2 * time.Second)

	a.logger.Info("Shutdown complete")
	if err := a.closeLogger(shutdownCtx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
	return nil
}
