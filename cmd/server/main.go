// Package main is the entry point for the Blue Home chatbot server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/audit"
	"github.com/jkindrix/bluehome/internal/catalog"
	"github.com/jkindrix/bluehome/internal/clock"
	"github.com/jkindrix/bluehome/internal/config"
	"github.com/jkindrix/bluehome/internal/conversation"
	"github.com/jkindrix/bluehome/internal/database"
	"github.com/jkindrix/bluehome/internal/domain"
	"github.com/jkindrix/bluehome/internal/fees"
	"github.com/jkindrix/bluehome/internal/handler"
	"github.com/jkindrix/bluehome/internal/llm"
	"github.com/jkindrix/bluehome/internal/logging"
	"github.com/jkindrix/bluehome/internal/messenger"
	"github.com/jkindrix/bluehome/internal/metrics"
	"github.com/jkindrix/bluehome/internal/middleware"
	"github.com/jkindrix/bluehome/internal/repository"
	"github.com/jkindrix/bluehome/internal/retry"
	"github.com/jkindrix/bluehome/internal/session"
	"github.com/jkindrix/bluehome/internal/shutdown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	appLog, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := appLog.Zap()
	defer func() { _ = logger.Sync() }()

	logger.Info("starting Blue Home server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Environment),
		zap.String("session_backend", cfg.Session.Backend),
	)

	ctx := context.Background()
	m := metrics.NewMetrics()
	events := metrics.NewBusinessEventLogger(logger)
	auditLog := audit.NewLogger(logger)
	clk := clock.New()

	shutdownCoord := shutdown.NewCoordinator(shutdown.DefaultConfig(), logger)
	bgCtx, stopBackground := context.WithCancel(ctx)
	shutdownCoord.RegisterFunc(shutdown.PhaseShutdown, "background-workers", func(context.Context) error {
		stopBackground()
		return nil
	})

	// Initialize database (optional)
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(ctx, &cfg.Database, m, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := database.NewMigrator(db, logger).Migrate(ctx); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		go db.RunPoolStatsReporter(bgCtx, m, 15*time.Second)
		shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "database", func(context.Context) error {
			db.Close()
			return nil
		})
	}

	// Initialize session store
	sessions, err := initSessionStore(bgCtx, cfg, db, clk, logger)
	if err != nil {
		logger.Fatal("failed to initialize session store", zap.Error(err))
	}
	shutdownCoord.RegisterFunc(shutdown.PhaseCleanup, "session-store", func(context.Context) error {
		return sessions.Close()
	})

	// Initialize catalog
	var source catalog.Source
	if cfg.Catalog.CSVURL != "" {
		source = catalog.NewCSVSource(cfg.Catalog.CSVURL, nil, cfg.Catalog.Timeout)
	} else {
		logger.Warn("catalog.csv_url is empty, property lookups will return nothing")
	}
	props := catalog.New(source, catalog.Config{TTL: cfg.Catalog.TTL, Clock: clk}, m, logger)
	go warmCatalog(ctx, props, logger)

	// Initialize LLM client
	var completer llm.Completer = llm.Disabled{}
	var aiHealth handler.AIHealthChecker
	if cfg.LLM.Enabled {
		client := llm.NewOpenAIClient(cfg.LLM, m, logger)
		completer = client
		aiHealth = client
		logger.Info("LLM fallback enabled", zap.String("model", cfg.LLM.Model))
	}

	// Initialize lead storage and notifiers
	var leads domain.LeadRepository = repository.NewMemoryLeadRepository()
	if db != nil {
		leads = repository.NewLeadRepository(db.Pool, logger)
	}
	notifier := initNotifiers(cfg, m, events, logger)

	engine, err := conversation.New(conversation.Config{
		Company:      cfg.Company,
		Intents:      cfg.Intents,
		HistoryLimit: cfg.LLM.HistoryLimit,
		MaxResults:   cfg.Catalog.MaxResults,
	}, conversation.Deps{
		Catalog:  props,
		Sessions: sessions,
		Leads:    leads,
		Notifier: notifier,
		LLM:      completer,
		Fees:     fees.NewSimulator(cfg.Fees.AdminPercent, cfg.Fees.VATPercent, cfg.Fees.InsurancePercent),
		Metrics:  m,
		Events:   events,
		Clock:    clk,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to build conversation engine", zap.Error(err))
	}
	shutdownCoord.RegisterFunc(shutdown.PhaseShutdown, "lead-notifications", engine.Wait)

	healthCfg := handler.HealthHandlerConfig{
		Catalog:         props,
		Sessions:        sessions,
		AIHealthChecker: aiHealth,
		Readiness:       shutdownCoord,
		Logger:          logger,
	}
	if db != nil {
		healthCfg.Database = db
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, clk, m, logger).WithAudit(auditLog)
	contactLimiter := middleware.NewRateLimiter(cfg.RateLimit.ContactRequests, cfg.RateLimit.Window, clk, m, logger).
		WithScope(middleware.ScopeContact).
		WithAudit(auditLog)
	shutdownCoord.RegisterFunc(shutdown.PhaseShutdown, "rate-limiter", func(context.Context) error {
		rateLimiter.Stop()
		contactLimiter.Stop()
		return nil
	})

	r := newRouter(routerConfig{
		Health: handler.NewHealthHandler(healthCfg),
		Chat:   handler.NewChatHandler(handler.ChatHandlerConfig{Engine: engine, Limiter: contactLimiter, Logger: logger}),
		Properties: handler.NewPropertyHandler(handler.PropertyHandlerConfig{
			Catalog:    props,
			MaxResults: cfg.Catalog.MaxResults,
			Logger:     logger,
		}),
		Admin: handler.NewAdminHandler(handler.AdminHandlerConfig{
			Catalog:   props,
			Leads:     leads,
			LogLevel:  handler.NewLogLevelHandler(appLog, auditLog, logger),
			TokenHash: cfg.Admin.TokenHash,
			Audit:     auditLog,
			Logger:    logger,
		}),
		Metrics:      m,
		RateLimiter:  rateLimiter,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		TrustProxy:   cfg.Server.TrustProxy,
		Logger:       logger,
	})

	// Create server
	addr := cfg.Server.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	auditLog.ServiceStarted(ctx, handler.Version, cfg.Server.Environment)

	// Start server in goroutine
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	shutdownCoord.RegisterFunc(shutdown.PhaseDrain, "http-server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	auditLog.ServiceStopping(ctx, sig.String())

	if err := shutdownCoord.Shutdown(ctx); err != nil {
		logger.Error("shutdown completed with errors", zap.Error(err))
	}
}

// initLogger builds the process logger from config.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(&logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})
}

// initSessionStore opens the configured backend and starts its expiry sweep.
func initSessionStore(ctx context.Context, cfg *config.Config, db *database.DB, clk clock.Clock, logger *zap.Logger) (session.Store, error) {
	deps := session.Deps{Redis: cfg.Redis, Clock: clk, Logger: logger}
	if db != nil {
		deps.DB = db.Pool
	}

	store, err := session.New(cfg.Session, deps)
	if err != nil {
		return nil, err
	}

	switch s := store.(type) {
	case *session.MemoryStore:
		s.StartCleanup(cfg.Session.CleanupInterval)
	case *session.PostgresStore:
		if cfg.Session.CleanupInterval > 0 {
			go s.RunCleanup(ctx, cfg.Session.CleanupInterval)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("session store not reachable at startup", zap.Error(err))
	}
	return store, nil
}

// initNotifiers fans lead notifications out to every configured channel.
func initNotifiers(cfg *config.Config, m *metrics.Metrics, events *metrics.BusinessEventLogger, logger *zap.Logger) messenger.Notifier {
	var backoff *retry.Backoff
	if cfg.Messenger.RetryAttempts > 0 {
		rc := retry.DefaultConfig()
		rc.MaxRetries = cfg.Messenger.RetryAttempts
		backoff = retry.New(rc, logger.Named("notify_retry"))
	}

	var notifiers []messenger.Notifier
	if cfg.Messenger.ManyChatEnabled() {
		notifiers = append(notifiers, messenger.WithRetry(messenger.NewManyChatClient(messenger.ManyChatConfig{
			APIURL:              cfg.Messenger.ManyChatAPIURL,
			APIToken:            cfg.Messenger.ManyChatAPIToken,
			AdvisorSubscriberID: cfg.Messenger.AdvisorSubscriberID,
			Timeout:             cfg.Messenger.Timeout,
		}, logger), backoff))
		logger.Info("registered ManyChat lead notifier")
	}
	if cfg.Messenger.LeadWebhookURL != "" {
		notifiers = append(notifiers, messenger.WithRetry(
			messenger.NewWebhookNotifier(cfg.Messenger.LeadWebhookURL, cfg.Messenger.Timeout, logger), backoff))
		logger.Info("registered lead webhook notifier")
	}
	if len(notifiers) == 0 {
		return messenger.Nop{}
	}
	return messenger.NewMulti(m, events, logger, notifiers...)
}

// warmCatalog loads the first snapshot so the first customer does not wait for it.
func warmCatalog(ctx context.Context, c *catalog.Catalog, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(middleware.WithCorrelationID(ctx, "catalog-warmup"), 30*time.Second)
	defer cancel()
	log := middleware.LoggerWithCorrelation(ctx, logger)
	status, err := c.Refresh(ctx)
	if err != nil {
		log.Warn("initial catalog load failed", zap.Error(err))
		return
	}
	log.Info("catalog loaded", zap.Int("size", status.Size))
}

// routerConfig holds everything newRouter mounts.
type routerConfig struct {
	Health       *handler.HealthHandler
	Chat         *handler.ChatHandler
	Properties   *handler.PropertyHandler
	Admin        *handler.AdminHandler
	Metrics      *metrics.Metrics
	RateLimiter  *middleware.RateLimiter
	MaxBodyBytes int64
	TrustProxy   bool
	Logger       *zap.Logger
}

// newRouter builds the chi router with the global middleware chain.
func newRouter(cfg routerConfig) chi.Router {
	correlation := middleware.NewRequestCorrelation(cfg.Logger)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(correlation.Middleware) // First: add correlation IDs
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	// Probes and metrics stay outside the rate limit.
	cfg.Health.RegisterRoutes(r)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	// Chat routes are metered per contact by the chat handler.
	r.Group(func(r chi.Router) {
		if cfg.MaxBodyBytes > 0 {
			r.Use(middleware.BodySizeLimiter(cfg.MaxBodyBytes))
		}
		cfg.Chat.RegisterRoutes(r)
	})

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		if cfg.MaxBodyBytes > 0 {
			r.Use(middleware.BodySizeLimiter(cfg.MaxBodyBytes))
		}
		cfg.Properties.RegisterRoutes(r)
		cfg.Admin.RegisterRoutes(r)
	})

	return r
}
