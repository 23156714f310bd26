// Package main is the entrypoint for the Kernfi API server.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"

	"github.com/kernfi/kernfi/internal/audit"
	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/cache"
	"github.com/kernfi/kernfi/internal/config"
	"github.com/kernfi/kernfi/internal/document"
	"github.com/kernfi/kernfi/internal/handler"
	"github.com/kernfi/kernfi/internal/metrics"
	"github.com/kernfi/kernfi/internal/middleware"
	"github.com/kernfi/kernfi/internal/repository"
	"github.com/kernfi/kernfi/internal/server"
	"github.com/kernfi/kernfi/internal/service"
	"github.com/kernfi/kernfi/internal/token"
	"github.com/kernfi/kernfi/internal/webhook"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Primary database pool (pgx)
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Secondary database/sql handle for the webhook subsystem, which
	// relies on FOR UPDATE SKIP LOCKED row claims over database/sql.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open webhook database handle",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer db.Close()

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()

	// Authentication
	verifier := token.NewVerifier(cfg.JWTSecret, cfg.JWTAudience)
	authenticator := auth.NewAuthenticator(verifier, repo)

	// Webhooks and audit trail
	webhookRepo := webhook.NewRepository(db)
	webhookPublisher := webhook.NewPublisher(webhookRepo, logger)
	auditPublisher := audit.NewPublisher(cacheClient.Client(), logger, recorder)
	auditRepo := repository.NewAuditEventRepository(repo)

	// Services
	transactionService := service.NewTransactionService(repo, cacheClient, webhookPublisher, auditPublisher, logger, recorder)
	documentService := service.NewDocumentService(repo, nil, webhookPublisher, auditPublisher, cfg.MaxUploadSize, logger, recorder)
	reportService := service.NewReportService(repo, logger)

	// Handlers
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	metricsHandler := handler.NewMetricsHandler(recorder)
	authHandler := handler.NewAuthHandler(repo, logger)
	transactionHandler := handler.NewTransactionHandler(transactionService, logger)
	documentHandler := handler.NewDocumentHandler(documentService, cfg.MaxUploadSize, logger)
	categoryHandler := handler.NewCategoryHandler(repo, logger)
	reportHandler := handler.NewReportHandler(reportService, logger)
	adminHandler := handler.NewAdminHandler(repo, auditRepo, logger)
	webhookHandler := handler.NewWebhookHandler(webhookRepo, logger)

	r := setupRouter(routerDeps{
		health:       healthHandler,
		metrics:      metricsHandler,
		auth:         authHandler,
		transactions: transactionHandler,
		documents:    documentHandler,
		categories:   categoryHandler,
		reports:      reportHandler,
		admin:        adminHandler,
		webhooks:     webhookHandler,
		cache:        cacheClient,
		cfg:          cfg,
		logger:       logger,
		recorder:     recorder,
		auther:       authenticator,
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Background workers run until shutdown; they are registered first
	// so they stop last, after in-flight requests finished queueing
	// work for them.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if cfg.WebhookWorkerEnabled {
		worker := webhook.NewWorker(webhookRepo, logger, recorder)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := worker.Run(workerCtx); err != nil && err != context.Canceled {
				logger.Error("webhook worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("webhook-worker", func(ctx context.Context) error {
			cancelWorkers()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	if cfg.AuditWorkerEnabled {
		worker := audit.NewWorker(cacheClient.Client(), auditRepo, logger, audit.NewConsumerID(), recorder)
		go func() {
			if err := worker.Run(workerCtx); err != nil && err != context.Canceled {
				logger.Error("audit worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("audit-worker", func(ctx context.Context) error {
			return worker.Shutdown(ctx)
		})
	}

	if cfg.DocumentWorkerEnabled {
		if parser := documentParser(); parser == nil {
			logger.Info("document worker idle: no parser backend configured")
		} else {
			worker := document.NewWorker(repo, parser, webhookPublisher, logger, recorder)
			done := make(chan struct{})
			go func() {
				defer close(done)
				if err := worker.Run(workerCtx); err != nil && err != context.Canceled {
					logger.Error("document worker stopped", "error", err)
				}
			}()
			srv.OnShutdown("document-worker", func(ctx context.Context) error {
				cancelWorkers()
				select {
				case <-done:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		}
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	health       *handler.HealthHandler
	metrics      *handler.MetricsHandler
	auth         *handler.AuthHandler
	transactions *handler.TransactionHandler
	documents    *handler.DocumentHandler
	categories   *handler.CategoryHandler
	reports      *handler.ReportHandler
	admin        *handler.AdminHandler
	webhooks     *handler.WebhookHandler
	cache        *cache.Cache
	cfg          *config.Config
	logger       *slog.Logger
	recorder     metrics.Recorder
	auther       *auth.Authenticator
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.Security(middleware.DefaultSecurityConfig()))

	corsCfg := middleware.DefaultCORSConfig()
	if origins := deps.cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg.AllowedOrigins = origins
	}
	r.Use(middleware.CORS(corsCfg))

	// Health and metrics (no auth)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)
	r.Get("/metrics", deps.metrics.Metrics)

	authCfg := middleware.AuthConfig{
		Logger:        deps.logger,
		Authenticator: deps.auther,
		Metrics:       deps.recorder,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:     deps.logger,
		Cache:      deps.cache,
		APIEnabled: deps.cfg.RateLimitEnabled,
		APIRPM:     deps.cfg.RateLimitRPM,
		APIBurst:   deps.cfg.RateLimitBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		// JSON endpoints carry the small body cap. Document uploads
		// are bounded separately by MaxUploadSize.
		jsonBody := middleware.MaxBodySize(deps.cfg.MaxRequestBodySize)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/verify", deps.auth.Verify)
			r.Get("/me", deps.auth.Me)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Use(jsonBody)
			r.Get("/", deps.transactions.List)
			r.Post("/", deps.transactions.Create)
			r.Get("/stats/summary", deps.transactions.Summary)
			r.Get("/{id}", deps.transactions.Get)
			r.Patch("/{id}", deps.transactions.Update)
			r.Post("/{id}/review", deps.transactions.Review)
			r.Delete("/{id}", deps.transactions.Delete)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", deps.documents.List)
			r.Post("/upload", deps.documents.Upload)
			r.Get("/{id}", deps.documents.Get)
			r.Post("/{id}/process", deps.documents.Process)
			r.Delete("/{id}", deps.documents.Delete)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Use(jsonBody)
			r.Get("/", deps.categories.List)
			r.Post("/", deps.categories.Create)
			r.Delete("/{id}", deps.categories.Deactivate)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(jsonBody)
			r.Get("/income-statement", deps.reports.IncomeStatement)
			r.Get("/balance-sheet", deps.reports.BalanceSheet)
			r.Get("/cash-flow", deps.reports.CashFlow)
		})

		// Webhook reads are open to the organization; writes are
		// admin-only.
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(jsonBody)
			r.Get("/", deps.webhooks.List)
			r.Get("/{id}", deps.webhooks.Get)
			r.Get("/{id}/deliveries", deps.webhooks.ListDeliveries)
			r.With(middleware.RequireAdmin()).Post("/", deps.webhooks.Create)
			r.With(middleware.RequireAdmin()).Patch("/{id}", deps.webhooks.Update)
			r.With(middleware.RequireAdmin()).Delete("/{id}", deps.webhooks.Delete)
			r.With(middleware.RequireAdmin()).Post("/{id}/rotate-secret", deps.webhooks.RotateSecret)
			r.With(middleware.RequireAdmin()).Post("/deliveries/{deliveryId}/retry", deps.webhooks.RetryDelivery)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(jsonBody)
			r.Use(middleware.RequireAdmin())
			r.Get("/organizations", deps.admin.ListOrganizations)
			r.Post("/organizations", deps.admin.CreateOrganization)
			r.Get("/users", deps.admin.ListUsers)
			r.Post("/users", deps.admin.CreateUser)
			r.Get("/audit-events", deps.admin.AuditEvents)
		})
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

// documentParser returns the parsing backend for the document worker.
// Parsing backends (OCR, statement readers) are external collaborators
// behind the document.Parser interface; this deployment ships without
// one, so the worker stays idle until a backend is plugged in here.
func documentParser() document.Parser {
	return nil
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
