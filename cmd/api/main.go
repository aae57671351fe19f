// Package main is the entrypoint for the Bunn API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/bunn/bunn/internal/ai"
	"github.com/bunn/bunn/internal/audit"
	"github.com/bunn/bunn/internal/auth"
	"github.com/bunn/bunn/internal/billing"
	"github.com/bunn/bunn/internal/cache"
	"github.com/bunn/bunn/internal/config"
	"github.com/bunn/bunn/internal/handler"
	"github.com/bunn/bunn/internal/metrics"
	"github.com/bunn/bunn/internal/middleware"
	"github.com/bunn/bunn/internal/repository"
	"github.com/bunn/bunn/internal/server"
	"github.com/bunn/bunn/internal/tokencount"
	"github.com/bunn/bunn/internal/usage"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

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

	// Metrics
	var metricsRecorder metrics.Recorder = metrics.NewNoop()
	var promRecorder *metrics.PrometheusRecorder
	if cfg.MetricsEnabled {
		promRecorder = metrics.NewPrometheus()
		metricsRecorder = promRecorder
	}

	// Usage metering pipeline: Redis counters gate and book the tokens,
	// the stream publisher feeds the durable audit trail.
	auditPublisher := audit.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
	gate := usage.NewGate(cacheClient, repo, cfg.DailyTokenLimit, cfg.SubscriptionMultiplier, logger, metricsRecorder)
	recorder := usage.NewRecorder(cacheClient, auditPublisher, logger, metricsRecorder)

	auditWorker := audit.NewWorker(cacheClient.Client(), repo, logger, audit.NewConsumerID(), metricsRecorder)

	// AI provider
	aiClient := ai.New(cfg.OpenAIAPIKey, cfg.DefaultModel, cfg.VisionModel, logger)
	counter := tokencount.New()

	// Billing is optional; without a Stripe key the endpoints are not
	// registered at all.
	var billingService *billing.Service
	if cfg.StripeEnabled() {
		billingService = billing.NewService(billing.Options{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			PriceID:       cfg.StripePriceID,
			SuccessURL:    cfg.StripeSuccessURL,
			CancelURL:     cfg.StripeCancelURL,
			ReturnURL:     cfg.StripeReturnURL,
		}, repo, logger)
	}

	r := setupRouter(routerDeps{
		cfg:            cfg,
		logger:         logger,
		repo:           repo,
		cache:          cacheClient,
		gate:           gate,
		recorder:       recorder,
		aiClient:       aiClient,
		counter:        counter,
		billingService: billingService,
		metrics:        metricsRecorder,
		promRecorder:   promRecorder,
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// The worker shuts down after the HTTP server drains so events from
	// in-flight requests still get consumed.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	go func() {
		if err := auditWorker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("audit worker exited", "error", err)
		}
	}()
	srv.OnShutdown("audit_worker", func(ctx context.Context) error {
		defer workerCancel()
		return auditWorker.Shutdown(ctx)
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"daily_token_limit", cfg.DailyTokenLimit,
		"stripe_enabled", cfg.StripeEnabled(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
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
	cfg            *config.Config
	logger         *slog.Logger
	repo           *repository.Repository
	cache          *cache.Cache
	gate           *usage.Gate
	recorder       *usage.Recorder
	aiClient       *ai.Client
	counter        *tokencount.Counter
	billingService *billing.Service
	metrics        metrics.Recorder
	promRecorder   *metrics.PrometheusRecorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: d.cfg.IsDevelopment(),
	}))
	r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = d.cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Handlers
	healthHandler := handler.NewHealthHandler(d.repo, d.cache)
	sessionHandler := handler.NewSessionHandler(d.repo, d.gate, d.logger)
	aiHandler := handler.NewAIHandler(d.aiClient, d.gate, d.recorder, d.counter, d.logger, d.metrics, d.cfg.MaxPromptSize)
	memoHandler := handler.NewMemoCardHandler(d.repo, d.logger, d.metrics)
	wordHandler := handler.NewWordCardHandler(d.repo, d.logger, d.metrics)
	keyHandler := handler.NewExtensionKeyHandler(d.repo, d.logger)
	adminHandler := handler.NewAdminHandler(d.cache, d.repo, d.logger)

	// Operational endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	if d.promRecorder != nil {
		r.Method("GET", "/metrics", d.promRecorder.Handler())
	}

	authCfg := middleware.AuthConfig{
		Logger:          d.logger,
		Repository:      d.repo,
		Cache:           d.cache,
		SessionVerifier: auth.NewSessionVerifier(d.cfg.SessionJWTSecret),
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  d.logger,
		Cache:   d.cache,
		Enabled: d.cfg.RateLimitEnabled,
		RPS:     d.cfg.RateLimitRPS,
		Burst:   d.cfg.RateLimitBurst,
	}

	r.Route("/api", func(r chi.Router) {
		// Stripe webhook authenticates by signature, not bearer token.
		if d.billingService != nil {
			billingHandler := handler.NewBillingHandler(d.billingService, d.logger, d.metrics)
			r.Post("/stripe/webhook", billingHandler.Webhook)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(authCfg))
				r.Post("/stripe/checkout", billingHandler.Checkout)
				r.Post("/stripe/portal", billingHandler.Portal)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))

			// AI endpoints carry the per-IP shaping limit on top of the
			// daily token gate.
			r.Route("/ai", func(r chi.Router) {
				r.Use(middleware.RateLimitIP(rateLimitCfg))
				r.Post("/generate-text", aiHandler.GenerateText)
				r.Post("/generate-text-stream", aiHandler.GenerateTextStream)
				r.Post("/extract-subtitles", aiHandler.ExtractSubtitles)
			})

			r.Get("/user/session", sessionHandler.Get)

			r.Route("/memo-cards", func(r chi.Router) {
				r.Post("/", memoHandler.Create)
				r.Get("/", memoHandler.List)
				r.Get("/{id}", memoHandler.Get)
				r.Patch("/{id}", memoHandler.Update)
				r.Delete("/{id}", memoHandler.Delete)
				r.Post("/{id}/review", memoHandler.Review)
			})

			r.Route("/word-cards", func(r chi.Router) {
				r.Post("/", wordHandler.Create)
				r.Get("/", wordHandler.List)
				r.Get("/{id}", wordHandler.Get)
				r.Delete("/{id}", wordHandler.Delete)
				r.Post("/{id}/review", wordHandler.Review)
			})

			r.Route("/extension-keys", func(r chi.Router) {
				r.Post("/", keyHandler.Create)
				r.Get("/", keyHandler.List)
				r.Delete("/{id}", keyHandler.Revoke)
			})

			r.Get("/admin/usage", adminHandler.UsageReport)
		})
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
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
