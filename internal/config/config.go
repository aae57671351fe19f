// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache and usage counters (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. WriteTimeout is generous because the SSE endpoint
	// holds the response open for the duration of a model stream.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Token metering.
	// DailyTokenLimit is the base per-user daily token budget (input + output).
	// A non-positive value disables metering entirely.
	DailyTokenLimit int64 `env:"DAILY_TOKEN_LIMIT" envDefault:"50000"`
	// SubscriptionMultiplier scales the base limit for users with an
	// active subscription.
	SubscriptionMultiplier int64 `env:"SUBSCRIPTION_LIMIT_MULTIPLIER" envDefault:"5"`

	// AI provider (OpenAI)
	OpenAIAPIKey  string `env:"OPENAI_API_KEY,required"`
	DefaultModel  string `env:"DEFAULT_MODEL" envDefault:"gpt-4o-mini"`
	VisionModel   string `env:"VISION_MODEL" envDefault:"gpt-4o"`
	MaxPromptSize int    `env:"MAX_PROMPT_SIZE" envDefault:"8192"`

	// Stripe billing. Billing endpoints are disabled when the secret key
	// is empty.
	StripeSecretKey     string `env:"STRIPE_SECRET_KEY" envDefault:""`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET" envDefault:""`
	StripePriceID       string `env:"STRIPE_PRICE_ID" envDefault:""`
	StripeSuccessURL    string `env:"STRIPE_SUCCESS_URL" envDefault:"https://app.bunn.ink/checkout/success"`
	StripeCancelURL     string `env:"STRIPE_CANCEL_URL" envDefault:"https://app.bunn.ink/checkout/cancel"`
	StripeReturnURL     string `env:"STRIPE_RETURN_URL" envDefault:"https://app.bunn.ink/account"`

	// Session JWT verification (shared secret with the identity provider)
	SessionJWTSecret string `env:"SESSION_JWT_SECRET,required"`

	// Per-IP rate limiting in front of the AI endpoints
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// Metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// CORS configuration
	// Comma-separated list of allowed origins (the web app plus the
	// browser-extension origins).
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 4MB; subtitle screenshots
	// arrive as multipart uploads)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"4194304"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// StripeEnabled reports whether billing endpoints can be served.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
