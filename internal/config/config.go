// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Storage
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)
	RedisURL    string // Redis URL for distributed rate limiting (optional)

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// Multi-tenancy
	PlatformDomain string // apex domain, e.g. "platform.tld"
	AppURL         string // public URL of the web app, used for Stripe return URLs

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePrices        map[string]string // "pro_month" -> price ID
	PlatformFeeBPS      int64             // application fee on connected-account payments

	// Custom domain hosting provider
	HostingAPIToken  string
	HostingProjectID string
	HostingTeamID    string
	HostingAPIURL    string

	// Social feed
	InstagramAPIURL string

	// Uploads
	UploadDir       string
	PublicUploadURL string

	// Tracing
	OTLPEndpoint string

	// Edge router
	EdgeUpstreamURL string
	EdgePort        string
}

// Defaults
const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultPlatformDomain = "platform.tld"
	DefaultAppURL         = "http://localhost:3000"
	DefaultJWTTTL         = 7 * 24 * time.Hour
	DefaultUploadDir      = "./uploads"
	DefaultHostingAPIURL  = "https://api.vercel.com"
	DefaultEdgePort       = "3001"
	DefaultPlatformFeeBPS = 0
	devJWTSecret          = "dev-only-insecure-secret"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTTTL:              getEnvDuration("JWT_TTL", DefaultJWTTTL),
		PlatformDomain:      strings.ToLower(getEnv("PLATFORM_DOMAIN", DefaultPlatformDomain)),
		AppURL:              strings.TrimRight(getEnv("APP_URL", DefaultAppURL), "/"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePrices: map[string]string{
			"pro_month":     os.Getenv("STRIPE_PRICE_PRO_MONTHLY"),
			"pro_year":      os.Getenv("STRIPE_PRICE_PRO_YEARLY"),
			"premium_month": os.Getenv("STRIPE_PRICE_PREMIUM_MONTHLY"),
			"premium_year":  os.Getenv("STRIPE_PRICE_PREMIUM_YEARLY"),
		},
		PlatformFeeBPS:   getEnvInt64("PLATFORM_FEE_BPS", DefaultPlatformFeeBPS),
		HostingAPIToken:  os.Getenv("HOSTING_API_TOKEN"),
		HostingProjectID: os.Getenv("HOSTING_PROJECT_ID"),
		HostingTeamID:    os.Getenv("HOSTING_TEAM_ID"),
		HostingAPIURL:    getEnv("HOSTING_API_URL", DefaultHostingAPIURL),
		InstagramAPIURL:  os.Getenv("INSTAGRAM_API_URL"),
		UploadDir:        getEnv("UPLOAD_DIR", DefaultUploadDir),
		PublicUploadURL:  getEnv("PUBLIC_UPLOAD_URL", "/uploads"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EdgeUpstreamURL:  os.Getenv("EDGE_UPSTREAM_URL"),
		EdgePort:         getEnv("EDGE_PORT", DefaultEdgePort),
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && c.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.PlatformDomain == "" {
		return fmt.Errorf("PLATFORM_DOMAIN is required")
	}
	if c.StripeSecretKey != "" && c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	if c.PlatformFeeBPS < 0 || c.PlatformFeeBPS > 10000 {
		return fmt.Errorf("PLATFORM_FEE_BPS must be between 0 and 10000")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PaymentsEnabled reports whether Stripe credentials are configured.
func (c *Config) PaymentsEnabled() bool {
	return c.StripeSecretKey != ""
}

// HostingConfigured reports whether the custom-domain provider can be called.
func (c *Config) HostingConfigured() bool {
	return c.HostingAPIToken != "" && c.HostingProjectID != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
