// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Model settings
	ModelPath         string // path to the logistic-regression artifact JSON
	ClassifierURL     string // remote scoring service (used when ModelPath is empty)
	ClassifierTimeout time.Duration
	BreakerThreshold  int
	BreakerCooldown   time.Duration

	// Risk tiers
	RiskLowMax  float64 // probabilities at or above this are medium
	RiskHighMax float64 // probabilities at or above this are high

	// Card registry
	StripeSecretKey string // optional; enables Stripe enrichment of registered cards

	// Security
	RateLimitRPS int

	// Tracing
	OTLPEndpoint string // optional; enables OTLP trace export
}

const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultClassifierTimeout = 2 * time.Second
	DefaultBreakerThreshold  = 5
	DefaultBreakerCooldown   = 30 * time.Second
	DefaultRiskLowMax        = 0.5
	DefaultRiskHighMax       = 0.8
	DefaultRateLimit         = 100
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ModelPath:         os.Getenv("MODEL_PATH"),
		ClassifierURL:     os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeout: getEnvDuration("CLASSIFIER_TIMEOUT", DefaultClassifierTimeout),
		BreakerThreshold:  int(getEnvInt64("BREAKER_THRESHOLD", DefaultBreakerThreshold)),
		BreakerCooldown:   getEnvDuration("BREAKER_COOLDOWN", DefaultBreakerCooldown),
		RiskLowMax:        getEnvFloat("RISK_LOW_MAX", DefaultRiskLowMax),
		RiskHighMax:       getEnvFloat("RISK_HIGH_MAX", DefaultRiskHighMax),
		StripeSecretKey:   os.Getenv("STRIPE_SECRET_KEY"),
		RateLimitRPS:      int(getEnvInt64("RATE_LIMIT_RPS", DefaultRateLimit)),
		OTLPEndpoint:      os.Getenv("OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if c.RiskLowMax <= 0 || c.RiskLowMax >= 1 {
		return fmt.Errorf("RISK_LOW_MAX must be in (0, 1), got %v", c.RiskLowMax)
	}
	if c.RiskHighMax <= 0 || c.RiskHighMax > 1 {
		return fmt.Errorf("RISK_HIGH_MAX must be in (0, 1], got %v", c.RiskHighMax)
	}
	if c.RiskLowMax >= c.RiskHighMax {
		return fmt.Errorf("RISK_LOW_MAX (%v) must be below RISK_HIGH_MAX (%v)", c.RiskLowMax, c.RiskHighMax)
	}
	if c.ModelPath != "" && c.ClassifierURL != "" {
		return fmt.Errorf("MODEL_PATH and CLASSIFIER_URL are mutually exclusive")
	}
	if c.ClassifierTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be positive")
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
