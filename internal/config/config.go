package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// MaxRecoverySweepIntervalMinutes keeps the sweep expressible as a "*/N" minute cron.
const MaxRecoverySweepIntervalMinutes = 59

// Config holds all environment backed configuration for dispatch-api.
type Config struct {
	// HTTP Server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	DatabaseURL          string        `env:"DATABASE_URL"`
	DBPostgresqlWriteDSN string        `env:"DB_POSTGRESQL_WRITE_DSN"`
	DBPostgresqlRead1DSN string        `env:"DB_POSTGRESQL_READ1_DSN"`
	DBMaxIdleConns       int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBMaxOpenConns       int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBConnMaxLifetime    time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`

	// Dispatch
	ProviderKeySecret        string        `env:"PROVIDER_KEY_SECRET,notEmpty"`
	ProviderRequestTimeout   time.Duration `env:"PROVIDER_REQUEST_TIMEOUT" envDefault:"120s"`
	RateLimitDefaultCooldown time.Duration `env:"RATE_LIMIT_DEFAULT_COOLDOWN" envDefault:"1h"`

	// Background jobs
	RecoverySweepEnabled         bool   `env:"RECOVERY_SWEEP_ENABLED" envDefault:"true"`
	RecoverySweepIntervalMinutes int    `env:"RECOVERY_SWEEP_INTERVAL_MINUTES" envDefault:"1"`
	DailyUsageResetCron          string `env:"DAILY_USAGE_RESET_CRON" envDefault:"0 0 * * *"`

	// Provider bootstrap
	ProviderConfigsEnabled bool                     `env:"PROVIDER_CONFIGS" envDefault:"false"`
	ProviderConfigSet      string                   `env:"PROVIDER_CONFIG_SET" envDefault:"default"`
	ProviderConfigFile     string                   `env:"PROVIDER_CONFIGS_FILE"`
	ProviderBootstrap      *ProviderBootstrapConfig `env:"-"`

	// Observability / Logging
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string `env:"SERVICE_NAME" envDefault:"dispatch-api"`
	ServiceNamespace string `env:"SERVICE_NAMESPACE" envDefault:"jan"`
	Environment      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if cfg.ProviderConfigsEnabled {
		configFile := strings.TrimSpace(cfg.ProviderConfigFile)
		if configFile == "" {
			configFile = DefaultProviderConfigFile
		}
		bootstrap, err := LoadProviderBootstrapConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("load provider configs: %w", err)
		}
		cfg.ProviderBootstrap = bootstrap
		if len(bootstrap.ProvidersForSet(cfg.ProviderConfigSet)) == 0 {
			return nil, fmt.Errorf("provider config set %q is missing or empty in %s", cfg.ProviderConfigSet, configFile)
		}
	}

	return cfg, nil
}

func (c *Config) normalize() error {
	c.ProviderConfigSet = strings.TrimSpace(c.ProviderConfigSet)
	if c.ProviderConfigSet == "" {
		c.ProviderConfigSet = "default"
	}
	if c.GetDatabaseWriteDSN() == "" {
		return errors.New("either DATABASE_URL or DB_POSTGRESQL_WRITE_DSN must be provided")
	}
	if c.ProviderRequestTimeout <= 0 {
		return errors.New("PROVIDER_REQUEST_TIMEOUT must be positive")
	}
	if c.RateLimitDefaultCooldown <= 0 {
		return errors.New("RATE_LIMIT_DEFAULT_COOLDOWN must be positive")
	}
	if c.RecoverySweepEnabled && (c.RecoverySweepIntervalMinutes < 1 || c.RecoverySweepIntervalMinutes > MaxRecoverySweepIntervalMinutes) {
		return fmt.Errorf("RECOVERY_SWEEP_INTERVAL_MINUTES must be between 1 and %d", MaxRecoverySweepIntervalMinutes)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
	return nil
}

// GetDatabaseWriteDSN prefers the explicit write DSN over DATABASE_URL.
func (c *Config) GetDatabaseWriteDSN() string {
	if c.DBPostgresqlWriteDSN != "" {
		return c.DBPostgresqlWriteDSN
	}
	return c.DatabaseURL
}

// ProviderBootstrapEntries returns the configured provider definitions for the active set.
func (c *Config) ProviderBootstrapEntries() []ProviderBootstrapEntry {
	if c == nil || c.ProviderBootstrap == nil {
		return nil
	}
	return c.ProviderBootstrap.ProvidersForSet(c.ProviderConfigSet)
}
