package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/dispatch?sslmode=disable")
	t.Setenv("PROVIDER_KEY_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PROVIDER_REQUEST_TIMEOUT", "120s")
	t.Setenv("RATE_LIMIT_DEFAULT_COOLDOWN", "1h")
	t.Setenv("RECOVERY_SWEEP_INTERVAL_MINUTES", "1")
	t.Setenv("DAILY_USAGE_RESET_CRON", "0 0 * * *")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.ProviderRequestTimeout)
	assert.Equal(t, time.Hour, cfg.RateLimitDefaultCooldown)
	assert.Equal(t, 1, cfg.RecoverySweepIntervalMinutes)
	assert.Equal(t, "0 0 * * *", cfg.DailyUsageResetCron)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres://localhost:5432/dispatch?sslmode=disable", cfg.GetDatabaseWriteDSN())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing key secret", env: map[string]string{"PROVIDER_KEY_SECRET": ""}},
		{name: "missing database", env: map[string]string{"DATABASE_URL": "", "DB_POSTGRESQL_WRITE_DSN": ""}},
		{name: "zero timeout", env: map[string]string{"PROVIDER_REQUEST_TIMEOUT": "0s"}},
		{name: "negative cooldown", env: map[string]string{"RATE_LIMIT_DEFAULT_COOLDOWN": "-1m"}},
		{name: "zero sweep interval", env: map[string]string{"RECOVERY_SWEEP_ENABLED": "true", "RECOVERY_SWEEP_INTERVAL_MINUTES": "0"}},
		{name: "sweep interval past an hour", env: map[string]string{"RECOVERY_SWEEP_ENABLED": "true", "RECOVERY_SWEEP_INTERVAL_MINUTES": "60"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetDatabaseWriteDSN_PrefersWriteDSN(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://a", DBPostgresqlWriteDSN: "postgres://b"}
	assert.Equal(t, "postgres://b", cfg.GetDatabaseWriteDSN())
}

const bootstrapYAML = `
providers:
  default:
    - code: OpenAI
      adapter: openai
      endpoint: https://api.openai.com/v1/chat/completions
      default_model: gpt-4o-mini
      config:
        temperature: 0.2
      keys:
        - key: ${DISPATCH_TEST_OPENAI_KEY}
          label: primary
        - key: ${DISPATCH_TEST_UNSET_KEY}
        - api_key: sk-literal
          model_id: gpt-4o
          daily_limit: 100
    - code: gemini
      enable: ${DISPATCH_TEST_GEMINI_ENABLED:-false}
      keys:
        - key: g-1
  staging:
    - code: deepseek
      keys:
        - key: d-1
`

func TestParseProviderBootstrapConfig(t *testing.T) {
	t.Setenv("DISPATCH_TEST_OPENAI_KEY", "sk-from-env")

	cfg, err := ParseProviderBootstrapConfig([]byte(bootstrapYAML), "inline")
	require.NoError(t, err)

	entries := cfg.ProvidersForSet("")
	require.Len(t, entries, 1, "gemini is disabled by its enable default")

	openai := entries[0]
	assert.Equal(t, "openai", openai.Code)
	assert.Equal(t, "openai", openai.Adapter)
	assert.Equal(t, "OPENAI Provider", openai.DisplayName)
	assert.True(t, openai.Enabled)
	assert.Equal(t, 0.2, openai.Config["temperature"])

	require.Len(t, openai.Keys, 2)
	assert.Equal(t, "sk-from-env", openai.Keys[0].Key)
	assert.Equal(t, "primary", openai.Keys[0].Label)
	assert.Nil(t, openai.Keys[0].ModelID)
	assert.Equal(t, "sk-literal", openai.Keys[1].Key)
	assert.Equal(t, "openai-3", openai.Keys[1].Label)
	require.NotNil(t, openai.Keys[1].ModelID)
	assert.Equal(t, "gpt-4o", *openai.Keys[1].ModelID)
	assert.Equal(t, int64(100), *openai.Keys[1].DailyLimit)

	staging := cfg.ProvidersForSet("staging")
	require.Len(t, staging, 1)
	assert.Equal(t, "deepseek", staging[0].Adapter)
}

func TestParseProviderBootstrapConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "no providers", yaml: "providers: {}"},
		{name: "missing code", yaml: "providers:\n  default:\n    - adapter: openai\n"},
		{name: "bad endpoint", yaml: "providers:\n  default:\n    - code: openai\n      endpoint: not a url\n"},
		{name: "non-positive daily limit", yaml: "providers:\n  default:\n    - code: openai\n      keys:\n        - key: k\n          daily_limit: 0\n"},
		{name: "bad enable flag", yaml: "providers:\n  default:\n    - code: openai\n      enable: maybe\n"},
		{name: "everything disabled", yaml: "providers:\n  default:\n    - code: openai\n      enable: false\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProviderBootstrapConfig([]byte(tt.yaml), "inline")
			assert.Error(t, err)
		})
	}
}

func TestLoad_ProviderConfigsFromFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "providers.yml")
	require.NoError(t, os.WriteFile(path, []byte(bootstrapYAML), 0o600))
	t.Setenv("DISPATCH_TEST_OPENAI_KEY", "sk-from-env")
	t.Setenv("PROVIDER_CONFIGS", "true")
	t.Setenv("PROVIDER_CONFIGS_FILE", path)
	t.Setenv("PROVIDER_CONFIG_SET", "staging")

	cfg, err := Load()
	require.NoError(t, err)
	entries := cfg.ProviderBootstrapEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "deepseek", entries[0].Code)

	t.Setenv("PROVIDER_CONFIG_SET", "missing")
	_, err = Load()
	assert.Error(t, err)
}
