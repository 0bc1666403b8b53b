package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/dispatch-api/internal/config"
	"jan-server/services/dispatch-api/internal/domain/domaintest"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/infrastructure/inference/adapters"
)

const bootstrapYAML = `
providers:
  default:
    - code: openai
      name: OpenAI
      adapter: openai
      endpoint: https://api.openai.com/v1/chat/completions
      default_model: gpt-4o-mini
      enable: true
      keys:
        - key: sk-one
          label: primary
        - key: sk-two
    - code: gemini
      name: Gemini
      adapter: gemini
      active: false
      keys:
        - key: g-one
          model_id: gemini-1.5-flash
          daily_limit: 10
`

func newTestInitializer(t *testing.T, doc string) (*DataInitializer, *domaintest.Store) {
	t.Helper()
	bootstrap, err := config.ParseProviderBootstrapConfig([]byte(doc), "test")
	require.NoError(t, err)

	store := domaintest.NewStore()
	cfg := &config.Config{ProviderKeySecret: "init-secret", ProviderBootstrap: bootstrap}
	return &DataInitializer{
		cfg:         cfg,
		registry:    adapters.NewRegistry(time.Hour),
		provisioner: provider.NewKeyProvisioner(store, store.Providers(), store.Keys(), cfg.ProviderKeySecret),
		log:         zerolog.Nop(),
	}, store
}

func TestInstall_IsIdempotent(t *testing.T) {
	di, store := newTestInitializer(t, bootstrapYAML)
	ctx := context.Background()

	require.NoError(t, di.Install(ctx))
	require.NoError(t, di.Install(ctx))

	providers, err := store.Providers().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	for _, p := range providers {
		assert.Equal(t, p.Code == "openai", p.Enabled, p.Code)
	}

	keys, err := store.Keys().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 3)

	byLabel := map[string]*provider.ProviderKey{}
	for _, k := range keys {
		byLabel[k.Label] = k
	}
	require.Contains(t, byLabel, "primary")
	require.Contains(t, byLabel, "openai-2")
	gemini := byLabel["gemini-1"]
	require.NotNil(t, gemini)
	require.NotNil(t, gemini.ModelID)
	assert.Equal(t, "gemini-1.5-flash", *gemini.ModelID)
	require.NotNil(t, gemini.DailyLimit)
	assert.Equal(t, int64(10), *gemini.DailyLimit)
}

func TestInstall_RejectsUnknownAdapter(t *testing.T) {
	di, store := newTestInitializer(t, `
providers:
  default:
    - code: mistral
      name: Mistral
      adapter: mistral
      keys:
        - key: m-one
`)
	err := di.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral")

	providers, err := store.Providers().FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, providers)
}

func TestInstall_NoEntries(t *testing.T) {
	di := &DataInitializer{cfg: &config.Config{}, log: zerolog.Nop()}
	assert.NoError(t, di.Install(context.Background()))
}
