package provider

import (
	"context"
	"time"
)

// Provider is a configured chat-completion API family endpoint. Only admin tooling and
// the startup bootstrap write it.
type Provider struct {
	ID           uint      `json:"id"`
	Code         string    `json:"code"`
	DisplayName  string    `json:"display_name"`
	Enabled      bool      `json:"enabled"`
	Adapter      string    `json:"adapter"`  // registry code of the wire-format adapter
	Endpoint     string    `json:"endpoint"` // e.g. https://api.openai.com/v1/chat/completions
	DefaultModel string    `json:"default_model"`
	Config       Config    `json:"config,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ModelOrDefault returns model, or the provider default when model is blank.
func (p *Provider) ModelOrDefault(model string) string {
	if model != "" {
		return model
	}
	return p.DefaultModel
}

// Config is the free-form generation config of a provider (temperature, max_tokens, ...).
type Config map[string]any

// Float returns a numeric config value.
func (c Config) Float(key string) (float64, bool) {
	switch v := c[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int returns a numeric config value truncated to int.
func (c Config) Int(key string) (int, bool) {
	f, ok := c.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

type ProviderRepository interface {
	Upsert(ctx context.Context, p *Provider) error
	FindByID(ctx context.Context, id uint) (*Provider, error)
	FindByCode(ctx context.Context, code string) (*Provider, error)
	FindAll(ctx context.Context) ([]*Provider, error)
}
