package adapters

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Registry maps adapter codes to implementations. It is built once at startup and
// only read afterwards.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry registers every supported provider family. Aliases share an instance.
func NewRegistry(cooldown time.Duration) *Registry {
	if cooldown <= 0 {
		cooldown = DefaultRateLimitCooldown
	}
	openAI := NewOpenAIAdapter(cooldown)
	anthropic := NewAnthropicAdapter(cooldown)
	return &Registry{adapters: map[string]Adapter{
		"openai":            openAI,
		"chatgpt":           openAI,
		"deepseek":          NewDeepSeekAdapter(cooldown),
		"openai_compatible": NewOpenAICompatibleAdapter(cooldown),
		"anthropic":         anthropic,
		"claude":            anthropic,
		"gemini":            NewGeminiAdapter(cooldown),
	}}
}

// Lookup returns the adapter for code, matched case-insensitively.
func (r *Registry) Lookup(code string) (Adapter, error) {
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, fmt.Errorf("unknown provider adapter %q (known: %s)", code, strings.Join(r.Codes(), ", "))
	}
	return adapter, nil
}

// Validate fails on the first code that has no adapter.
func (r *Registry) Validate(codes ...string) error {
	for _, code := range codes {
		if _, err := r.Lookup(code); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
