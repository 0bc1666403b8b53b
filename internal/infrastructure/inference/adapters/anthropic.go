package adapters

import (
	"encoding/json"
	"strings"
	"time"

	"jan-server/services/dispatch-api/internal/domain/provider"
)

const (
	anthropicVersion          = "2023-06-01"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicAdapter speaks the Messages API. System messages are removed from the
// message list and hoisted, joined by blank lines, into the top-level system field.
type AnthropicAdapter struct {
	errorClassifier
}

func NewAnthropicAdapter(cooldown time.Duration) *AnthropicAdapter {
	return &AnthropicAdapter{errorClassifier: errorClassifier{family: "Anthropic", cooldown: cooldown}}
}

func (a *AnthropicAdapter) Code() string {
	return "anthropic"
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *AnthropicAdapter) BuildRequest(p *provider.Provider, model, apiKey string, messages []Message) (*Request, error) {
	body := anthropicRequest{
		Model:     firstNonEmpty(model, p.DefaultModel),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages:  make([]anthropicMessage, 0, len(messages)),
	}
	if n, ok := p.Config.Int("max_tokens"); ok && n > 0 {
		body.MaxTokens = n
	}
	if t, ok := p.Config.Float("temperature"); ok {
		body.Temperature = &t
	}

	var system []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: role, Content: m.Content})
	}
	body.System = strings.Join(system, "\n\n")

	return &Request{
		Endpoint: firstNonEmpty(p.Endpoint, "https://api.anthropic.com/v1/messages"),
		Headers: map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": anthropicVersion,
			"Content-Type":      "application/json",
		},
		Body: body,
	}, nil
}

func (a *AnthropicAdapter) ExtractText(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", malformed(a.family, "body is not a message", err)
	}
	if len(resp.Content) == 0 {
		return "", malformed(a.family, "missing content array", nil)
	}
	first := resp.Content[0]
	if first.Type != "text" || first.Text == nil {
		return "", malformed(a.family, "first content block is not text", nil)
	}
	return *first.Text, nil
}

func (a *AnthropicAdapter) ExtractTokenUsage(body []byte) int {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0
	}
	return resp.Usage.InputTokens + resp.Usage.OutputTokens
}
