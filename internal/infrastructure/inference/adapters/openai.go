package adapters

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"jan-server/services/dispatch-api/internal/domain/provider"
)

const (
	defaultOpenAITemperature = 0.7
	defaultOpenAIMaxTokens   = 1000
)

// OpenAIAdapter speaks the chat completions format. It serves OpenAI itself and every
// OpenAI-compatible API (DeepSeek, vLLM, ...), which differ only in endpoint and code.
// System messages pass through unchanged as system-role entries.
type OpenAIAdapter struct {
	errorClassifier
	code            string
	defaultEndpoint string
	defaultModel    string
}

func NewOpenAIAdapter(cooldown time.Duration) *OpenAIAdapter {
	return &OpenAIAdapter{
		errorClassifier: errorClassifier{family: "OpenAI", cooldown: cooldown},
		code:            "openai",
		defaultEndpoint: "https://api.openai.com/v1/chat/completions",
		defaultModel:    "gpt-3.5-turbo",
	}
}

func NewDeepSeekAdapter(cooldown time.Duration) *OpenAIAdapter {
	return &OpenAIAdapter{
		errorClassifier: errorClassifier{family: "DeepSeek", cooldown: cooldown},
		code:            "deepseek",
		defaultEndpoint: "https://api.deepseek.com/chat/completions",
		defaultModel:    "deepseek-chat",
	}
}

// NewOpenAICompatibleAdapter requires the provider to configure its endpoint.
func NewOpenAICompatibleAdapter(cooldown time.Duration) *OpenAIAdapter {
	return &OpenAIAdapter{
		errorClassifier: errorClassifier{family: "OpenAI-compatible provider", cooldown: cooldown},
		code:            "openai_compatible",
	}
}

func (a *OpenAIAdapter) Code() string {
	return a.code
}

func (a *OpenAIAdapter) BuildRequest(p *provider.Provider, model, apiKey string, messages []Message) (*Request, error) {
	endpoint := firstNonEmpty(p.Endpoint, a.defaultEndpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("provider %s has no endpoint configured", p.Code)
	}

	body := openai.ChatCompletionRequest{
		Model:       firstNonEmpty(model, p.DefaultModel, a.defaultModel),
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: defaultOpenAITemperature,
		MaxTokens:   defaultOpenAIMaxTokens,
	}
	if t, ok := p.Config.Float("temperature"); ok && t > 0 {
		body.Temperature = float32(t)
	}
	if n, ok := p.Config.Int("max_tokens"); ok && n > 0 {
		body.MaxTokens = n
	}
	if topP, ok := p.Config.Float("top_p"); ok && topP > 0 {
		body.TopP = float32(topP)
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	return &Request{
		Endpoint: endpoint,
		Headers: map[string]string{
			"Authorization": "Bearer " + apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	}, nil
}

func openAIRole(role string) string {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

func (a *OpenAIAdapter) ExtractText(body []byte) (string, error) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", malformed(a.family, "body is not a chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", malformed(a.family, "missing choices", nil)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", malformed(a.family, "missing message content", nil)
	}
	return content, nil
}

func (a *OpenAIAdapter) ExtractTokenUsage(body []byte) int {
	var resp struct {
		Usage openai.Usage `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0
	}
	return resp.Usage.TotalTokens
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
