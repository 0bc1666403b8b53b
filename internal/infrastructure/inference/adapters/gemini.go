package adapters

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"jan-server/services/dispatch-api/internal/domain/provider"
)

const (
	defaultGeminiBase  = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultGeminiModel = "gemini-pro"
	geminiModelRole    = "model"
)

// GeminiAdapter speaks generateContent. Gemini has no system role here: system messages
// are dropped from the turn list and prepended, followed by a blank line, to the first
// user turn. The key travels as the "key" query parameter.
type GeminiAdapter struct {
	errorClassifier
}

func NewGeminiAdapter(cooldown time.Duration) *GeminiAdapter {
	return &GeminiAdapter{errorClassifier: errorClassifier{family: "Gemini", cooldown: cooldown}}
}

func (a *GeminiAdapter) Code() string {
	return "gemini"
}

type geminiPart struct {
	Text *string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (a *GeminiAdapter) BuildRequest(p *provider.Provider, model, apiKey string, messages []Message) (*Request, error) {
	var system []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
		}
	}
	prefix := ""
	if len(system) > 0 {
		prefix = strings.Join(system, "\n\n") + "\n\n"
	}

	body := geminiRequest{Contents: make([]geminiContent, 0, len(messages))}
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		text := m.Content
		role := RoleUser
		if m.Role == RoleAssistant {
			role = geminiModelRole
		} else if prefix != "" {
			text = prefix + text
			prefix = ""
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: &text}}})
	}
	body.GenerationConfig = geminiConfig(p.Config)

	base := strings.TrimSuffix(firstNonEmpty(p.Endpoint, defaultGeminiBase), "/")
	modelName := firstNonEmpty(model, p.DefaultModel, defaultGeminiModel)

	return &Request{
		Endpoint: base + "/" + url.PathEscape(modelName) + ":generateContent",
		Headers:  map[string]string{"Content-Type": "application/json"},
		Query:    map[string]string{"key": apiKey},
		Body:     body,
	}, nil
}

func geminiConfig(cfg provider.Config) *geminiGenerationConfig {
	var gc geminiGenerationConfig
	set := false
	if v, ok := cfg.Float("temperature"); ok {
		gc.Temperature = &v
		set = true
	}
	if v, ok := cfg.Float("top_p"); ok {
		gc.TopP = &v
		set = true
	}
	if v, ok := cfg.Int("top_k"); ok {
		gc.TopK = &v
		set = true
	}
	if v, ok := cfg.Int("max_output_tokens"); ok {
		gc.MaxOutputTokens = &v
		set = true
	}
	if !set {
		return nil
	}
	return &gc
}

func (a *GeminiAdapter) ExtractText(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", malformed(a.family, "body is not a generateContent response", err)
	}
	if len(resp.Candidates) == 0 {
		return "", malformed(a.family, "empty candidates array", nil)
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", malformed(a.family, "missing content parts", nil)
	}
	if content.Parts[0].Text == nil {
		return "", malformed(a.family, "first part has no text", nil)
	}
	return *content.Parts[0].Text, nil
}

func (a *GeminiAdapter) ExtractTokenUsage(body []byte) int {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0
	}
	return resp.UsageMetadata.TotalTokenCount
}
