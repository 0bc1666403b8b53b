package adapters

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/domain/provider"
)

var conversation = []Message{
	{Role: RoleSystem, Content: "be brief"},
	{Role: RoleUser, Content: "hi"},
	{Role: RoleAssistant, Content: "hello"},
	{Role: RoleUser, Content: "how are you?"},
}

func bodyJSON(t *testing.T, req *Request) map[string]any {
	t.Helper()
	raw, err := json.Marshal(req.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestOpenAIBuildRequest(t *testing.T) {
	a := NewOpenAIAdapter(time.Hour)
	p := &provider.Provider{Code: "openai", Config: provider.Config{"temperature": 0.2}}

	req, err := a.BuildRequest(p, "gpt-4o", "sk-1", conversation)
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1/chat/completions", req.Endpoint)
	assert.Equal(t, "Bearer sk-1", req.Headers["Authorization"])
	assert.Empty(t, req.Query)

	body := bodyJSON(t, req)
	assert.Equal(t, "gpt-4o", body["model"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-6)
	assert.Equal(t, float64(defaultOpenAIMaxTokens), body["max_tokens"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 4)
	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "be brief", system["content"])
}

func TestOpenAICompatibleRequiresEndpoint(t *testing.T) {
	a := NewOpenAICompatibleAdapter(time.Hour)
	_, err := a.BuildRequest(&provider.Provider{Code: "local"}, "llama", "k", conversation)
	require.Error(t, err)

	req, err := a.BuildRequest(&provider.Provider{Code: "local", Endpoint: "http://vllm:8000/v1/chat/completions"}, "llama", "k", conversation)
	require.NoError(t, err)
	assert.Equal(t, "http://vllm:8000/v1/chat/completions", req.Endpoint)
}

func TestAnthropicBuildRequestHoistsSystem(t *testing.T) {
	a := NewAnthropicAdapter(time.Hour)
	p := &provider.Provider{Code: "anthropic", DefaultModel: "claude-3-5-haiku-latest"}

	req, err := a.BuildRequest(p, "", "ak-1", conversation)
	require.NoError(t, err)

	assert.Equal(t, "https://api.anthropic.com/v1/messages", req.Endpoint)
	assert.Equal(t, "ak-1", req.Headers["x-api-key"])
	assert.Equal(t, anthropicVersion, req.Headers["anthropic-version"])

	body := bodyJSON(t, req)
	assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
	assert.Equal(t, float64(defaultAnthropicMaxTokens), body["max_tokens"])
	assert.Equal(t, "be brief", body["system"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 3)
	assert.Equal(t, map[string]any{"role": "user", "content": "hi"}, messages[0])
	_, hasTemperature := body["temperature"]
	assert.False(t, hasTemperature)
}

func TestGeminiBuildRequestMergesSystemIntoFirstUserTurn(t *testing.T) {
	a := NewGeminiAdapter(time.Hour)
	p := &provider.Provider{Code: "gemini", Config: provider.Config{"max_output_tokens": float64(256)}}

	req, err := a.BuildRequest(p, "gemini-1.5-flash", "gk-1", conversation)
	require.NoError(t, err)

	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent", req.Endpoint)
	assert.Equal(t, map[string]string{"key": "gk-1"}, req.Query)
	assert.NotContains(t, req.Headers, "Authorization")

	body := bodyJSON(t, req)
	contents := body["contents"].([]any)
	require.Len(t, contents, 3)
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "be brief\n\nhi", first["parts"].([]any)[0].(map[string]any)["text"])
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	assert.Equal(t, map[string]any{"maxOutputTokens": float64(256)}, body["generationConfig"])
}

func TestExtractText(t *testing.T) {
	registry := NewRegistry(time.Hour)

	tests := []struct {
		adapter   string
		body      string
		want      string
		tokens    int
		malformed bool
	}{
		{adapter: "openai", body: `{"choices":[{"message":{"role":"assistant","content":"hey"}}],"usage":{"total_tokens":9}}`, want: "hey", tokens: 9},
		{adapter: "openai", body: `{"choices":[]}`, malformed: true},
		{adapter: "openai", body: `{"choices":[{"message":{"role":"assistant"}}]}`, malformed: true},
		{adapter: "deepseek", body: `not json`, malformed: true},
		{adapter: "anthropic", body: `{"content":[{"type":"text","text":"hey"}],"usage":{"input_tokens":4,"output_tokens":5}}`, want: "hey", tokens: 9},
		{adapter: "anthropic", body: `{"content":[]}`, malformed: true},
		{adapter: "anthropic", body: `{"content":[{"type":"tool_use","id":"t1"}]}`, malformed: true},
		{adapter: "gemini", body: `{"candidates":[{"content":{"parts":[{"text":"hey"}]}}],"usageMetadata":{"totalTokenCount":9}}`, want: "hey", tokens: 9},
		{adapter: "gemini", body: `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`, want: ""},
		{adapter: "gemini", body: `{"candidates":[]}`, malformed: true},
		{adapter: "gemini", body: `{"candidates":[{"finishReason":"SAFETY"}]}`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.adapter+" "+tt.body, func(t *testing.T) {
			a, err := registry.Lookup(tt.adapter)
			require.NoError(t, err)

			text, err := a.ExtractText([]byte(tt.body))
			if tt.malformed {
				assert.True(t, outcome.IsKind(err, outcome.KindMalformedResponse), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
			assert.Equal(t, tt.tokens, a.ExtractTokenUsage([]byte(tt.body)))
		})
	}
}

func TestExtractTokenUsageNeverFails(t *testing.T) {
	registry := NewRegistry(time.Hour)
	for _, code := range []string{"openai", "anthropic", "gemini"} {
		a, err := registry.Lookup(code)
		require.NoError(t, err)
		assert.Zero(t, a.ExtractTokenUsage([]byte(`garbage`)))
		assert.Zero(t, a.ExtractTokenUsage([]byte(`{}`)))
	}
}

func TestClassifyError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewAnthropicAdapter(time.Hour)

	limited := a.ClassifyError(http.StatusTooManyRequests, http.Header{"Retry-After": []string{"60"}}, nil, now)
	assert.Equal(t, outcome.KindRateLimited, limited.Kind)
	assert.Equal(t, now.Add(time.Minute), *limited.ResetAt)

	auth := a.ClassifyError(http.StatusUnauthorized, http.Header{}, nil, now)
	assert.Equal(t, outcome.KindProviderAuthInvalid, auth.Kind)

	overloaded := a.ClassifyError(529, http.Header{}, []byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`), now)
	assert.Equal(t, outcome.KindProviderError, overloaded.Kind)
	assert.Equal(t, 529, overloaded.Status)
	assert.Equal(t, "Overloaded", overloaded.Message)

	opaque := a.ClassifyError(http.StatusBadGateway, http.Header{}, []byte(`<html>bad gateway</html>`), now)
	assert.Equal(t, "Anthropic API error", opaque.Message)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(0)

	a, err := r.Lookup(" Claude ")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", a.Code())

	require.NoError(t, r.Validate("openai", "deepseek", "gemini"))
	err = r.Validate("openai", "mistral")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral")
}
