// Package adapters translates provider-agnostic chat turns into each provider family's
// wire format and classifies the replies.
package adapters

import (
	"net/http"
	"time"

	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/domain/provider"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string
	Content string
}

// Request is a prepared provider call. Body is JSON-encoded by the transport.
type Request struct {
	Endpoint string
	Headers  map[string]string
	Query    map[string]string
	Body     any
}

// Adapter is one provider family's request and response contract. Implementations are
// stateless and safe for concurrent use.
type Adapter interface {
	Code() string
	BuildRequest(p *provider.Provider, model, apiKey string, messages []Message) (*Request, error)

	// ExtractText fails with a MalformedResponse outcome when the 2xx body lacks the reply.
	ExtractText(body []byte) (string, error)

	// ExtractTokenUsage is best effort and returns 0 when usage is not reported.
	ExtractTokenUsage(body []byte) int

	ClassifyError(status int, headers http.Header, body []byte, now time.Time) *outcome.Error
}
