package dispatch

import (
	"context"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/provider"
)

// Turn is one provider-agnostic history entry.
type Turn struct {
	Role    chat.Role
	Content string
}

type CompletionRequest struct {
	Provider *provider.Provider
	Model    string
	APIKey   string
	Turns    []Turn
}

type Completion struct {
	Text       string
	TokenUsage int
}

// Completer executes one provider round trip. Failures are *outcome.Error values;
// any other error is treated as the provider being unavailable.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
