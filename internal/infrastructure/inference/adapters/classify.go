package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jan-server/services/dispatch-api/internal/domain/outcome"
)

const maxErrorMessageLen = 512

// errorClassifier is shared by every adapter; the provider families agree on status
// semantics and all nest their message under error.message.
type errorClassifier struct {
	family   string
	cooldown time.Duration
}

func (c errorClassifier) ClassifyError(status int, headers http.Header, body []byte, now time.Time) *outcome.Error {
	switch {
	case status == http.StatusTooManyRequests:
		return outcome.RateLimited(ResetAt(headers, now, c.cooldown))
	case status == http.StatusUnauthorized:
		return outcome.AuthInvalid(fmt.Sprintf("%s rejected the API key", c.family))
	case status == 0:
		return outcome.Unavailable(fmt.Sprintf("%s service unavailable", c.family), nil)
	default:
		return outcome.ProviderError(status, errorMessage(c.family, body))
	}
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func errorMessage(family string, body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && strings.TrimSpace(env.Error.Message) != "" {
		return truncate(env.Error.Message)
	}
	return fmt.Sprintf("%s API error", family)
}

func truncate(s string) string {
	if len(s) <= maxErrorMessageLen {
		return s
	}
	return s[:maxErrorMessageLen] + "..."
}

func malformed(family, detail string, err error) *outcome.Error {
	return outcome.Malformed(fmt.Sprintf("invalid response format from %s: %s", family, detail), err)
}
