package platformerrors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HTTPErrorResponse represents the standard error response format.
type HTTPErrorResponse struct {
	Error *HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail contains error details for HTTP responses.
type HTTPErrorDetail struct {
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Code      string         `json:"code,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// PublicContextKeys lists PlatformError context fields that are safe to echo to clients.
var PublicContextKeys = []string{"reset_at", "kind", "provider_status"}

var typeNames = map[ErrorType]string{
	ErrorTypeNotFound:           "not_found_error",
	ErrorTypeValidation:         "validation_error",
	ErrorTypeRateLimited:        "rate_limited_error",
	ErrorTypeServiceUnavailable: "service_unavailable_error",
	ErrorTypeExternal:           "external_error",
}

// WriteHTTPError logs err and renders it. A nil err is rendered as a bare 500.
func WriteHTTPError(c *gin.Context, err *PlatformError, log zerolog.Logger) {
	if err == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, HTTPErrorResponse{
			Error: &HTTPErrorDetail{Message: "unknown error", Type: "internal_error"},
		})
		return
	}

	status := ErrorTypeToHTTPStatus(err.Type)
	logHTTPError(log, status, err)

	detail := &HTTPErrorDetail{
		Message:   err.Message,
		Type:      typeName(err.Type),
		Code:      err.UUID,
		RequestID: err.RequestID,
	}
	for _, key := range PublicContextKeys {
		if v, ok := err.Context[key]; ok {
			if detail.Details == nil {
				detail.Details = make(map[string]any)
			}
			detail.Details[key] = v
		}
	}

	c.AbortWithStatusJSON(status, HTTPErrorResponse{Error: detail})
}

func typeName(t ErrorType) string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "internal_error"
}

// logHTTPError logs 5xx at error level and everything else at warn.
func logHTTPError(log zerolog.Logger, status int, err *PlatformError) {
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event = event.
		Str("error_code", err.UUID).
		Str("error_type", string(err.Type)).
		Str("layer", string(err.Layer)).
		Int("status", status)
	if err.RequestID != "" {
		event = event.Str("request_id", err.RequestID)
	}
	for _, key := range PublicContextKeys {
		if v, ok := err.Context[key]; ok {
			event = event.Interface(key, v)
		}
	}
	if err.Err != nil {
		event = event.Err(err.Err)
	}
	event.Msg(err.Message)
}
