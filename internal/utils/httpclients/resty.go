package httpclients

import (
	"context"
	"time"

	"jan-server/services/dispatch-api/internal/infrastructure/logger"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"

	"resty.dev/v3"
)

type HTTPClientStartsAt struct{}

// NewClient returns a resty client that debug-logs every exchange.
// Query strings and bodies are never logged since some providers carry credentials there.
func NewClient(clientName string, timeout time.Duration) *resty.Client {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)

	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		r.SetContext(context.WithValue(r.Context(), HTTPClientStartsAt{}, time.Now()))
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		log := logger.GetLogger()
		ctx := r.Request.Context()
		startTime, _ := ctx.Value(HTTPClientStartsAt{}).(time.Time)
		requestID, _ := ctx.Value(platformerrors.RequestIDKey{}).(string)

		event := log.Debug().
			Str("request_id", requestID).
			Str("client", clientName).
			Int("status", r.StatusCode()).
			Dur("latency", time.Since(startTime))
		if raw := r.Request.RawRequest; raw != nil {
			event = event.Str("method", raw.Method).Str("host", raw.URL.Host).Str("path", raw.URL.Path)
		}
		event.Msg("HTTP client request")
		return nil
	})
	return client
}
