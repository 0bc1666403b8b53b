package inference

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"resty.dev/v3"

	"jan-server/services/dispatch-api/internal/domain/clock"
	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/infrastructure/inference/adapters"
	"jan-server/services/dispatch-api/internal/infrastructure/logger"
	"jan-server/services/dispatch-api/internal/infrastructure/metrics"
	"jan-server/services/dispatch-api/internal/infrastructure/observability"
	"jan-server/services/dispatch-api/internal/utils/httpclients"
)

const DefaultRequestTimeout = 120 * time.Second

// Client executes provider calls through the adapter registered for each provider.
// It never retries; a failed call is reported once.
type Client struct {
	http     *resty.Client
	registry *adapters.Registry
	clock    clock.Clock
}

var _ dispatch.Completer = (*Client)(nil)

func NewClient(registry *adapters.Registry, clk clock.Clock, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		http:     httpclients.NewClient("ProviderClient", timeout),
		registry: registry,
		clock:    clk,
	}
}

func (c *Client) Complete(ctx context.Context, req dispatch.CompletionRequest) (*dispatch.Completion, error) {
	p := req.Provider
	adapter, err := c.registry.Lookup(p.Adapter)
	if err != nil {
		return nil, outcome.Unavailable(fmt.Sprintf("provider %s is misconfigured", p.Code), err)
	}

	messages := make([]adapters.Message, 0, len(req.Turns))
	for _, turn := range req.Turns {
		messages = append(messages, adapters.Message{Role: string(turn.Role), Content: turn.Content})
	}
	prepared, err := adapter.BuildRequest(p, req.Model, req.APIKey, messages)
	if err != nil {
		return nil, outcome.Unavailable(fmt.Sprintf("provider %s is misconfigured", p.Code), err)
	}

	ctx, span := observability.StartProviderSpan(ctx, p.Code, adapter.Code(), req.Model, len(messages))
	defer span.End()

	start := time.Now()
	completion, err := c.execute(ctx, adapter, prepared)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		label := string(outcome.KindServiceUnavailable)
		if oe, ok := outcome.As(err); ok {
			label = string(oe.Kind)
		}
		metrics.RecordProviderCall(p.Code, req.Model, label, elapsed)
		observability.RecordError(ctx, err)
		log := logger.GetLogger()
		log.Warn().Err(err).Str("provider", p.Code).Str("model", req.Model).Str("outcome", label).Msg("provider call failed")
		return nil, err
	}

	metrics.RecordProviderCall(p.Code, req.Model, "success", elapsed)
	metrics.RecordTokens(p.Code, req.Model, completion.TokenUsage)
	observability.AddSpanAttributes(ctx, attribute.Int("provider.tokens", completion.TokenUsage))
	return completion, nil
}

func (c *Client) execute(ctx context.Context, adapter adapters.Adapter, prepared *adapters.Request) (*dispatch.Completion, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(prepared.Headers).
		SetQueryParams(prepared.Query).
		SetBody(prepared.Body).
		Post(prepared.Endpoint)
	if err != nil {
		return nil, outcome.Unavailable("provider unreachable", redactURL(err))
	}

	body := []byte(resp.String())
	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, adapter.ClassifyError(status, resp.Header(), body, c.clock.Now())
	}

	text, err := adapter.ExtractText(body)
	if err != nil {
		return nil, err
	}
	return &dispatch.Completion{Text: text, TokenUsage: adapter.ExtractTokenUsage(body)}, nil
}

// redactURL strips the query string from transport errors; some providers take the
// API key as a query parameter.
func redactURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	if parsed, parseErr := url.Parse(urlErr.URL); parseErr == nil {
		parsed.RawQuery = ""
		return &url.Error{Op: urlErr.Op, URL: parsed.String(), Err: urlErr.Err}
	}
	return &url.Error{Op: urlErr.Op, URL: "[redacted]", Err: urlErr.Err}
}
