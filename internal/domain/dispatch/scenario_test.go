package dispatch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/infrastructure/inference"
	"jan-server/services/dispatch-api/internal/infrastructure/inference/adapters"
)

// stubProvider is an OpenAI-shaped endpoint whose reply is switched per test step.
type stubProvider struct {
	server *httptest.Server
	calls  atomic.Int32
	mode   atomic.Value
}

func newStubProvider(t *testing.T) *stubProvider {
	t.Helper()
	s := &stubProvider{}
	s.mode.Store("ok")
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch s.mode.Load().(string) {
		case "rate_limited":
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
		case "malformed":
			_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion"}`))
		default:
			_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"pong"}}],"usage":{"total_tokens":5}}`))
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func newProviderFixture(t *testing.T, stub *stubProvider) *fixture {
	t.Helper()
	f := newFixture(t)
	f.store.SetProvider(1, func(p *provider.Provider) { p.Endpoint = stub.server.URL })
	client := inference.NewClient(adapters.NewRegistry(time.Hour), f.clock, 5*time.Second)
	f.orch = dispatch.NewOrchestrator(f.store, f.store.Sessions(), f.store.Messages(), f.store.Providers(), f.store.Keys(),
		client, f.clock, dispatch.Config{KeySecret: testSecret})
	return f
}

func TestScenario_RateLimitParkAndRecover(t *testing.T) {
	stub := newStubProvider(t)
	f := newProviderFixture(t, stub)
	ctx := context.Background()

	stub.mode.Store("rate_limited")
	_, err := f.orch.SendMessage(ctx, f.session.PublicID, "ping")
	oe, ok := outcome.As(err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, outcome.KindRateLimited, oe.Kind)
	assert.WithinDuration(t, start.Add(60*time.Second), *oe.ResetAt, time.Second)

	key := f.store.Key(f.keyID)
	assert.Equal(t, provider.KeyStatusRateLimited, key.Status)
	assert.WithinDuration(t, start.Add(60*time.Second), *key.RateLimitResetAt, time.Second)
	assert.Equal(t, chat.SessionStatusPendingRateLimit, f.store.Session(f.session.ID).Status)

	// Parked: the provider is not contacted.
	_, err = f.orch.SendMessage(ctx, f.session.PublicID, "ping")
	assert.True(t, outcome.IsKind(err, outcome.KindRateLimited))
	assert.Equal(t, int32(1), stub.calls.Load())

	stub.mode.Store("ok")
	f.clock.Advance(2 * time.Minute)
	res, err := f.orch.SendMessage(ctx, f.session.PublicID, "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", res.AssistantMessage.Content)
	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Equal(t, provider.KeyStatusActive, f.store.Key(f.keyID).Status)
	assert.Nil(t, f.store.Key(f.keyID).RateLimitResetAt)
	assert.Equal(t, chat.SessionStatusActive, f.store.Session(f.session.ID).Status)
}

func TestScenario_MalformedLeavesStateUnchanged(t *testing.T) {
	stub := newStubProvider(t)
	f := newProviderFixture(t, stub)
	stub.mode.Store("malformed")
	before := f.store.Key(f.keyID)

	_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "ping")
	assert.True(t, outcome.IsKind(err, outcome.KindMalformedResponse), "got %v", err)

	assert.Equal(t, before, f.store.Key(f.keyID))
	assert.Equal(t, chat.SessionStatusActive, f.store.Session(f.session.ID).Status)
}

func TestScenario_SweepRecoversIdleSession(t *testing.T) {
	stub := newStubProvider(t)
	f := newProviderFixture(t, stub)
	stub.mode.Store("rate_limited")

	_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "ping")
	require.True(t, outcome.IsKind(err, outcome.KindRateLimited))

	res, err := f.sweeper.RunRecoverySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.SweepResult{}, res)

	f.clock.Advance(61 * time.Second)
	res, err = f.sweeper.RunRecoverySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.SweepResult{KeysRecovered: 1, SessionsRecovered: 1}, res)

	res, err = f.sweeper.RunRecoverySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.SweepResult{}, res)
}
