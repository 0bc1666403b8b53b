package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/domain/domaintest"
	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/utils/crypto"
)

const testSecret = "dispatch-test-secret"

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stubCompleter replays scripted results and records every call.
type stubCompleter struct {
	mu      sync.Mutex
	calls   []dispatch.CompletionRequest
	results []stubResult
}

type stubResult struct {
	completion *dispatch.Completion
	err        error
}

func (s *stubCompleter) Complete(ctx context.Context, req dispatch.CompletionRequest) (*dispatch.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if len(s.results) == 0 {
		return &dispatch.Completion{Text: "ok"}, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.completion, r.err
}

func (s *stubCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fixture struct {
	store     *domaintest.Store
	clock     *domaintest.Clock
	completer *stubCompleter
	orch      *dispatch.Orchestrator
	sweeper   *dispatch.Sweeper
	session   *chat.Session
	keyID     uint
}

func newFixture(t *testing.T, results ...stubResult) *fixture {
	t.Helper()
	ctx := context.Background()
	store := domaintest.NewStore()
	clk := domaintest.NewClock(start)

	require.NoError(t, store.Providers().Upsert(ctx, &provider.Provider{
		Code: "openai", Enabled: true, Adapter: "openai", DefaultModel: "gpt-4o-mini",
	}))
	encrypted, err := crypto.EncryptString(testSecret, "sk-test")
	require.NoError(t, err)
	key := &provider.ProviderKey{ProviderID: 1, EncryptedKey: encrypted}
	require.NoError(t, store.Keys().Create(ctx, key))

	session := &chat.Session{
		PublicID:   "chat_fixture",
		OwnerID:    "user_1",
		ProviderID: 1,
		KeyID:      key.ID,
		Status:     chat.SessionStatusActive,
	}
	require.NoError(t, store.Sessions().Create(ctx, session))

	completer := &stubCompleter{results: results}
	orch := dispatch.NewOrchestrator(store, store.Sessions(), store.Messages(), store.Providers(), store.Keys(),
		completer, clk, dispatch.Config{KeySecret: testSecret})
	sweeper := dispatch.NewSweeper(store, store.Keys(), store.Sessions(), clk)

	return &fixture{
		store:     store,
		clock:     clk,
		completer: completer,
		orch:      orch,
		sweeper:   sweeper,
		session:   session,
		keyID:     key.ID,
	}
}

func TestSendMessage_Success(t *testing.T) {
	f := newFixture(t, stubResult{completion: &dispatch.Completion{Text: "hello back", TokenUsage: 12}})

	res, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "hello")
	require.NoError(t, err)

	assert.Equal(t, chat.SessionStatusActive, res.SessionStatus)
	assert.Equal(t, "hello back", res.AssistantMessage.Content)
	assert.Equal(t, chat.RoleAssistant, res.AssistantMessage.Role)
	require.NotNil(t, res.AssistantMessage.TokenCount)
	assert.Equal(t, 12, *res.AssistantMessage.TokenCount)

	require.Equal(t, 1, f.completer.callCount())
	call := f.completer.calls[0]
	assert.Equal(t, "sk-test", call.APIKey)
	assert.Equal(t, "gpt-4o-mini", call.Model)
	assert.Equal(t, []dispatch.Turn{{Role: chat.RoleUser, Content: "hello"}}, call.Turns)

	key := f.store.Key(f.keyID)
	require.NotNil(t, key.LastUsedAt)
	assert.Equal(t, start, *key.LastUsedAt)
	assert.Equal(t, 2, f.store.MessageCount(f.session.ID))
}

func TestSendMessage_SendsFullHistory(t *testing.T) {
	f := newFixture(t,
		stubResult{completion: &dispatch.Completion{Text: "first reply"}},
		stubResult{completion: &dispatch.Completion{Text: "second reply"}},
	)

	_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "one")
	require.NoError(t, err)
	_, err = f.orch.SendMessage(context.Background(), f.session.PublicID, "two")
	require.NoError(t, err)

	assert.Equal(t, []dispatch.Turn{
		{Role: chat.RoleUser, Content: "one"},
		{Role: chat.RoleAssistant, Content: "first reply"},
		{Role: chat.RoleUser, Content: "two"},
	}, f.completer.calls[1].Turns)
}

func TestSendMessage_RateLimitParksThenRecovers(t *testing.T) {
	resetAt := start.Add(60 * time.Second)
	f := newFixture(t,
		stubResult{err: outcome.RateLimited(resetAt)},
		stubResult{completion: &dispatch.Completion{Text: "back again"}},
	)

	_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "hello")
	oe, ok := outcome.As(err)
	require.True(t, ok)
	assert.Equal(t, outcome.KindRateLimited, oe.Kind)
	assert.WithinDuration(t, resetAt, *oe.ResetAt, time.Second)

	key := f.store.Key(f.keyID)
	assert.Equal(t, provider.KeyStatusRateLimited, key.Status)
	require.NotNil(t, key.RateLimitResetAt)
	assert.WithinDuration(t, resetAt, *key.RateLimitResetAt, time.Second)
	assert.Equal(t, chat.SessionStatusPendingRateLimit, f.store.Session(f.session.ID).Status)

	// Short-circuit while cooling down.
	_, err = f.orch.SendMessage(context.Background(), f.session.PublicID, "still there?")
	assert.True(t, outcome.IsKind(err, outcome.KindRateLimited))
	assert.Equal(t, 1, f.completer.callCount())
	assert.Equal(t, 1, f.store.MessageCount(f.session.ID))

	f.clock.Advance(61 * time.Second)
	res, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "hello again")
	require.NoError(t, err)
	assert.Equal(t, 2, f.completer.callCount())
	assert.Equal(t, chat.SessionStatusActive, res.SessionStatus)

	key = f.store.Key(f.keyID)
	assert.Equal(t, provider.KeyStatusActive, key.Status)
	assert.Nil(t, key.RateLimitResetAt)
	assert.Equal(t, chat.SessionStatusActive, f.store.Session(f.session.ID).Status)
}

func TestSendMessage_PendingSessionNeverCallsProvider(t *testing.T) {
	f := newFixture(t)
	reset := start.Add(time.Hour)
	f.store.SetKey(f.keyID, func(k *provider.ProviderKey) {
		k.Status = provider.KeyStatusRateLimited
		k.RateLimitResetAt = &reset
	})
	_, err := f.store.Sessions().MarkPending(context.Background(), f.session.ID, start)
	require.NoError(t, err)

	_, err = f.orch.SendMessage(context.Background(), f.session.PublicID, "hello")
	oe, ok := outcome.As(err)
	require.True(t, ok)
	assert.Equal(t, outcome.KindRateLimited, oe.Kind)
	assert.Equal(t, reset, *oe.ResetAt)
	assert.Zero(t, f.completer.callCount())
	assert.Zero(t, f.store.MessageCount(f.session.ID))
}

func TestSendMessage_ActiveSessionOnParkedKeyIsParked(t *testing.T) {
	f := newFixture(t)
	reset := start.Add(time.Hour)
	f.store.SetKey(f.keyID, func(k *provider.ProviderKey) {
		k.Status = provider.KeyStatusRateLimited
		k.RateLimitResetAt = &reset
	})

	_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "hello")
	assert.True(t, outcome.IsKind(err, outcome.KindRateLimited))
	assert.Zero(t, f.completer.callCount())
	assert.Equal(t, chat.SessionStatusPendingRateLimit, f.store.Session(f.session.ID).Status)
}

func TestSendMessage_StatelessFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind outcome.Kind
	}{
		{name: "malformed response", err: outcome.Malformed("missing choices", nil), kind: outcome.KindMalformedResponse},
		{name: "auth invalid", err: outcome.AuthInvalid("bad key"), kind: outcome.KindProviderAuthInvalid},
		{name: "provider error", err: outcome.ProviderError(500, "boom"), kind: outcome.KindProviderError},
		{name: "unavailable", err: outcome.Unavailable("timeout", nil), kind: outcome.KindServiceUnavailable},
		{name: "untyped error", err: errors.New("dial tcp: refused"), kind: outcome.KindServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stubResult{err: tt.err})
			keyBefore := f.store.Key(f.keyID)

			_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "hello")
			assert.True(t, outcome.IsKind(err, tt.kind), "got %v", err)

			assert.Equal(t, keyBefore, f.store.Key(f.keyID))
			assert.Equal(t, chat.SessionStatusActive, f.store.Session(f.session.ID).Status)
			// The user turn survives a failed assistant leg.
			assert.Equal(t, 1, f.store.MessageCount(f.session.ID))
		})
	}
}

func TestSendMessage_UnusableKeyOrProvider(t *testing.T) {
	t.Run("disabled key", func(t *testing.T) {
		f := newFixture(t)
		f.store.SetKey(f.keyID, func(k *provider.ProviderKey) { k.Status = provider.KeyStatusDisabled })
		_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "hello")
		assert.True(t, outcome.IsKind(err, outcome.KindServiceUnavailable))
		assert.Zero(t, f.completer.callCount())
	})

	t.Run("disabled provider", func(t *testing.T) {
		f := newFixture(t)
		f.store.SetProvider(1, func(p *provider.Provider) { p.Enabled = false })
		_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "hello")
		assert.True(t, outcome.IsKind(err, outcome.KindServiceUnavailable))
		assert.Zero(t, f.completer.callCount())
	})

	t.Run("undecryptable key", func(t *testing.T) {
		f := newFixture(t)
		f.store.SetKey(f.keyID, func(k *provider.ProviderKey) { k.EncryptedKey = "not-base64!" })
		_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "hello")
		assert.True(t, outcome.IsKind(err, outcome.KindServiceUnavailable))
		assert.Zero(t, f.store.MessageCount(f.session.ID))
	})

	t.Run("empty text", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.SendMessage(context.Background(), f.session.PublicID, "   ")
		assert.True(t, outcome.IsKind(err, outcome.KindValidation))
	})
}

func TestSendMessage_CancelledCallerStillPersists(t *testing.T) {
	f := newFixture(t, stubResult{completion: &dispatch.Completion{Text: "late reply"}})
	ctx, cancel := context.WithCancel(context.Background())
	wrapped := &cancelAfterCall{inner: f.completer, cancel: cancel}
	orch := dispatch.NewOrchestrator(f.store, f.store.Sessions(), f.store.Messages(), f.store.Providers(), f.store.Keys(),
		wrapped, f.clock, dispatch.Config{KeySecret: testSecret})

	res, err := orch.SendMessage(ctx, f.session.PublicID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "late reply", res.AssistantMessage.Content)
	assert.Equal(t, 2, f.store.MessageCount(f.session.ID))
}

type cancelAfterCall struct {
	inner  dispatch.Completer
	cancel context.CancelFunc
}

func (c *cancelAfterCall) Complete(ctx context.Context, req dispatch.CompletionRequest) (*dispatch.Completion, error) {
	res, err := c.inner.Complete(ctx, req)
	c.cancel()
	return res, err
}
