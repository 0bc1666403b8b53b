package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/domain/provider"
)

func parkFixture(t *testing.T, f *fixture, reset time.Time) {
	t.Helper()
	f.store.SetKey(f.keyID, func(k *provider.ProviderKey) {
		k.Status = provider.KeyStatusRateLimited
		k.RateLimitResetAt = &reset
	})
	_, err := f.store.Sessions().MarkPending(context.Background(), f.session.ID, start)
	require.NoError(t, err)
}

func TestRunRecoverySweep_RecoversElapsed(t *testing.T) {
	f := newFixture(t)
	parkFixture(t, f, start.Add(-time.Second))

	res, err := f.sweeper.RunRecoverySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.SweepResult{KeysRecovered: 1, SessionsRecovered: 1}, res)

	key := f.store.Key(f.keyID)
	assert.Equal(t, provider.KeyStatusActive, key.Status)
	assert.Nil(t, key.RateLimitResetAt)
	assert.Equal(t, chat.SessionStatusActive, f.store.Session(f.session.ID).Status)

	again, err := f.sweeper.RunRecoverySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.SweepResult{}, again)
}

func TestRunRecoverySweep_LeavesCoolingDownKeys(t *testing.T) {
	f := newFixture(t)
	parkFixture(t, f, start.Add(time.Minute))

	res, err := f.sweeper.RunRecoverySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.SweepResult{}, res)
	assert.Equal(t, provider.KeyStatusRateLimited, f.store.Key(f.keyID).Status)

	f.clock.Advance(time.Minute)
	res, err = f.sweeper.RunRecoverySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.KeysRecovered)
}

func TestRunRecoverySweep_ReactivatesSessionOfAlreadyRecoveredKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Sessions().MarkPending(context.Background(), f.session.ID, start)
	require.NoError(t, err)

	res, err := f.sweeper.RunRecoverySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.SweepResult{KeysRecovered: 0, SessionsRecovered: 1}, res)
}

func TestRunRecoverySweep_NeverRecoversDisabledKeys(t *testing.T) {
	f := newFixture(t)
	f.store.SetKey(f.keyID, func(k *provider.ProviderKey) { k.Status = provider.KeyStatusDisabled })
	_, err := f.store.Sessions().MarkPending(context.Background(), f.session.ID, start)
	require.NoError(t, err)

	res, err := f.sweeper.RunRecoverySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.SweepResult{}, res)
	assert.Equal(t, provider.KeyStatusDisabled, f.store.Key(f.keyID).Status)
	assert.Equal(t, chat.SessionStatusPendingRateLimit, f.store.Session(f.session.ID).Status)
}
