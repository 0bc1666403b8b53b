package crontab_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/domain/domaintest"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/infrastructure/crontab"
)

func newCrontab(t *testing.T, schedule crontab.Schedule) (*crontab.Crontab, *domaintest.Store, uint, uint) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := domaintest.NewClock(now)
	store := domaintest.NewStore()
	ctx := context.Background()

	p := &provider.Provider{Code: "openai", Enabled: true, Adapter: "openai"}
	require.NoError(t, store.Providers().Upsert(ctx, p))
	past := now.Add(-time.Minute)
	key := &provider.ProviderKey{ProviderID: p.ID, Status: provider.KeyStatusRateLimited, RateLimitResetAt: &past, DailyUsage: 4}
	require.NoError(t, store.Keys().Create(ctx, key))
	session := &chat.Session{PublicID: "chat_cron", ProviderID: p.ID, KeyID: key.ID, Status: chat.SessionStatusPendingRateLimit}
	require.NoError(t, store.Sessions().Create(ctx, session))

	sweeper := dispatch.NewSweeper(store, store.Keys(), store.Sessions(), clk)
	pools := provider.NewPoolService(store.Providers(), store.Keys(), clk)
	return crontab.NewCrontab(schedule, sweeper, pools), store, key.ID, session.ID
}

func TestRun_SweepsOnStartAndStopsWithContext(t *testing.T) {
	c, store, keyID, sessionID := newCrontab(t, crontab.Schedule{SweepEnabled: true, SweepIntervalMinutes: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return store.Session(sessionID).Status == chat.SessionStatusActive
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, provider.KeyStatusActive, store.Key(keyID).Status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_DisabledSweepLeavesStateAlone(t *testing.T) {
	c, store, keyID, _ := newCrontab(t, crontab.Schedule{SweepEnabled: false})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Run(ctx))
	assert.Equal(t, provider.KeyStatusRateLimited, store.Key(keyID).Status)
}

func TestRun_RejectsInvalidResetCron(t *testing.T) {
	c, _, _, _ := newCrontab(t, crontab.Schedule{DailyResetCron: "not a cron"})
	err := c.Run(context.Background())
	assert.Error(t, err)
}

func TestRun_RejectsSweepIntervalPastAnHour(t *testing.T) {
	c, store, keyID, _ := newCrontab(t, crontab.Schedule{SweepEnabled: true, SweepIntervalMinutes: 90})

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep interval")
	assert.Equal(t, provider.KeyStatusRateLimited, store.Key(keyID).Status)
}
