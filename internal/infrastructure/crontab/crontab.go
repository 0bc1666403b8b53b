package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"jan-server/services/dispatch-api/internal/config"
	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/infrastructure/logger"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

const (
	DefaultSweepInterval = 1                // in minutes
	CronJobTimeout       = 5 * time.Minute // Timeout for each cron job execution
)

// Schedule selects which background jobs run and when.
type Schedule struct {
	SweepEnabled         bool
	SweepIntervalMinutes int
	DailyResetCron       string
}

func NewSchedule(cfg *config.Config) Schedule {
	return Schedule{
		SweepEnabled:         cfg.RecoverySweepEnabled,
		SweepIntervalMinutes: cfg.RecoverySweepIntervalMinutes,
		DailyResetCron:       cfg.DailyUsageResetCron,
	}
}

type Crontab struct {
	ctab     *crontab.Crontab
	schedule Schedule
	sweeper  *dispatch.Sweeper
	pools    *provider.PoolService
}

func NewCrontab(schedule Schedule, sweeper *dispatch.Sweeper, pools *provider.PoolService) *Crontab {
	return &Crontab{
		ctab:     crontab.New(),
		schedule: schedule,
		sweeper:  sweeper,
		pools:    pools,
	}
}

// Run registers the jobs and blocks until ctx is done.
func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	if c.schedule.SweepEnabled {
		cronExpr, err := sweepCron(c.schedule.SweepIntervalMinutes)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "invalid recovery sweep interval")
		}

		// execute once on server start
		c.sweep(ctx)

		if err := c.ctab.AddJob(cronExpr, c.job(c.sweep)); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add recovery sweep job")
		}
		log.Info().Str("cron", cronExpr).Msg("Recovery sweep scheduled")
	}

	if c.schedule.DailyResetCron != "" {
		if err := c.ctab.AddJob(c.schedule.DailyResetCron, c.job(c.resetDailyUsage)); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add daily usage reset job")
		}
		log.Info().Str("cron", c.schedule.DailyResetCron).Msg("Daily key usage reset scheduled")
	}

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

// sweepCron builds the minute-step expression; a zero interval means the default.
func sweepCron(interval int) (string, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if interval > config.MaxRecoverySweepIntervalMinutes {
		return "", fmt.Errorf("sweep interval %d exceeds %d minutes", interval, config.MaxRecoverySweepIntervalMinutes)
	}
	return fmt.Sprintf("*/%d * * * *", interval), nil
}

func (c *Crontab) job(fn func(ctx context.Context)) func() {
	return func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		fn(jobCtx)
	}
}

func (c *Crontab) sweep(ctx context.Context) {
	if _, err := c.sweeper.RunRecoverySweep(ctx); err != nil {
		log := logger.GetLogger()
		log.Error().
			Str("error_code", "e1f4a7c2-5d38-4b9e-a0c6-2f8d1b7e3a59").
			Err(err).
			Msg("recovery sweep failed")
	}
}

func (c *Crontab) resetDailyUsage(ctx context.Context) {
	if _, err := c.pools.ResetDailyUsage(ctx); err != nil {
		log := logger.GetLogger()
		log.Error().
			Str("error_code", "3a9c6e12-8f47-4d5b-b1e0-7c2a4f9d8e63").
			Err(err).
			Msg("daily key usage reset failed")
	}
}
