package dispatch

import (
	"context"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/clock"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/domain/txn"
	"jan-server/services/dispatch-api/internal/infrastructure/logger"
	"jan-server/services/dispatch-api/internal/infrastructure/metrics"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

type SweepResult struct {
	KeysRecovered     int64 `json:"keys_recovered"`
	SessionsRecovered int64 `json:"sessions_recovered"`
}

// Sweeper recovers rate-limited keys whose reset has elapsed and un-parks their
// sessions. It performs the same transition as the lazy check in SendMessage, so it
// only shortens recovery for idle sessions. Disabled keys are never touched.
type Sweeper struct {
	tx       txn.Runner
	keys     provider.KeyRepository
	sessions chat.SessionRepository
	clock    clock.Clock
}

func NewSweeper(tx txn.Runner, keys provider.KeyRepository, sessions chat.SessionRepository, clk clock.Clock) *Sweeper {
	return &Sweeper{tx: tx, keys: keys, sessions: sessions, clock: clk}
}

// RunRecoverySweep is idempotent: a second run without clock progress changes nothing.
func (s *Sweeper) RunRecoverySweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		keyIDs, err := s.keys.RecoverExpired(ctx, now)
		if err != nil {
			return err
		}
		sessions, err := s.sessions.ReactivateForKeys(ctx, keyIDs, now)
		if err != nil {
			return err
		}
		result = SweepResult{KeysRecovered: int64(len(keyIDs)), SessionsRecovered: sessions}
		return nil
	})
	metrics.RecordSweep(result.KeysRecovered, result.SessionsRecovered, err)
	if err != nil {
		return SweepResult{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "recovery sweep failed")
	}

	if result.KeysRecovered > 0 || result.SessionsRecovered > 0 {
		log := logger.GetLogger()
		log.Info().
			Int64("keys_recovered", result.KeysRecovered).
			Int64("sessions_recovered", result.SessionsRecovered).
			Msg("recovery sweep completed")
	}
	return result, nil
}
