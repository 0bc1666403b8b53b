package domain

import (
	"github.com/google/wire"

	"jan-server/services/dispatch-api/internal/config"
	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/clock"
	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/domain/txn"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	clock.NewSystem,

	// Provider key pools
	provider.NewKeySelector,
	provider.NewPoolService,
	ProvideKeyProvisioner,

	// Chat sessions
	chat.NewSessionService,

	// Dispatch
	ProvideDispatchConfig,
	dispatch.NewOrchestrator,
	dispatch.NewSweeper,
)

func ProvideDispatchConfig(cfg *config.Config) dispatch.Config {
	return dispatch.Config{
		KeySecret: cfg.ProviderKeySecret,
	}
}

func ProvideKeyProvisioner(
	tx txn.Runner,
	providers provider.ProviderRepository,
	keys provider.KeyRepository,
	cfg *config.Config,
) *provider.KeyProvisioner {
	return provider.NewKeyProvisioner(tx, providers, keys, cfg.ProviderKeySecret)
}
