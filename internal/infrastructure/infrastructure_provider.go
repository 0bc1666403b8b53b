package infrastructure

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/dispatch-api/internal/config"
	"jan-server/services/dispatch-api/internal/domain/clock"
	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/domain/txn"
	"jan-server/services/dispatch-api/internal/infrastructure/crontab"
	"jan-server/services/dispatch-api/internal/infrastructure/database"
	"jan-server/services/dispatch-api/internal/infrastructure/database/repository"
	"jan-server/services/dispatch-api/internal/infrastructure/database/transaction"
	"jan-server/services/dispatch-api/internal/infrastructure/inference"
	"jan-server/services/dispatch-api/internal/infrastructure/inference/adapters"
	"jan-server/services/dispatch-api/internal/infrastructure/logger"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideLogger installs the configured process logger.
func ProvideLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logger.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Environment)
}

// ProvideDatabase provides a database connection
func ProvideDatabase(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(database.Config{
		DatabaseURL: cfg.GetDatabaseWriteDSN(),
		ReplicaURL:  cfg.DBPostgresqlRead1DSN,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxLifetime: cfg.DBConnMaxLifetime,
		LogLevel:    gormlogger.Silent,
	})
	if err != nil {
		return nil, err
	}

	// Run migrations if AUTO_MIGRATE is enabled
	if cfg.AutoMigrate {
		log.Info().Msg("Running database migrations...")
		if err := database.AutoMigrate(context.Background(), db); err != nil {
			log.Error().Err(err).Msg("Failed to run database migrations")
			return nil, err
		}
		log.Info().Msg("Database migrations completed successfully")
	}

	return db, nil
}

// ProvideTransactionDatabase provides a transaction database wrapper
func ProvideTransactionDatabase(db *gorm.DB) *transaction.Database {
	return transaction.NewDatabase(db)
}

// ProvideAdapterRegistry builds the wire-format adapters keyed by provider family.
func ProvideAdapterRegistry(cfg *config.Config) *adapters.Registry {
	return adapters.NewRegistry(cfg.RateLimitDefaultCooldown)
}

// ProvideInferenceClient provides the outbound provider transport.
func ProvideInferenceClient(registry *adapters.Registry, clk clock.Clock, cfg *config.Config) *inference.Client {
	return inference.NewClient(registry, clk, cfg.ProviderRequestTimeout)
}

// Infrastructure holds all infrastructure dependencies
type Infrastructure struct {
	DB     *gorm.DB
	Logger zerolog.Logger
}

// NewInfrastructure creates a new infrastructure instance
func NewInfrastructure(db *gorm.DB, logger zerolog.Logger) *Infrastructure {
	return &Infrastructure{
		DB:     db,
		Logger: logger,
	}
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,
	ProvideLogger,

	// Database
	ProvideDatabase,
	ProvideTransactionDatabase,
	wire.Bind(new(txn.Runner), new(*transaction.Database)),

	// Repositories
	repository.RepositoryProvider,

	// Provider transport
	ProvideAdapterRegistry,
	ProvideInferenceClient,
	wire.Bind(new(dispatch.Completer), new(*inference.Client)),

	// Background jobs
	crontab.NewSchedule,
	crontab.NewCrontab,

	// Infrastructure struct
	NewInfrastructure,
)
