package repository

import (
	"jan-server/services/dispatch-api/internal/infrastructure/database/repository/chatrepo"
	"jan-server/services/dispatch-api/internal/infrastructure/database/repository/providerrepo"

	"github.com/google/wire"
)

var RepositoryProvider = wire.NewSet(
	providerrepo.NewProviderGormRepository,
	providerrepo.NewKeyGormRepository,
	chatrepo.NewSessionGormRepository,
	chatrepo.NewMessageGormRepository,
)
