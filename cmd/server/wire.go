//go:build wireinject

package main

import (
	"jan-server/services/dispatch-api/internal/domain"
	"jan-server/services/dispatch-api/internal/infrastructure"
	"jan-server/services/dispatch-api/internal/interfaces"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/routes"

	"github.com/google/wire"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		routes.RouteProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(DataInitializer), "*"),
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
