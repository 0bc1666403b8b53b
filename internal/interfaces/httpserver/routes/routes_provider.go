package routes

import (
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/handlers/adminhandler"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/handlers/keyhandler"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/handlers/sessionhandler"
	v1 "jan-server/services/dispatch-api/internal/interfaces/httpserver/routes/v1"

	"github.com/google/wire"
)

var RouteProvider = wire.NewSet(
	// Handlers
	sessionhandler.NewSessionHandler,
	keyhandler.NewKeyHandler,
	adminhandler.NewAdminHandler,

	// Routes
	v1.NewV1Route,
)
