package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/dispatch-api/internal/interfaces/httpserver/handlers/adminhandler"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/handlers/keyhandler"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/handlers/sessionhandler"
)

type V1Route struct {
	sessions *sessionhandler.SessionHandler
	keys     *keyhandler.KeyHandler
	admin    *adminhandler.AdminHandler
}

func NewV1Route(
	sessions *sessionhandler.SessionHandler,
	keys *keyhandler.KeyHandler,
	admin *adminhandler.AdminHandler,
) *V1Route {
	return &V1Route{
		sessions: sessions,
		keys:     keys,
		admin:    admin,
	}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")

	providers := v1Router.Group("/providers")
	providers.POST("/:provider_code/keys/select", v1Route.keys.SelectKey)

	sessions := v1Router.Group("/sessions")
	sessions.POST("", v1Route.sessions.CreateSession)
	sessions.GET("/:session_id", v1Route.sessions.GetSession)
	sessions.POST("/:session_id/messages", v1Route.sessions.SendMessage)
	sessions.GET("/:session_id/messages", v1Route.sessions.ListMessages)

	admin := v1Router.Group("/admin")
	admin.POST("/recovery-sweep", v1Route.admin.RunRecoverySweep)
	admin.GET("/key-pools", v1Route.admin.ListKeyPools)
}
