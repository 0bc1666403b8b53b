package adminhandler

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/responses"
)

type AdminHandler struct {
	sweeper *dispatch.Sweeper
	pools   *provider.PoolService
}

func NewAdminHandler(sweeper *dispatch.Sweeper, pools *provider.PoolService) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, pools: pools}
}

// RunRecoverySweep handles POST /v1/admin/recovery-sweep.
func (h *AdminHandler) RunRecoverySweep(reqCtx *gin.Context) {
	result, err := h.sweeper.RunRecoverySweep(reqCtx.Request.Context())
	if err != nil {
		responses.HandleError(reqCtx, err)
		return
	}
	responses.OK(reqCtx, result)
}

// ListKeyPools handles GET /v1/admin/key-pools.
func (h *AdminHandler) ListKeyPools(reqCtx *gin.Context) {
	report, err := h.pools.PoolStatus(reqCtx.Request.Context())
	if err != nil {
		responses.HandleError(reqCtx, err)
		return
	}
	responses.OK(reqCtx, responses.NewListResponse(report))
}
