package keyhandler

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/dispatch-api/internal/domain/provider"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/requests"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/responses"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

type KeyHandler struct {
	selector *provider.KeySelector
}

func NewKeyHandler(selector *provider.KeySelector) *KeyHandler {
	return &KeyHandler{selector: selector}
}

// SelectKey handles POST /v1/providers/:provider_code/keys/select. The body is optional.
func (h *KeyHandler) SelectKey(reqCtx *gin.Context) {
	var req requests.SelectKeyRequest
	if reqCtx.Request.ContentLength != 0 {
		if err := reqCtx.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, err.Error(), "0f7c4a2e-8b3d-4e19-a6c5-2d9e7b1f4a83")
			return
		}
	}

	selection, err := h.selector.SelectKeyForProvider(reqCtx.Request.Context(), reqCtx.Param("provider_code"), req.ModelID)
	if err != nil {
		responses.HandleError(reqCtx, err)
		return
	}
	responses.OK(reqCtx, selection)
}
