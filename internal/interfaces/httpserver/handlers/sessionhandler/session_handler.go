package sessionhandler

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/dispatch-api/internal/domain/chat"
	"jan-server/services/dispatch-api/internal/domain/dispatch"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/requests"
	"jan-server/services/dispatch-api/internal/interfaces/httpserver/responses"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

type SessionHandler struct {
	sessions     *chat.SessionService
	orchestrator *dispatch.Orchestrator
}

func NewSessionHandler(sessions *chat.SessionService, orchestrator *dispatch.Orchestrator) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		orchestrator: orchestrator,
	}
}

// CreateSession handles POST /v1/sessions.
func (h *SessionHandler) CreateSession(reqCtx *gin.Context) {
	var req requests.CreateSessionRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, err.Error(), "6a1d3f8e-2c4b-4e97-9b05-7f3e1a6c2d48")
		return
	}

	session, err := h.sessions.CreateSession(reqCtx.Request.Context(), chat.CreateSessionInput{
		OwnerID:      req.OwnerID,
		ProviderCode: req.Provider,
		ModelID:      req.ModelID,
		ModelName:    req.Model,
		SystemPrompt: req.SystemPrompt,
		Title:        req.Title,
	})
	if err != nil {
		responses.HandleError(reqCtx, err)
		return
	}
	responses.Created(reqCtx, session)
}

// GetSession handles GET /v1/sessions/:session_id.
func (h *SessionHandler) GetSession(reqCtx *gin.Context) {
	session, err := h.sessions.GetSession(reqCtx.Request.Context(), reqCtx.Param("session_id"))
	if err != nil {
		responses.HandleError(reqCtx, err)
		return
	}
	responses.OK(reqCtx, session)
}

// SendMessage handles POST /v1/sessions/:session_id/messages.
func (h *SessionHandler) SendMessage(reqCtx *gin.Context) {
	var req requests.SendMessageRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, err.Error(), "d84b2e6f-9a13-4c7e-b5f0-1e6a8c3d9b27")
		return
	}

	result, err := h.orchestrator.SendMessage(reqCtx.Request.Context(), reqCtx.Param("session_id"), req.Content)
	if err != nil {
		responses.HandleError(reqCtx, err)
		return
	}
	responses.OK(reqCtx, result)
}

// ListMessages handles GET /v1/sessions/:session_id/messages.
func (h *SessionHandler) ListMessages(reqCtx *gin.Context) {
	messages, err := h.sessions.ListMessages(reqCtx.Request.Context(), reqCtx.Param("session_id"))
	if err != nil {
		responses.HandleError(reqCtx, err)
		return
	}
	responses.OK(reqCtx, responses.NewListResponse(messages))
}
