package responses

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"jan-server/services/dispatch-api/internal/domain/outcome"
	"jan-server/services/dispatch-api/internal/infrastructure/logger"
	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

// ListResponse wraps collections.
type ListResponse[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

func NewListResponse[T any](data []T) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Object: "list", Data: data}
}

// HandleError renders domain and dispatch errors. Rate-limited outcomes also carry a
// Retry-After header derived from the key's reset time.
func HandleError(reqCtx *gin.Context, err error) {
	ctx := reqCtx.Request.Context()
	_ = reqCtx.Error(err)

	if oe, ok := outcome.As(err); ok && oe.ResetAt != nil {
		reqCtx.Header("Retry-After", retryAfter(*oe.ResetAt, time.Now()))
	}
	platformerrors.WriteHTTPError(reqCtx, outcome.ToPlatformError(ctx, err), logger.GetLogger())
}

// HandleNewError creates a new typed error at the route layer and handles it
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	err := platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerHandler, errorType, message, nil, uuid)
	platformerrors.WriteHTTPError(reqCtx, err, logger.GetLogger())
}

// retryAfter renders whole seconds until resetAt, never negative.
func retryAfter(resetAt, now time.Time) string {
	seconds := math.Ceil(resetAt.Sub(now).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	return strconv.Itoa(int(seconds))
}

func OK(reqCtx *gin.Context, body any) {
	reqCtx.JSON(http.StatusOK, body)
}

func Created(reqCtx *gin.Context, body any) {
	reqCtx.JSON(http.StatusCreated, body)
}
