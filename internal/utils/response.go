package utils

import (
	"errors"
	"net/http"

	"github.com/flowra-dev/flowra/internal/logging"
	"github.com/flowra-dev/flowra/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func RespondOK(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, gin.H{"success": true, "data": data})
}

func RespondError(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, gin.H{"error": message})
}

// RespondErr maps err onto the error envelope. Unexpected errors are logged
// and surface as a generic 500.
func RespondErr(ctx *gin.Context, err error) {
	var apiErr *types.APIError

	switch {
	case errors.As(err, &apiErr):
		RespondError(ctx, apiErr.Status, apiErr.Message)
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, types.ErrNotFound):
		RespondError(ctx, http.StatusNotFound, "Not found")
	case errors.Is(err, types.ErrNotTeamMember):
		RespondError(ctx, http.StatusForbidden, "You are not a member of this team")
	case errors.Is(err, types.ErrInsufficientRole):
		RespondError(ctx, http.StatusForbidden, "Insufficient permissions")
	case errors.Is(err, types.ErrInvalidInput):
		RespondError(ctx, http.StatusBadRequest, "Invalid request")
	case errors.Is(err, types.ErrAlreadyRunning):
		RespondError(ctx, http.StatusConflict, "Scheduler is already running")
	default:
		logging.L().Error("request failed",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.String(logging.RequestIDKey, ctx.GetString(logging.RequestIDKey)),
			zap.Error(err),
		)
		RespondError(ctx, http.StatusInternalServerError, "Internal server error")
	}
}

// BindJSON binds and validates the body, answering 400 on failure.
func BindJSON(ctx *gin.Context, body any) bool {
	if err := ctx.ShouldBindJSON(body); err != nil {
		logging.L().Debug("invalid request body", zap.String("path", ctx.FullPath()), zap.Error(err))
		RespondError(ctx, http.StatusBadRequest, "Invalid request")
		return false
	}
	return true
}
