package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/refit/refit-api/middleware"
	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

// errorMapping pairs a service error with its HTTP status and business code.
type errorMapping struct {
	err    error
	status int
	code   int
}

var serviceErrors = []errorMapping{
	{services.ErrInvalidDate, http.StatusBadRequest, 40001},
	{services.ErrInvalidSteps, http.StatusBadRequest, 40002},
	{services.ErrUnknownAction, http.StatusBadRequest, 40003},
	{services.ErrEmptyBatch, http.StatusBadRequest, 40004},
	{services.ErrFutureDate, http.StatusBadRequest, 40005},
	{services.ErrInvalidDateRange, http.StatusBadRequest, 40006},
	{services.ErrInvalidObjective, http.StatusBadRequest, 40020},
	{services.ErrUserNotFound, http.StatusNotFound, 40410},
	{services.ErrObjectiveNotFound, http.StatusNotFound, 40420},
	{services.ErrAssignmentNotFound, http.StatusNotFound, 40421},
	{services.ErrAlreadyCompleted, http.StatusConflict, 40920},
	{services.ErrAlreadyRedeemed, http.StatusConflict, 40921},
	{services.ErrRequirementNotMet, http.StatusUnprocessableEntity, 42220},
	{services.ErrNotCompleted, http.StatusUnprocessableEntity, 42221},
	{services.ErrObjectiveInactive, http.StatusUnprocessableEntity, 42222},
	{services.ErrNotManuallyCompletable, http.StatusUnprocessableEntity, 42223},
}

// respondServiceError maps known service errors to client responses; anything else is a 500.
func respondServiceError(ctx *gin.Context, err error, fallbackCode int, fallbackMsg string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			utils.Error(ctx, m.status, m.code, err.Error())
			return
		}
	}
	utils.Logger.Error(fallbackMsg,
		zap.String("path", ctx.FullPath()),
		zap.String("request_id", ctx.GetString(utils.ContextRequestIDKey)),
		zap.Error(err),
	)
	utils.Error(ctx, http.StatusInternalServerError, fallbackCode, fallbackMsg)
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, v > 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
