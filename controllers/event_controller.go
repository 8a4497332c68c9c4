package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

// EventController receives account events that complete qualitative objectives.
type EventController struct {
	objectives *services.ObjectiveService
}

// NewEventController creates a new EventController instance.
func NewEventController(objectives *services.ObjectiveService) *EventController {
	return &EventController{objectives: objectives}
}

type eventRequest struct {
	UserID      uint   `json:"user_id" binding:"required"`
	Requirement string `json:"requirement" binding:"required"`
}

// Publish completes the matching qualitative objective, if the user has one today.
func (e *EventController) Publish(ctx *gin.Context) {
	var req eventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "user_id and requirement are required")
		return
	}

	res, err := e.objectives.CompleteQualitative(ctx.Request.Context(), req.UserID, strings.TrimSpace(req.Requirement))
	if err != nil {
		respondServiceError(ctx, err, 50030, "failed to process event")
		return
	}
	if res == nil {
		utils.Success(ctx, gin.H{"completed": false})
		return
	}
	utils.Success(ctx, gin.H{
		"completed":          true,
		"assignment":         toAssignmentResponse(res.Assignment),
		"streak":             res.Streak,
		"streak_incremented": res.StreakIncremented,
	})
}
