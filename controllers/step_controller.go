package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

// StepController exposes the step ledger.
type StepController struct {
	steps *services.StepService
}

// NewStepController creates a new StepController instance.
func NewStepController(steps *services.StepService) *StepController {
	return &StepController{steps: steps}
}

type singleStepRequest struct {
	Steps *int64 `json:"steps"`
}

// GetSteps returns today's steps, lifetime and monthly totals and the coin balance.
func (s *StepController) GetSteps(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	summary, err := s.steps.Summary(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50010, "failed to load steps")
		return
	}
	utils.Success(ctx, summary)
}

// UpdateSteps accepts either {"steps": n} for today or a batch array of add/replace entries.
func (s *StepController) UpdateSteps(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	// The body is either an object or an array, so it is decoded by hand instead of ShouldBindJSON
	raw, err := ctx.GetRawData()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40000, "invalid payload")
		return
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40000, "invalid payload")
		return
	}

	var summary *services.StepSummary
	switch raw[0] {
	case '[':
		var entries []services.StepEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			respondDecodeError(ctx, err)
			return
		}
		summary, err = s.steps.ApplyBatch(ctx.Request.Context(), userID, entries)
	case '{':
		var req singleStepRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			respondDecodeError(ctx, err)
			return
		}
		if req.Steps == nil {
			utils.Error(ctx, http.StatusBadRequest, 40002, services.ErrInvalidSteps.Error())
			return
		}
		if *req.Steps < 0 {
			respondServiceError(ctx, services.ErrInvalidSteps, 50011, "failed to update steps")
			return
		}
		summary, err = s.steps.AddToday(ctx.Request.Context(), userID, *req.Steps)
	default:
		utils.Error(ctx, http.StatusBadRequest, 40000, "invalid payload")
		return
	}
	if err != nil {
		respondServiceError(ctx, err, 50011, "failed to update steps")
		return
	}
	utils.Success(ctx, summary)
}

// History returns per-day records between startDate and endDate (both default to today).
func (s *StepController) History(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	records, err := s.steps.History(ctx.Request.Context(), userID, ctx.Query("startDate"), ctx.Query("endDate"))
	if err != nil {
		respondServiceError(ctx, err, 50012, "failed to load history")
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, r := range records {
		items = append(items, gin.H{"date": r.Date, "steps": r.Steps})
	}
	utils.Success(ctx, gin.H{"items": items})
}

// respondDecodeError reports fractional or non-numeric step values as invalid steps.
func respondDecodeError(ctx *gin.Context, err error) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && strings.HasSuffix(typeErr.Field, "steps") {
		utils.Error(ctx, http.StatusBadRequest, 40002, services.ErrInvalidSteps.Error())
		return
	}
	utils.Error(ctx, http.StatusBadRequest, 40000, "invalid payload")
}
