package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/refit/refit-api/models"
	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

// ObjectiveController handles daily objectives and the admin catalog.
type ObjectiveController struct {
	objectives *services.ObjectiveService
	catalog    *services.CatalogService
}

// NewObjectiveController creates a new controller instance.
func NewObjectiveController(objectives *services.ObjectiveService, catalog *services.CatalogService) *ObjectiveController {
	return &ObjectiveController{objectives: objectives, catalog: catalog}
}

type objectiveRequest struct {
	ObjectiveID uint `json:"objective_id" binding:"required"`
}

// assignmentResponse flattens an assignment and its definition for clients.
type assignmentResponse struct {
	ID             uint                   `json:"id"`
	ObjectiveID    uint                   `json:"objective_id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	Kind           models.ObjectiveKind   `json:"kind"`
	Requirement    string                 `json:"requirement"`
	RequiredValue  int64                  `json:"required_value"`
	Prize          int64                  `json:"prize"`
	State          models.AssignmentState `json:"state"`
	AssignmentDate string                 `json:"assignment_date"`
	CompletedAt    *time.Time             `json:"completed_at"`
	RedeemedAt     *time.Time             `json:"redeemed_at"`
}

func toAssignmentResponse(a models.ObjectiveAssignment) assignmentResponse {
	return assignmentResponse{
		ID:             a.ID,
		ObjectiveID:    a.ObjectiveID,
		Name:           a.Objective.Name,
		Description:    a.Objective.Description,
		Kind:           a.Objective.Kind,
		Requirement:    a.Objective.Requirement,
		RequiredValue:  a.Objective.RequiredValue,
		Prize:          a.Objective.Prize,
		State:          a.State(),
		AssignmentDate: a.AssignmentDate,
		CompletedAt:    a.CompletedAt,
		RedeemedAt:     a.RedeemedAt,
	}
}

// Active lists today's objectives, assigning them on the first call of the day.
func (o *ObjectiveController) Active(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	list, err := o.objectives.EnsureToday(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err, 50020, "failed to load objectives")
		return
	}

	items := make([]assignmentResponse, 0, len(list))
	for _, a := range list {
		items = append(items, toAssignmentResponse(a))
	}
	utils.Success(ctx, gin.H{"items": items})
}

// Check completes a quantitative objective when its requirement is met.
func (o *ObjectiveController) Check(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req objectiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "objective_id is required")
		return
	}

	res, err := o.objectives.Check(ctx.Request.Context(), userID, req.ObjectiveID)
	if err != nil {
		respondServiceError(ctx, err, 50021, "failed to complete objective")
		return
	}
	utils.Success(ctx, gin.H{
		"assignment":         toAssignmentResponse(res.Assignment),
		"streak":             res.Streak,
		"streak_incremented": res.StreakIncremented,
	})
}

// Redeem credits the prize of a completed objective.
func (o *ObjectiveController) Redeem(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req objectiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "objective_id is required")
		return
	}

	res, err := o.objectives.Redeem(ctx.Request.Context(), userID, req.ObjectiveID)
	if err != nil {
		respondServiceError(ctx, err, 50022, "failed to redeem objective")
		return
	}
	utils.Success(ctx, gin.H{
		"assignment":    toAssignmentResponse(res.Assignment),
		"coins_awarded": res.CoinsAwarded,
		"coins":         res.Coins,
	})
}

// ListDefinitions returns the catalog. ?active=true limits it to active definitions.
func (o *ObjectiveController) ListDefinitions(ctx *gin.Context) {
	activeOnly, _ := strconv.ParseBool(ctx.DefaultQuery("active", "false"))
	defs, err := o.catalog.List(ctx.Request.Context(), activeOnly)
	if err != nil {
		respondServiceError(ctx, err, 50023, "failed to list objectives")
		return
	}
	utils.Success(ctx, gin.H{"items": defs})
}

// GetDefinition returns one catalog entry, active or not.
func (o *ObjectiveController) GetDefinition(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid objective id")
		return
	}
	def, err := o.catalog.Get(ctx.Request.Context(), id)
	if err != nil {
		respondServiceError(ctx, err, 50026, "failed to load objective")
		return
	}
	utils.Success(ctx, def)
}

// CreateDefinition adds a catalog entry.
func (o *ObjectiveController) CreateDefinition(ctx *gin.Context) {
	var in services.ObjectiveInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40000, "invalid payload")
		return
	}
	def, err := o.catalog.Create(ctx.Request.Context(), in)
	if err != nil {
		respondServiceError(ctx, err, 50024, "failed to create objective")
		return
	}
	utils.Created(ctx, def)
}

// UpdateDefinition patches a catalog entry; setting active=false retires it.
func (o *ObjectiveController) UpdateDefinition(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid objective id")
		return
	}
	var in services.ObjectiveInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40000, "invalid payload")
		return
	}
	def, err := o.catalog.Update(ctx.Request.Context(), id, in)
	if err != nil {
		respondServiceError(ctx, err, 50025, "failed to update objective")
		return
	}
	utils.Success(ctx, def)
}
