package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/refit/refit-api/services"
	"github.com/refit/refit-api/utils"
)

// AuditController exposes counter reconciliation to admins.
type AuditController struct {
	audit *services.AuditService
}

// NewAuditController creates a new AuditController instance.
func NewAuditController(audit *services.AuditService) *AuditController {
	return &AuditController{audit: audit}
}

type auditRequest struct {
	UserID uint `json:"user_id"`
	Fix    bool `json:"fix"`
}

// Run audits one user when user_id is given, otherwise every user.
func (a *AuditController) Run(ctx *gin.Context) {
	var req auditRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40000, "invalid payload")
			return
		}
	}

	if req.UserID != 0 {
		report, err := a.audit.Reconcile(ctx.Request.Context(), req.UserID, req.Fix)
		if err != nil {
			respondServiceError(ctx, err, 50040, "audit failed")
			return
		}
		utils.Success(ctx, gin.H{"reports": []services.AuditReport{*report}})
		return
	}

	reports, err := a.audit.ReconcileAll(ctx.Request.Context(), req.Fix)
	if err != nil {
		respondServiceError(ctx, err, 50040, "audit failed")
		return
	}
	utils.Success(ctx, gin.H{"reports": reports})
}
