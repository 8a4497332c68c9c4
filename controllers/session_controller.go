package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/refit/refit-api/middleware"
	"github.com/refit/refit-api/utils"
)

// SessionController lets a client drop its bearer token before expiry.
type SessionController struct{}

func NewSessionController() *SessionController { return &SessionController{} }

// Revoke blacklists the token used for this request until it expires.
func (s *SessionController) Revoke(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	expiresAt := time.Now().Add(24 * time.Hour)
	if v, ok := ctx.Get(middleware.ContextTokenExpiryKey); ok {
		if t, ok := v.(time.Time); ok {
			expiresAt = t
		}
	}
	utils.RevokeToken(token, expiresAt)
	utils.Success(ctx, gin.H{"revoked": true})
}
