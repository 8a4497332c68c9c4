package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/refit/refit-api/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextTokenKey stores the raw bearer token so it can be revoked.
	ContextTokenKey = "token"
	// ContextTokenExpiryKey stores the token expiry used as the revocation TTL.
	ContextTokenExpiryKey = "token_expires_at"
	// InternalTokenHeader authenticates service-to-service calls.
	InternalTokenHeader = "X-Internal-Token"
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Abort(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Abort(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Abort(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			return
		}

		if utils.IsTokenRevoked(tokenString) {
			utils.Abort(ctx, http.StatusUnauthorized, 40104, "token revoked")
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Abort(ctx, http.StatusUnauthorized, 40105, "invalid token")
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Set(ContextTokenKey, tokenString)
		if claims.ExpiresAt != nil {
			ctx.Set(ContextTokenExpiryKey, claims.ExpiresAt.Time)
		}
		ctx.Next()
	}
}

// AdminRequired allows only usernames listed in admins. Must run after AuthRequired.
func AdminRequired(admins []string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username := ctx.GetString(ContextUsernameKey)
		if username == "" {
			utils.Abort(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			return
		}
		for _, name := range admins {
			if strings.EqualFold(strings.TrimSpace(name), username) {
				ctx.Next()
				return
			}
		}
		utils.Abort(ctx, http.StatusForbidden, 40301, "admin only")
	}
}

// InternalTokenRequired guards endpoints called by the account service.
// An empty configured token disables the endpoints entirely.
func InternalTokenRequired(token string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token == "" {
			utils.Abort(ctx, http.StatusForbidden, 40302, "internal endpoints disabled")
			return
		}
		given := ctx.GetHeader(InternalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			utils.Abort(ctx, http.StatusUnauthorized, 40106, "invalid internal token")
			return
		}
		ctx.Next()
	}
}
