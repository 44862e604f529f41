package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"petshop/jwt"
	"petshop/store"
)

const (
	UserIDKey = "UserID"
	RoleKey   = "Role"
	TokenKey  = "Token"
)

// AuthMiddleware resolves the caller from the bearer token when one is sent.
// It never rejects a request; routes that need a user add CheckLoginMiddleware.
func AuthMiddleware(signer *jwt.Signer, identity *store.IdentityStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			c.Next()
			return
		}

		userID, role, err := signer.Verify(token)
		if err != nil {
			zap.S().Debugw("reject bearer token", "error", err)
			c.Next()
			return
		}

		active, err := identity.TokenActive(c.Request.Context(), token)
		if err != nil {
			zap.S().Errorw("check login token", "error", err)
			c.Next()
			return
		}
		if !active {
			c.Next()
			return
		}

		c.Set(TokenKey, token)
		c.Set(UserIDKey, userID)
		c.Set(RoleKey, role)
		c.Next()
	}
}

// CurrentUser returns the authenticated user id, or 0.
func CurrentUser(c *gin.Context) uint {
	return c.GetUint(UserIDKey)
}
