package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"petshop/models"
)

// RequireRole aborts with 403 unless the caller has role. It expects
// CheckLoginMiddleware to run first.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if models.Role(c.GetString(RoleKey)) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "Forbidden",
			})
			return
		}
		c.Next()
	}
}

func CheckAdminPermissionMiddleware() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}
