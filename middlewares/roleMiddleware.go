package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rms_backend/access"
	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/utils"
)

// RequireRole lets the request through when the authenticated user holds
// one of roles anywhere.
func RequireRole(acl *access.Service, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok || userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		for _, role := range roles {
			has, err := acl.HasRole(c.Request.Context(), userID, role, nil)
			if err != nil {
				config.LogError(nil, "middlewares", "RequireRole", role, userID, err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			if has {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
