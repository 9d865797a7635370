package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rms_backend/utils"
)

// AuthMiddleware reads a bearer token and puts the caller into the request
// context. Requests without a token pass through anonymous.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, err := utils.JwtValidate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		if claims.OrganisationId != 0 {
			ctx = utils.SetOrganisationIdInContext(ctx, claims.OrganisationId)
		}
		if claims.Language != "" {
			ctx = utils.SetLanguageInContext(ctx, claims.Language)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
