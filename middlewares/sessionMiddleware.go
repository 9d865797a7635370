package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/rms_backend/appctx"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/sirupsen/logrus"
)

const sessionMessagesHeader = "X-Session-Messages"

// SessionMiddleware gives every request a correlation id and a message
// session. Messages collected while serving the request are returned in the
// X-Session-Messages header when the handler did not write them itself.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		ctx, session := appctx.WithSession(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header("x-correlation-id", cid)

		c.Next()

		if msgs := session.Messages(); len(msgs) > 0 && !c.Writer.Written() {
			for _, m := range msgs {
				c.Writer.Header().Add(sessionMessagesHeader, m)
			}
		}
	}
}

// ErrorLogger logs the errors attached to the gin context.
func ErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{"field": c.FullPath(), "correlation_id": cid}).Error(c.Errors.String())
		}
	}
}
