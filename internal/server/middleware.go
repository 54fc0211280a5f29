package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/billbook/internal/actorcontext"
)

const HeaderActorID = "X-Actor-Id"

// ActorContext copies the caller identity header into the request context.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorID := c.GetHeader(HeaderActorID); actorID != "" {
			c.Request = c.Request.WithContext(actorcontext.WithActorID(c.Request.Context(), actorID))
		}
		c.Next()
	}
}
