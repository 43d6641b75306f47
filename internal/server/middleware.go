package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/homeaccess/internal/identity"
	obscontext "github.com/smallbiznis/homeaccess/internal/observability/context"
)

const contextUserIDKey = "user_id"

// AuthRequired verifies the bearer token and stores the caller's user id.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.verifier == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		token, err := identity.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		id, err := s.verifier.Verify(token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, id.UserID)
		ctx := obscontext.WithActor(c.Request.Context(), "user", id.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(snowflake.ID)
	if !ok || userID == 0 {
		return 0, false
	}
	return userID, true
}
