package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListMyMemberships returns the caller's residences and unit occupancies.
func (s *Server) ListMyMemberships(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.memberships.ListForUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
