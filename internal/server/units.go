package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RotateJoinCode replaces the unit's join code and returns the new one to the manager.
func (s *Server) RotateJoinCode(c *gin.Context) {
	unit, ok := unitFromContext(c)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	code, err := s.codes.RotateUnitJoinCode(c.Request.Context(), unit.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"unit_id":   unit.ID.String(),
		"join_code": code,
	}})
}
