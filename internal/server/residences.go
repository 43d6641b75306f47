package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	directorydomain "github.com/smallbiznis/homeaccess/internal/directory/domain"
)

type unitResponse struct {
	ID          string  `json:"id"`
	ResidenceID string  `json:"residence_id"`
	BuildingID  *string `json:"building_id,omitempty"`
	DoorLabel   string  `json:"door_label"`
	Floor       int     `json:"floor"`
	RoomCount   int     `json:"room_count"`
	Vacant      bool    `json:"vacant"`
}

func newUnitResponse(unit directorydomain.Unit) unitResponse {
	resp := unitResponse{
		ID:          unit.ID.String(),
		ResidenceID: unit.ResidenceID.String(),
		DoorLabel:   unit.DoorLabel,
		Floor:       unit.Floor,
		RoomCount:   unit.RoomCount,
		Vacant:      unit.Vacant(),
	}
	if unit.BuildingID != nil {
		buildingID := unit.BuildingID.String()
		resp.BuildingID = &buildingID
	}
	return resp
}

func (s *Server) GetResidence(c *gin.Context) {
	residence, err := s.directory.ResolveResidence(c.Request.Context(), c.Param("ref"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": residence})
}

// ListUnits lists the residence's units in presentation order. Occupant identities
// and join codes are never exposed; only vacancy is.
func (s *Server) ListUnits(c *gin.Context) {
	ctx := c.Request.Context()
	residence, err := s.directory.ResolveResidence(ctx, c.Param("ref"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var buildingID *snowflake.ID
	if ref := c.Query("building"); ref != "" {
		building, err := s.directory.ResolveBuilding(ctx, ref, &residence.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		buildingID = &building.ID
	}

	units, err := s.directory.ListUnits(ctx, residence.ID, buildingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]unitResponse, 0, len(units))
	for _, unit := range units {
		resp = append(resp, newUnitResponse(unit))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
