package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	directorydomain "github.com/smallbiznis/homeaccess/internal/directory/domain"
)

type createResidenceRequest struct {
	Name         string         `json:"name"`
	AddressLine1 string         `json:"address_line1"`
	AddressLine2 string         `json:"address_line2"`
	City         string         `json:"city"`
	PostalCode   string         `json:"postal_code"`
	CountryCode  string         `json:"country_code"`
	Metadata     map[string]any `json:"metadata"`
}

type createBuildingRequest struct {
	Name string `json:"name"`
}

type createUnitRequest struct {
	BuildingID string `json:"building_id"`
	DoorLabel  string `json:"door_label"`
	Floor      int    `json:"floor"`
	RoomCount  int    `json:"room_count"`
}

// CreateResidence registers a residence; the caller becomes its manager.
func (s *Server) CreateResidence(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createResidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	residence, err := s.directory.CreateResidence(c.Request.Context(), userID, directorydomain.CreateResidenceRequest{
		Name:         strings.TrimSpace(req.Name),
		AddressLine1: strings.TrimSpace(req.AddressLine1),
		AddressLine2: strings.TrimSpace(req.AddressLine2),
		City:         strings.TrimSpace(req.City),
		PostalCode:   strings.TrimSpace(req.PostalCode),
		CountryCode:  strings.TrimSpace(req.CountryCode),
		Metadata:     req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": residence})
}

func (s *Server) CreateBuilding(c *gin.Context) {
	residence, ok := residenceFromContext(c)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req createBuildingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	building, err := s.directory.CreateBuilding(c.Request.Context(), residence.ID, directorydomain.CreateBuildingRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": building})
}

func (s *Server) CreateUnit(c *gin.Context) {
	residence, ok := residenceFromContext(c)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req createUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	buildingID, err := parseOptionalSnowflakeID(req.BuildingID)
	if err != nil {
		AbortWithError(c, newValidationError("building_id", "invalid_building_id", "invalid building_id"))
		return
	}

	unit, err := s.directory.CreateUnit(c.Request.Context(), residence.ID, directorydomain.CreateUnitRequest{
		BuildingID: buildingID,
		DoorLabel:  strings.TrimSpace(req.DoorLabel),
		Floor:      req.Floor,
		RoomCount:  req.RoomCount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": newUnitResponse(*unit)})
}
