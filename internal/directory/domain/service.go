package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// MinPrefixLength is the shortest reference accepted for prefix resolution.
const MinPrefixLength = 6

var (
	ErrNotFound           = errors.New("not_found")
	ErrAmbiguousReference = errors.New("ambiguous_reference")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidDoorLabel   = errors.New("invalid_door_label")
	ErrInvalidCountry     = errors.New("invalid_country_code")
	ErrBuildingMismatch   = errors.New("building_not_in_residence")
)

// Service resolves residences, buildings and units, and lets managers create them.
type Service interface {
	ResolveResidence(ctx context.Context, ref string) (*Residence, error)
	ResolveBuilding(ctx context.Context, ref string, residenceID *snowflake.ID) (*Building, error)
	ListUnits(ctx context.Context, residenceID snowflake.ID, buildingID *snowflake.ID) ([]Unit, error)
	GetUnit(ctx context.Context, unitID snowflake.ID) (*Unit, error)

	CreateResidence(ctx context.Context, userID snowflake.ID, req CreateResidenceRequest) (*Residence, error)
	CreateBuilding(ctx context.Context, residenceID snowflake.ID, req CreateBuildingRequest) (*Building, error)
	CreateUnit(ctx context.Context, residenceID snowflake.ID, req CreateUnitRequest) (*Unit, error)
}

type CreateResidenceRequest struct {
	Name         string
	AddressLine1 string
	AddressLine2 string
	City         string
	PostalCode   string
	CountryCode  string
	Metadata     map[string]any
}

type CreateBuildingRequest struct {
	Name string
}

type CreateUnitRequest struct {
	BuildingID *snowflake.ID
	DoorLabel  string
	Floor      int
	RoomCount  int
}
