package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindResidenceByID(ctx context.Context, id snowflake.ID) (*Residence, error)
	FindResidencesByPrefix(ctx context.Context, prefix string, limit int) ([]Residence, error)
	FindBuildingByID(ctx context.Context, id snowflake.ID, residenceID *snowflake.ID) (*Building, error)
	FindBuildingsByPrefix(ctx context.Context, prefix string, residenceID *snowflake.ID, limit int) ([]Building, error)
	ListUnits(ctx context.Context, residenceID snowflake.ID, buildingID *snowflake.ID) ([]Unit, error)
	GetUnit(ctx context.Context, id snowflake.ID) (*Unit, error)

	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateResidence(ctx context.Context, residence Residence) error
	CreateBuilding(ctx context.Context, building Building) error
	CreateUnit(ctx context.Context, unit Unit) error
}
