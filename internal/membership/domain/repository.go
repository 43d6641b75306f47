package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository exposes the ledger primitives. Every method is safe to compose inside
// a caller-owned transaction via WithTx.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	HasMembership(ctx context.Context, userID, residenceID snowflake.ID) (bool, error)
	RoleFor(ctx context.Context, residenceID, userID snowflake.ID) (string, error)
	RecordMembership(ctx context.Context, membership Membership) error
	RecordOccupancy(ctx context.Context, occupancy Occupancy) error
	// SetPrimaryOccupant sets the unit's primary occupant only if it is currently empty.
	SetPrimaryOccupant(ctx context.Context, unitID, userID snowflake.ID, at time.Time) (bool, error)

	ListMemberships(ctx context.Context, userID snowflake.ID) ([]MembershipView, error)
	ListOccupancies(ctx context.Context, userID snowflake.ID) ([]OccupancyView, error)
}
