package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindInvitationByCode(ctx context.Context, code string) (*Invitation, error)
	FindInvitationByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	ListInvitations(ctx context.Context, residenceID snowflake.ID) ([]Invitation, error)
	CreateInvitation(ctx context.Context, invitation Invitation) error
	DeactivateInvitation(ctx context.Context, id snowflake.ID, at time.Time) (bool, error)
	// IncrementInvitationUse adds one use only while the invitation is active,
	// unexpired at the given instant, and under its budget.
	IncrementInvitationUse(ctx context.Context, id snowflake.ID, at time.Time) (bool, error)

	SetUnitJoinCode(ctx context.Context, unitID snowflake.ID, code string, at time.Time) (bool, error)
	// MatchUnitJoinCode touches the unit only if it is occupied and its stored code
	// equals the given one at the time of the write.
	MatchUnitJoinCode(ctx context.Context, unitID snowflake.ID, code string, at time.Time) (bool, error)
}
