package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	directorydomain "github.com/smallbiznis/homeaccess/internal/directory/domain"
	"gorm.io/gorm"
)

var (
	ErrUnitNotFound       = errors.New("unit_not_found")
	ErrInvitationNotFound = errors.New("invitation_not_found")
	ErrInvalidCode        = errors.New("invalid_code_format")
	ErrDuplicateCode      = errors.New("duplicate_code")
	ErrInvalidMaxUses     = errors.New("invalid_max_uses")
	ErrInvalidExpiry      = errors.New("invalid_expiry")
	ErrInvalidUser        = errors.New("invalid_user")
)

// Service validates and consumes both code families.
type Service interface {
	// CheckUnitJoinCode compares a supplied code to the unit's stored join code, case-insensitively.
	CheckUnitJoinCode(unit directorydomain.Unit, supplied string) bool
	RotateUnitJoinCode(ctx context.Context, unitID snowflake.ID) (string, error)
	// ConsumeUnitJoinCode re-validates the code inside tx against the value stored at commit time.
	ConsumeUnitJoinCode(ctx context.Context, tx *gorm.DB, unitID snowflake.ID, supplied string) (bool, error)

	LookupInvitation(ctx context.Context, code string) (*Invitation, Rejection, error)
	// RedeemInvitation spends one use inside tx. A rejection means nothing was written.
	RedeemInvitation(ctx context.Context, tx *gorm.DB, invitationID snowflake.ID) (Rejection, error)

	CreateInvitation(ctx context.Context, userID, residenceID snowflake.ID, req CreateInvitationRequest) (*Invitation, error)
	GetInvitation(ctx context.Context, invitationID snowflake.ID) (*Invitation, error)
	DeactivateInvitation(ctx context.Context, invitationID snowflake.ID) (*Invitation, error)
	ListInvitations(ctx context.Context, residenceID snowflake.ID) ([]Invitation, error)
}

type CreateInvitationRequest struct {
	// Code is optional; a random one is generated when empty.
	Code      string
	ExpiresAt *time.Time
	MaxUses   *int
}

// CodeGenerator produces random opaque codes.
type CodeGenerator interface {
	Generate(alphabet string, length int) (string, error)
}
