package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrDuplicateMembership = errors.New("duplicate_membership")
	ErrDuplicateOccupancy  = errors.New("duplicate_occupancy")
	ErrInvalidUser         = errors.New("invalid_user")
)

// Service is the read side of the ledger used by the caller's membership view.
type Service interface {
	ListForUser(ctx context.Context, userID snowflake.ID) (*UserMemberships, error)
	RoleFor(ctx context.Context, residenceID, userID snowflake.ID) (string, error)
}

type UserMemberships struct {
	Memberships []MembershipResponse `json:"memberships"`
	Occupancies []OccupancyResponse  `json:"occupancies"`
}

type MembershipResponse struct {
	ResidenceID   string    `json:"residence_id"`
	ResidenceName string    `json:"residence_name"`
	ResidenceSlug string    `json:"residence_slug"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
}

type OccupancyResponse struct {
	UnitID      string    `json:"unit_id"`
	ResidenceID string    `json:"residence_id"`
	DoorLabel   string    `json:"door_label"`
	Floor       int       `json:"floor"`
	Kind        string    `json:"kind"`
	StartedAt   time.Time `json:"started_at"`
}
