// Package domain contains the membership ledger: who belongs to which residence and who occupies which unit.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleResident = "resident"
	RoleManager  = "manager"
)

type OccupancyKind string

const (
	KindPrimary  OccupancyKind = "primary"
	KindOccupant OccupancyKind = "occupant"
)

// Membership is an (identity, residence, role) triple. One row per (residence, user).
type Membership struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ResidenceID snowflake.ID `gorm:"not null;uniqueIndex:ux_residence_members_user,priority:1" json:"residence_id"`
	UserID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_residence_members_user,priority:2" json:"user_id"`
	Role        string       `gorm:"type:varchar(32);not null" json:"role"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "residence_members" }

// Occupancy binds an identity to a unit.
type Occupancy struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_unit_occupancies_active,priority:2" json:"user_id"`
	UnitID      snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_unit_occupancies_active,priority:1" json:"unit_id"`
	ResidenceID snowflake.ID  `gorm:"not null;index" json:"residence_id"`
	Kind        OccupancyKind `gorm:"type:varchar(16);not null" json:"kind"`
	Active      bool          `gorm:"not null;default:true" json:"active"`
	StartedAt   time.Time     `gorm:"not null" json:"started_at"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
}

// TableName sets the database table name.
func (Occupancy) TableName() string { return "unit_occupancies" }

// MembershipView is a membership joined with its residence, for the caller's own listing.
type MembershipView struct {
	ResidenceID   snowflake.ID
	ResidenceName string
	ResidenceSlug string
	Role          string
	CreatedAt     time.Time
}

// OccupancyView is an active occupancy joined with its unit label.
type OccupancyView struct {
	UnitID      snowflake.ID
	ResidenceID snowflake.ID
	DoorLabel   string
	Floor       int
	Kind        OccupancyKind
	StartedAt   time.Time
}
