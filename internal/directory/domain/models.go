// Package domain contains persistence models for residences, buildings and units.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Residence is a managed property.
type Residence struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	Slug         string            `gorm:"type:varchar(191);not null;uniqueIndex:ux_residences_slug" json:"slug"`
	AddressLine1 string            `gorm:"type:text;column:address_line1" json:"address_line1"`
	AddressLine2 string            `gorm:"type:text;column:address_line2" json:"address_line2,omitempty"`
	City         string            `gorm:"type:text" json:"city"`
	PostalCode   string            `gorm:"type:text;column:postal_code" json:"postal_code"`
	CountryCode  string            `gorm:"type:varchar(2);column:country_code" json:"country_code"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Residence) TableName() string { return "residences" }

// Building is an optional subdivision of a residence.
type Building struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ResidenceID snowflake.ID `gorm:"not null;index" json:"residence_id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Building) TableName() string { return "buildings" }

// Unit is an individually claimable housing unit ("lot").
type Unit struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	ResidenceID       snowflake.ID  `gorm:"not null;index:ix_units_residence_order,priority:1" json:"residence_id"`
	BuildingID        *snowflake.ID `gorm:"index" json:"building_id,omitempty"`
	DoorLabel         string        `gorm:"type:varchar(64);not null;index:ix_units_residence_order,priority:3" json:"door_label"`
	Floor             int           `gorm:"not null;default:0;index:ix_units_residence_order,priority:2" json:"floor"`
	RoomCount         int           `gorm:"not null;default:0" json:"room_count"`
	PrimaryOccupantID *snowflake.ID `json:"primary_occupant_id,omitempty"`
	JoinCode          *string       `gorm:"type:varchar(64)" json:"-"`
	LastJoinedAt      *time.Time    `json:"last_joined_at,omitempty"`
	CreatedAt         time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Unit) TableName() string { return "units" }

// Vacant reports whether the unit has no primary occupant. It mirrors the
// primary_occupant_id IS NULL condition the ledger claims against.
func (u Unit) Vacant() bool {
	return u.PrimaryOccupantID == nil
}

// HasJoinCode reports whether dependents can currently join with a code.
func (u Unit) HasJoinCode() bool {
	return u.JoinCode != nil && *u.JoinCode != ""
}
