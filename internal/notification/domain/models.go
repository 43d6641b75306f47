// Package domain contains the access event outbox and its delivery contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const EventAccessGranted = "access.granted"

// AccessEvent is an outbox row awaiting delivery to the notification service.
type AccessEvent struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	ResidenceID snowflake.ID   `gorm:"not null" json:"residence_id"`
	UserID      snowflake.ID   `gorm:"not null" json:"user_id"`
	EventType   string         `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`
	Published   bool           `gorm:"not null;default:false;index:ix_access_events_pending,priority:1" json:"published"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastError   string         `gorm:"type:text;not null;default:''" json:"last_error,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index:ix_access_events_pending,priority:2" json:"created_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
}

// TableName sets the database table name.
func (AccessEvent) TableName() string { return "access_events" }

// AccessGranted describes a successful claim.
type AccessGranted struct {
	ResidenceID snowflake.ID
	UserID      snowflake.ID
	UnitID      *snowflake.ID
	Flow        string
	Role        string
	Kind        string
	GrantedAt   time.Time
}
