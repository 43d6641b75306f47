// Package domain contains unit join codes and residence invitation codes.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Invitation is a residence-scoped code with an expiry and an optional use budget.
// Exhausted or expired rows are kept for audit.
type Invitation struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ResidenceID snowflake.ID `gorm:"not null;index" json:"residence_id"`
	Code        string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_invitation_codes_code" json:"code"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	MaxUses     *int         `json:"max_uses,omitempty"`
	Uses        int          `gorm:"not null;default:0" json:"uses"`
	CreatedBy   snowflake.ID `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitation_codes" }

// Rejection is why a code cannot be used. The zero value means usable.
type Rejection string

const (
	RejectNone      Rejection = ""
	RejectNotFound  Rejection = "invitation_not_found"
	RejectInactive  Rejection = "invitation_inactive"
	RejectExpired   Rejection = "invitation_expired"
	RejectExhausted Rejection = "invitation_exhausted"
)

// NormalizeCode folds user input to the stored representation.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate classifies an invitation at the given instant. Order matters: an inactive
// code reports inactive even when it is also expired.
func Evaluate(inv *Invitation, now time.Time) Rejection {
	if inv == nil {
		return RejectNotFound
	}
	if !inv.Active {
		return RejectInactive
	}
	if inv.ExpiresAt != nil && now.After(*inv.ExpiresAt) {
		return RejectExpired
	}
	if inv.MaxUses != nil && inv.Uses >= *inv.MaxUses {
		return RejectExhausted
	}
	return RejectNone
}

// Remaining returns the uses left, or nil when the invitation is unbounded.
func (i Invitation) Remaining() *int {
	if i.MaxUses == nil {
		return nil
	}
	left := *i.MaxUses - i.Uses
	if left < 0 {
		left = 0
	}
	return &left
}
