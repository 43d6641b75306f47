// Package domain describes claim attempts and their terminal outcomes.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	accesscodedomain "github.com/smallbiznis/homeaccess/internal/accesscode/domain"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
)

type Flow string

const (
	FlowUnit       Flow = "unit"
	FlowInvitation Flow = "invitation"
)

// Status is the terminal state of a claim attempt. Only StatusRejected is an error
// from the caller's point of view.
type Status string

const (
	StatusGranted       Status = "granted"
	StatusAlreadyMember Status = "already_member"
	StatusCodeRequired  Status = "code_required"
	StatusRejected      Status = "rejected"
)

type Reason string

const (
	ReasonNone                Reason = ""
	ReasonNotFound            Reason = "not_found"
	ReasonUnitNoLongerVacant  Reason = "unit_no_longer_vacant"
	ReasonInvalidCode         Reason = "invalid_code"
	ReasonInvitationNotFound  Reason = Reason(accesscodedomain.RejectNotFound)
	ReasonInvitationInactive  Reason = Reason(accesscodedomain.RejectInactive)
	ReasonInvitationExpired   Reason = Reason(accesscodedomain.RejectExpired)
	ReasonInvitationExhausted Reason = Reason(accesscodedomain.RejectExhausted)
	ReasonTooManyAttempts     Reason = "too_many_attempts"
)

// Outcome is the result of one claim attempt.
type Outcome struct {
	Flow        Flow
	Status      Status
	Reason      Reason
	ResidenceID snowflake.ID
	UnitID      *snowflake.ID
	Role        string
	Kind        membershipdomain.OccupancyKind
	// RetryAfter is set when the attempt was refused by the attempt limiter.
	RetryAfter time.Duration
}

func (o Outcome) Success() bool {
	return o.Status == StatusGranted || o.Status == StatusAlreadyMember
}

// Granted reports a committed grant.
func Granted(flow Flow, residenceID snowflake.ID, unitID *snowflake.ID, kind membershipdomain.OccupancyKind) *Outcome {
	return &Outcome{
		Flow:        flow,
		Status:      StatusGranted,
		ResidenceID: residenceID,
		UnitID:      unitID,
		Role:        membershipdomain.RoleResident,
		Kind:        kind,
	}
}

// AlreadyMember reports that the identity already belongs to the residence.
func AlreadyMember(flow Flow, residenceID snowflake.ID) *Outcome {
	return &Outcome{Flow: flow, Status: StatusAlreadyMember, ResidenceID: residenceID}
}

// CodeRequired asks the caller for the unit's join code.
func CodeRequired(residenceID, unitID snowflake.ID) *Outcome {
	return &Outcome{Flow: FlowUnit, Status: StatusCodeRequired, ResidenceID: residenceID, UnitID: &unitID}
}

func Rejected(flow Flow, reason Reason) *Outcome {
	return &Outcome{Flow: flow, Status: StatusRejected, Reason: reason}
}

// ClaimUnitRequest selects a unit, with the join code when the unit is occupied.
type ClaimUnitRequest struct {
	UserID      snowflake.ID
	ResidenceID snowflake.ID
	UnitID      snowflake.ID
	Code        string
}

type RedeemInvitationRequest struct {
	UserID snowflake.ID
	Code   string
}

// ContinuationRequest is the claim intent of a visitor who has not signed in yet.
// Exactly one of UnitID or InvitationCode is set.
type ContinuationRequest struct {
	ResidenceID    snowflake.ID
	UnitID         *snowflake.ID
	InvitationCode string
}

type Continuation struct {
	Token     string
	Flow      Flow
	ExpiresAt time.Time
}

type ResumeRequest struct {
	UserID snowflake.ID
	Token  string
	// Code is the join code for an occupied unit; it is never carried in the token.
	Code string
}
