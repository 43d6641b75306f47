package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidContinuation = errors.New("invalid_continuation")
	ErrInvalidIntent       = errors.New("invalid_intent")
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	ClaimUnit(ctx context.Context, req ClaimUnitRequest) (*Outcome, error)
	RedeemInvitation(ctx context.Context, req RedeemInvitationRequest) (*Outcome, error)

	IssueContinuation(ctx context.Context, req ContinuationRequest) (*Continuation, error)
	ResumeContinuation(ctx context.Context, req ResumeRequest) (*Outcome, error)
}

// AttemptLimiter throttles join-code guesses per identity and unit. Implementations
// fail open when their backend is unavailable.
type AttemptLimiter interface {
	AllowJoinAttempt(ctx context.Context, userID, unitID snowflake.ID) (bool, time.Duration)
}
