package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidActor     = errors.New("invalid_actor")
	ErrInvalidResidence = errors.New("invalid_residence")
	ErrInvalidObject    = errors.New("invalid_object")
	ErrInvalidAction    = errors.New("invalid_action")
	ErrForbidden        = errors.New("forbidden")
)

// Service decides whether a user may perform a management action inside a residence.
type Service interface {
	Authorize(ctx context.Context, userID, residenceID snowflake.ID, object string, action string) error
	// AuthorizePlatform checks actions that do not belong to any residence yet,
	// such as registering a new one.
	AuthorizePlatform(ctx context.Context, userID snowflake.ID, object string, action string) error
}
