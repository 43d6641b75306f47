package clock

import (
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("clock",
	fx.Provide(NewSystem),
)

// Clock is the time source used by code that compares against expiry timestamps.
type Clock interface {
	Now() time.Time
}

type system struct{}

func NewSystem() Clock {
	return system{}
}

func (system) Now() time.Time {
	return time.Now().UTC()
}
