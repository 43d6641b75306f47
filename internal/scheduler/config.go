package scheduler

import (
	"time"
)

// Config controls scheduler intervals and job budgets.
type Config struct {
	RunInterval  time.Duration
	RelayTimeout time.Duration
	LockTTL      time.Duration
	EnabledJobs  []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  15 * time.Second,
		RelayTimeout: 30 * time.Second,
		LockTTL:      time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RelayTimeout <= 0 {
		c.RelayTimeout = defaults.RelayTimeout
	}
	if c.LockTTL <= c.RelayTimeout {
		c.LockTTL = c.RelayTimeout * 2
	}
	return c
}
