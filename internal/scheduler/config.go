package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/cliprail/internal/config"
)

// Config controls when the accrual cycle runs and how long it may take.
type Config struct {
	Enabled      bool
	RunInterval  time.Duration
	Schedule     string
	CycleTimeout time.Duration
	LockTTL      time.Duration
	BatchSize    int
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		RunInterval:  15 * time.Minute,
		CycleTimeout: 30 * time.Minute,
		LockTTL:      45 * time.Minute,
		BatchSize:    100,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = defaults.CycleTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	// The lock must outlive the cycle or a slow run could overlap the next.
	if c.LockTTL < c.CycleTimeout {
		c.LockTTL = c.CycleTimeout + time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	c.Schedule = strings.TrimSpace(c.Schedule)
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:      cfg.Accrual.Enabled,
		RunInterval:  cfg.Accrual.RunInterval,
		Schedule:     cfg.Accrual.Schedule,
		CycleTimeout: cfg.Accrual.CycleTimeout,
		LockTTL:      cfg.Accrual.LockTTL,
		BatchSize:    cfg.Accrual.BatchSize,
	}
}
