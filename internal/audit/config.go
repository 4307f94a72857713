package audit

import (
	"fmt"
	"time"
)

// Config holds the configuration for the usage audit sweeper.
type Config struct {
	// SweepInterval is how often the current period's counters are checked
	// against recorded artifacts.
	// Default: 15 minutes
	SweepInterval time.Duration

	// SweepTimeout is the maximum time a single sweep is allowed to run.
	// Default: 1 minute
	SweepTimeout time.Duration

	// ShutdownTimeout is how long to wait for a running sweep during
	// graceful shutdown.
	// Default: 10 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		SweepInterval:   15 * time.Minute,
		SweepTimeout:    1 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.SweepInterval < 1*time.Second {
		return fmt.Errorf("sweep interval must be at least 1 second, got %v", c.SweepInterval)
	}
	if c.SweepTimeout < 1*time.Second {
		return fmt.Errorf("sweep timeout must be at least 1 second, got %v", c.SweepTimeout)
	}
	if c.ShutdownTimeout < 1*time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	return nil
}
