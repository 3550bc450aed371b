package execution

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidOptions is returned when harness options fail validation.
var ErrInvalidOptions = errors.New("invalid options")

// Options controls how a test suite is scheduled.
type Options struct {
	// PoolSize is the number of tests allowed to execute concurrently.
	PoolSize int
	// StopOnFirstFailure skips every test after the first failing one in submission order.
	StopOnFirstFailure bool
	// TimeLimit applies to every test. Zero defers to the runtime default.
	TimeLimit time.Duration
	// MemoryLimitBytes applies to every test. Zero defers to the runtime default.
	MemoryLimitBytes int64
	// Comparator names the output equivalence policy. Empty selects the default.
	Comparator string
}

// DefaultOptions mirrors the settings used by the dataset driver.
func DefaultOptions() Options {
	return Options{
		PoolSize:           4,
		StopOnFirstFailure: true,
	}
}

// Validate rejects options that cannot describe a run.
func (o Options) Validate() error {
	if o.PoolSize <= 0 {
		return fmt.Errorf("%w: pool size must be positive, got %d", ErrInvalidOptions, o.PoolSize)
	}
	if o.TimeLimit < 0 {
		return fmt.Errorf("%w: time limit must not be negative, got %s", ErrInvalidOptions, o.TimeLimit)
	}
	if o.MemoryLimitBytes < 0 {
		return fmt.Errorf("%w: memory limit must not be negative, got %d", ErrInvalidOptions, o.MemoryLimitBytes)
	}
	return nil
}

// Limits converts the per-test resource settings into RunLimits.
func (o Options) Limits() RunLimits {
	return RunLimits{
		TimeLimit:        o.TimeLimit,
		MemoryLimitBytes: o.MemoryLimitBytes,
	}
}
