package retry

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoAttempts is returned when a retry policy has no attempts
	ErrNoAttempts = errors.New("retry policy has no attempts")
	// ErrInvalidAttempt is returned when an attempt has a negative delay or timeout
	ErrInvalidAttempt = errors.New("invalid task attempt")
	// ErrAttemptsExhausted is returned when every attempt failed or timed out
	ErrAttemptsExhausted = errors.New("all task attempts failed")
	// ErrAttemptsStopped is returned when the terminator ended the sequence early
	ErrAttemptsStopped = errors.New("task attempts stopped")
)

// TaskAttempt describes one attempt in a retry policy.
//
// The attempt starts after Delay and may run until Delay+Timeout has elapsed
// since it was scheduled. A zero Timeout means the attempt has no deadline and
// is waited for until it completes or the caller's context is cancelled.
type TaskAttempt struct {
	Delay   time.Duration `mapstructure:"delay" yaml:"delay" json:"delay"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// Validate checks the attempt for negative durations
func (a TaskAttempt) Validate() error {
	if a.Delay < 0 {
		return fmt.Errorf("%w: delay must be >= 0, got %v", ErrInvalidAttempt, a.Delay)
	}
	if a.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0, got %v", ErrInvalidAttempt, a.Timeout)
	}
	return nil
}

// Budget returns the wall-clock time allotted to the attempt, or 0 if unbounded
func (a TaskAttempt) Budget() time.Duration {
	if a.Timeout <= 0 {
		return 0
	}
	return a.Delay + a.Timeout
}

// Policy builds n attempts sharing the same delay and timeout.
// The first attempt always starts immediately.
func Policy(n int, delay, timeout time.Duration) []TaskAttempt {
	if n <= 0 {
		return nil
	}
	attempts := make([]TaskAttempt, n)
	for i := range attempts {
		attempts[i] = TaskAttempt{Delay: delay, Timeout: timeout}
	}
	attempts[0].Delay = 0
	return attempts
}

// ValidatePolicy checks that attempts is non-empty and every attempt is valid
func ValidatePolicy(attempts []TaskAttempt) error {
	if len(attempts) == 0 {
		return ErrNoAttempts
	}
	for i, a := range attempts {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("attempt %d: %w", i+1, err)
		}
	}
	return nil
}

// Terminator is polled before each attempt; returning true ends the sequence
type Terminator interface {
	StopTaskAttempts() bool
}

// TerminatorFunc adapts a function to the Terminator interface
type TerminatorFunc func() bool

// StopTaskAttempts calls f
func (f TerminatorFunc) StopTaskAttempts() bool {
	return f()
}
