package runs

import (
	"fmt"
	"time"
)

// Policy is the polling schedule of a run.
type Policy struct {
	// InitialDelay is the grace period between the submission and the first
	// status check.
	InitialDelay time.Duration
	Interval     time.Duration
	// MaxAttempts is the ceiling of status checks, 0 means unbounded.
	MaxAttempts int
	// CountErrors makes failed status checks count toward MaxAttempts.
	CountErrors bool
	// AutoFetchReport fetches the report as soon as the run completes.
	AutoFetchReport bool
}

// BaselinePolicy checks after 3s and then every 5s until the run ends.
func BaselinePolicy() Policy {
	return Policy{
		InitialDelay: 3 * time.Second,
		Interval:     5 * time.Second,
		CountErrors:  true,
	}
}

// BoundedPolicy checks after 5s and then every 10s, giving up after 30
// checks (about five minutes).
func BoundedPolicy() Policy {
	return Policy{
		InitialDelay: 5 * time.Second,
		Interval:     10 * time.Second,
		MaxAttempts:  30,
		CountErrors:  true,
	}
}

func (p Policy) IsBounded() bool {
	return p.MaxAttempts > 0
}

func (p Policy) Validate() error {
	if p.InitialDelay < 0 {
		return fmt.Errorf("the polling initial delay must not be negative, got %s", p.InitialDelay)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("the polling interval must be positive, got %s", p.Interval)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("the polling max attempts must not be negative, got %d", p.MaxAttempts)
	}
	return nil
}

// ceilingReached reports whether counted checks exhausted the policy.
func (p Policy) ceilingReached(counted int) bool {
	return p.IsBounded() && counted >= p.MaxAttempts
}
