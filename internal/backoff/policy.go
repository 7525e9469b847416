// Package backoff holds the reconnect delay policy.
//
// The policy is pure: it maps an attempt number to a delay. The transport
// applies the delay between redial attempts; nothing here sleeps.
package backoff

import (
	"fmt"
	"time"
)

// Default delays for reconnection attempts.
const (
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// Policy bounds the exponential delay between reconnect attempts.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// New validates the bounds and returns a Policy.
func New(initial, max time.Duration) (Policy, error) {
	p := Policy{InitialDelay: initial, MaxDelay: max}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Default returns the standard 1s..30s policy.
func Default() Policy {
	return Policy{
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Validate checks the bounds.
func (p Policy) Validate() error {
	if p.InitialDelay <= 0 {
		return fmt.Errorf("backoff initial_delay must be > 0, got %v", p.InitialDelay)
	}
	if p.MaxDelay <= 0 {
		return fmt.Errorf("backoff max_delay must be > 0, got %v", p.MaxDelay)
	}
	if p.InitialDelay > p.MaxDelay {
		return fmt.Errorf("backoff initial_delay (%v) cannot exceed max_delay (%v)", p.InitialDelay, p.MaxDelay)
	}
	return nil
}

// Delay returns the wait before the given attempt. Attempt 0 is the first
// retry and waits InitialDelay; each later attempt doubles, capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
