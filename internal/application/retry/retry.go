// Package retry runs an operation under a bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/ajy0127/soc2-report-reviewer/internal/application"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultPolicy is three attempts starting at one second, doubling.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// Delay is the wait before attempt n+1, given that attempt n (1-based) failed.
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// attempts run out. It returns the number of calls made and the last error.
// A cancelled context stops the loop during the wait.
func Do(ctx context.Context, clock application.Clock, p Policy, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) (int, error) {
	p = p.normalized()
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if !retryable(err) || attempt == p.MaxAttempts {
			return attempt, err
		}
		if serr := clock.Sleep(ctx, p.Delay(attempt)); serr != nil {
			return attempt, err
		}
	}
	return p.MaxAttempts, err
}
