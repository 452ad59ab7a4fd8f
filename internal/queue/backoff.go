package queue

import (
	"time"

	"github.com/cuongbtq/issue-runner/internal/domain"
)

// RetryPolicy computes the delay before a failed job's next attempt.
// Delay = min(base * 2^(attempt-1), Max).
type RetryPolicy struct {
	Max time.Duration
}

// Delay returns the backoff for the given attempt (1-indexed) using base
// as the first delay. Non-positive inputs fall back to the defaults.
func (p RetryPolicy) Delay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = domain.DefaultRetryBaseDelay
	}
	maxDelay := p.Max
	if maxDelay <= 0 {
		maxDelay = domain.MaxRetryDelay
	}
	if attempt < 1 {
		attempt = 1
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay || d <= 0 {
			return maxDelay
		}
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}
