package server

import (
	"time"
)

// Backoff kinds
const (
	BackoffExponential = "exponential"
	BackoffLinear      = "linear"
	BackoffConstant    = "constant"
)

// RetryPolicy decides whether and when a failed callback is retried
type RetryPolicy struct {
	MaxRetries int
	Backoff    string
	Base       time.Duration
}

// DefaultRetryPolicy retries three times with exponential backoff from one second
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Backoff: BackoffExponential, Base: time.Second}
}

// ShouldRetry reports whether attempt (0-based) may be followed by another one
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	return err != nil && attempt < p.MaxRetries
}

// Delay returns the wait before retry number attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	switch p.Backoff {
	case BackoffLinear:
		return p.Base * time.Duration(attempt)
	case BackoffConstant:
		return p.Base
	default:
		return p.Base * time.Duration(1<<uint(attempt-1))
	}
}
