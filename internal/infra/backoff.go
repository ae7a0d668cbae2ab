package infra

import (
	"time"
)

const (
	// Standard backoff constants
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// Backoff is an exponential delay policy: Base * 2^retry, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff returns the standard 1s..60s policy.
func DefaultBackoff() Backoff {
	return Backoff{Base: baseDelay, Max: maxDelay}
}

// Delay returns the wait before retry number retryCount.
// If retryCount is negative, it returns Base.
func (b Backoff) Delay(retryCount int) time.Duration {
	base, ceiling := b.Base, b.Max
	if base <= 0 {
		base = baseDelay
	}
	if ceiling < base {
		ceiling = base
	}

	if retryCount < 0 {
		return base
	}
	// 2^30 is already far beyond any sane ceiling.
	if retryCount > 30 {
		return ceiling
	}

	backoff := base * time.Duration(1<<retryCount)
	if backoff > ceiling || backoff <= 0 {
		return ceiling
	}
	return backoff
}

// CalculateBackoff returns the default exponential backoff for a given retry count.
func CalculateBackoff(retryCount int) time.Duration {
	return DefaultBackoff().Delay(retryCount)
}
