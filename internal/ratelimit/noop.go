// Package ratelimit provides request rate limiting abstractions.
package ratelimit

import (
	"context"
)

// NoopLimiter implements Limiter with no limiting at all.
// Used when rate limiting is disabled in configuration.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that allows every request.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow always reports true.
func (l *NoopLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return true, nil
}

// Ensure NoopLimiter implements Limiter
var _ Limiter = (*NoopLimiter)(nil)
