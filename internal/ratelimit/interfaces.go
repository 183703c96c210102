// Package ratelimit provides request rate limiting abstractions.
// For single-node deployments, memory-based limiting is used.
// For distributed deployments, Redis-based limiting can be used.
package ratelimit

import (
	"context"
)

// Limiter defines the interface for fixed-window rate limiting.
// This abstraction allows switching between in-memory counters (single-node)
// and Redis-based counters (distributed) without changing business logic.
type Limiter interface {
	// Allow reports whether the caller identified by key may proceed.
	// Each call counts against the key's window whether or not it is allowed.
	Allow(ctx context.Context, key string) (bool, error)
}

// Keys provides rate limit key generation for common scenarios.
var Keys = limitKeys{}

type limitKeys struct{}

// ClientIP returns a rate limit key for a client IP address.
func (limitKeys) ClientIP(ip string) string {
	return "ratelimit:ip:" + ip
}

// APIKey returns a rate limit key for an authenticated API key.
func (limitKeys) APIKey(keyID string) string {
	return "ratelimit:key:" + keyID
}
