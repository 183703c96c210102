// Package repository defines data access interfaces for Fletcher Signer.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, embedded SQLite, mocks for testing) while
// keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Issuance Audit Log
// =============================================================================

// Issuance is one audit record: a signed upload URL handed out to a caller.
// Records are written after the URL is assembled; the signing pipeline
// itself stays stateless and an audit write failure never fails issuance.
type Issuance struct {
	// ID is the record identifier.
	ID uuid.UUID

	// Bucket is the destination bucket.
	Bucket string

	// BlobName is the object path the URL uploads to.
	BlobName string

	// Method is the HTTP method the URL authorizes.
	Method string

	// ContentType is the content type bound into the signature.
	ContentType string

	// SignerIdentity is the identity whose key produced the signature.
	SignerIdentity string

	// Backend is the signing backend ("gcs" or "s3").
	Backend string

	// IssuedAt is when the URL was generated.
	IssuedAt time.Time

	// ExpiresAt is when the URL stops being accepted.
	ExpiresAt time.Time
}

// IssuanceRepository defines the interface for issuance audit records.
type IssuanceRepository interface {
	// Create records a new issuance.
	Create(ctx context.Context, issuance *Issuance) error

	// GetByID retrieves an issuance by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Issuance, error)

	// ListRecent returns the most recent issuances, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Issuance, error)

	// CountSince returns the number of issuances since the given time.
	CountSince(ctx context.Context, since time.Time) (int64, error)

	// DeleteOlderThan deletes records issued before the cutoff.
	// Returns the number of deleted records.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// =============================================================================
// Database Health
// =============================================================================

// DatabaseHealth is an interface for database health checks and shutdown.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
