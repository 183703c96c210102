// Package service provides business logic for Fletcher Signer.
package service

import (
	"context"
	"time"
)

// CreateUploadURLInput contains parameters for issuing an upload URL.
type CreateUploadURLInput struct {
	// Filename is the destination object name. When empty, a unique
	// name under uploads/ is generated.
	Filename string

	// ContentType is the content type the uploader commits to. When
	// empty, application/octet-stream is used.
	ContentType string

	// Expiry is the URL validity window. Zero means the configured
	// default; out-of-range values are rejected.
	Expiry time.Duration
}

// CreateUploadURLOutput contains the issued upload URL and its terms.
type CreateUploadURLOutput struct {
	URL         string
	Method      string
	BlobName    string
	ContentType string
	ExpiresAt   time.Time
}

// IdentityOutput describes the identity and backend the service signs with.
type IdentityOutput struct {
	Backend        string
	SignerIdentity string
	Bucket         string
}

// UploadURLService issues pre-signed upload URLs.
type UploadURLService interface {
	// CreateUploadURL issues a signed upload URL. On any signing
	// failure no URL is returned; there are no partially signed URLs.
	CreateUploadURL(ctx context.Context, input CreateUploadURLInput) (*CreateUploadURLOutput, error)

	// Identity reports the identity the service signs as.
	Identity() IdentityOutput
}
