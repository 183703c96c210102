// Package service provides business logic for Fletcher Signer.
package service

import "errors"

// Common service errors.
var (
	// Upload URL errors
	ErrInvalidExpiration = errors.New("invalid expiration: must be between 1 second and 7 days")
	ErrInvalidFilename   = errors.New("invalid filename")

	// General errors
	ErrSigningFailed = errors.New("signing failed")
	ErrInternalError = errors.New("internal server error")
)
