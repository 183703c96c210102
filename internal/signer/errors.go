// Package signer provides the remote signing boundary for Fletcher Signer.
package signer

import "errors"

// Signing boundary errors.
var (
	// ErrSigningFailed indicates the remote signer was unreachable or
	// returned a non-success status.
	ErrSigningFailed = errors.New("remote signing failed")

	// ErrMalformedResponse indicates the signer responded successfully but
	// the response did not carry a usable signature field. This is treated
	// exactly like a transport failure: fail loud, never guess.
	ErrMalformedResponse = errors.New("malformed signBlob response")

	// ErrTokenUnavailable indicates a bearer token could not be obtained
	// for the signing call.
	ErrTokenUnavailable = errors.New("access token unavailable")
)
