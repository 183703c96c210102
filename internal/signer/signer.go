// Package signer provides the remote signing boundary for Fletcher Signer.
// The private key never exists in this process: signing is delegated to the
// IAM Credentials signBlob API, which holds the key for the signing identity.
package signer

import (
	"context"
)

// BlobSigner signs an opaque byte payload on behalf of a signing identity.
// The identity names which key to use (a service account email); it is
// never the key material itself.
//
// Implementations make at most one signing attempt per call. Signing the
// same payload twice yields two independently valid signatures, so retries
// are safe in principle, but retry policy belongs to the caller.
type BlobSigner interface {
	// SignBlob signs payload with the key held for identity and returns
	// the raw signature bytes. Any transport error, non-success status, or
	// malformed response surfaces as an error; no URL-shaped partial
	// results exist at this layer.
	SignBlob(ctx context.Context, identity string, payload []byte) ([]byte, error)
}
