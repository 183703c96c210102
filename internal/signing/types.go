// Package signing implements Google Cloud Storage V4 signed URL construction.
package signing

import (
	"time"
)

// =============================================================================
// Credential Types
// =============================================================================

// CredentialScope binds a signature to a date, region, and service.
// Format: {date}/auto/storage/goog4_request
type CredentialScope struct {
	// Date is the date portion of the scope (YYYYMMDD).
	Date time.Time
}

// String returns the credential scope as a string.
func (cs CredentialScope) String() string {
	return cs.Date.Format(YYYYMMDD) + "/" + RegionAuto + "/" + ServiceStorage + "/" + Goog4Request
}

// =============================================================================
// Signature Components
// =============================================================================

// CanonicalRequest holds the components of a canonical request.
// The verifier reconstructs this string independently from the incoming
// request; every byte of String() is covered by the signature.
type CanonicalRequest struct {
	// Method is the HTTP method.
	Method string

	// Path is the URI path. Callers must pass it already percent-encoded;
	// it is not re-normalized here.
	Path string

	// QueryString is the canonical query string.
	QueryString string

	// Headers is the canonical headers block (no trailing newline).
	Headers string

	// SignedHeaders is the ";"-joined list of signed header names.
	SignedHeaders string

	// PayloadHash is the payload hash token.
	PayloadHash string
}

// String returns the canonical request as the exact byte sequence to hash.
// The empty line between the headers block and the signed-headers list is
// part of the format; omitting it produces a digest the verifier will
// never match.
func (cr CanonicalRequest) String() string {
	return cr.Method + "\n" +
		cr.Path + "\n" +
		cr.QueryString + "\n" +
		cr.Headers + "\n" +
		"\n" +
		cr.SignedHeaders + "\n" +
		cr.PayloadHash
}

// StringToSign is the final payload handed to the signing primitive.
type StringToSign struct {
	// Algorithm is the signing algorithm identifier.
	Algorithm string

	// RequestDateTime is the request timestamp (ISO8601 basic, UTC).
	RequestDateTime string

	// CredentialScope is the credential scope string.
	CredentialScope string

	// CanonicalRequestHash is the hex SHA-256 of the canonical request.
	CanonicalRequestHash string
}

// String returns the string to sign.
func (sts StringToSign) String() string {
	return sts.Algorithm + "\n" +
		sts.RequestDateTime + "\n" +
		sts.CredentialScope + "\n" +
		sts.CanonicalRequestHash
}
