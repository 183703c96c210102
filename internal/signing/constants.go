// Package signing implements Google Cloud Storage V4 signed URL construction.
// This implementation follows the GCS V4 signing specification: the canonical
// request and string-to-sign must match, byte for byte, what the storage
// service reconstructs when it verifies an incoming URL.
package signing

import "time"

// =============================================================================
// Constants
// =============================================================================

const (
	// SignV4Algorithm is the algorithm identifier for GCS V4 RSA signatures.
	SignV4Algorithm = "GOOG4-RSA-SHA256"

	// ISO8601BasicFormat is the timestamp format used in V4 signatures.
	ISO8601BasicFormat = "20060102T150405Z"

	// YYYYMMDD is the short date format used in credential scope.
	YYYYMMDD = "20060102"

	// RegionAuto is the region component of a GCS credential scope.
	// GCS uses the literal "auto" rather than a location name.
	RegionAuto = "auto"

	// ServiceStorage is the service component of a GCS credential scope.
	ServiceStorage = "storage"

	// Goog4Request is the termination string for credential scope.
	Goog4Request = "goog4_request"

	// StorageHost is the virtual-hosted storage endpoint suffix.
	// Upload URLs take the form https://{bucket}.storage.googleapis.com/{object}.
	StorageHost = "storage.googleapis.com"

	// SignedURLMaxExpiry is the maximum expiry for a V4 signed URL (7 days).
	SignedURLMaxExpiry = 7 * 24 * time.Hour

	// SignedURLMinExpiry is the minimum expiry for a V4 signed URL.
	SignedURLMinExpiry = 1 * time.Second
)

// =============================================================================
// Query Parameter Names
// =============================================================================

const (
	// XGoogAlgorithm carries the signing algorithm identifier.
	XGoogAlgorithm = "X-Goog-Algorithm"

	// XGoogCredential carries "{identity}/{scope}".
	XGoogCredential = "X-Goog-Credential"

	// XGoogDate carries the signing timestamp.
	XGoogDate = "X-Goog-Date"

	// XGoogExpires carries the validity window in seconds.
	XGoogExpires = "X-Goog-Expires"

	// XGoogSignedHeaders carries the ";"-joined signed header names.
	XGoogSignedHeaders = "X-Goog-SignedHeaders"

	// XGoogSignature carries the hex-encoded signature. It is never part
	// of the canonical query string (it does not exist until after signing).
	XGoogSignature = "X-Goog-Signature"
)

// =============================================================================
// Special Payload Hash Values
// =============================================================================

const (
	// UnsignedPayload indicates the request body is not authenticated.
	// The upload body is transferred later, out of band, and is not part
	// of what the signature covers.
	UnsignedPayload = "UNSIGNED-PAYLOAD"
)
