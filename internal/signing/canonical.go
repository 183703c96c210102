// Package signing implements Google Cloud Storage V4 signed URL construction.
package signing

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Percent Encoding
// =============================================================================

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes s with no safe characters: everything outside the
// RFC 3986 unreserved set (A-Z a-z 0-9 - . _ ~) is escaped, including "/",
// "=", "&" and "+". This single routine serves both the canonical query
// string and final URL assembly, so the two passes cannot drift apart.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xF])
	}
	return b.String()
}

// EscapePath escapes each path segment with Escape, preserving "/"
// separators. The result is used verbatim in both the canonical request
// and the final URL.
func EscapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = Escape(segment)
	}
	return strings.Join(segments, "/")
}

func isUnreserved(c byte) bool {
	return 'A' <= c && c <= 'Z' ||
		'a' <= c && c <= 'z' ||
		'0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// =============================================================================
// Canonical Query String
// =============================================================================

// CanonicalQueryString returns the sorted, fully escaped query string for
// the canonical request. X-Goog-Signature is dropped if present: the
// parameter does not exist at canonicalization time.
func CanonicalQueryString(params map[string]string) string {
	filtered := make(map[string]string, len(params))
	for k, v := range params {
		if k == XGoogSignature {
			continue
		}
		filtered[k] = v
	}
	return encodeQuery(filtered)
}

// encodeQuery escapes every key and value and joins sorted "k=v" pairs
// with "&". Pairs are ordered byte-wise by escaped key (escaped value as
// tie-breaker), independent of map iteration order.
func encodeQuery(params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, Escape(k)+"="+Escape(v))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// =============================================================================
// Canonical Headers
// =============================================================================

// CanonicalHeaders builds the canonical headers block and the signed-headers
// list from a header map. Names are lowercased and sorted; values are
// trimmed of surrounding whitespace (internal whitespace preserved).
// Duplicate names after lowercasing and values containing newlines are
// documented preconditions of the caller, not handled here.
//
// The returned block has one "name:value" line per header with no trailing
// newline; CanonicalRequest.String adds the separating empty line.
func CanonicalHeaders(headers map[string]string) (block string, signedHeaders string) {
	names := make([]string, 0, len(headers))
	values := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		names = append(names, lk)
		values[lk] = strings.TrimSpace(v)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, name+":"+values[name])
	}

	return strings.Join(lines, "\n"), strings.Join(names, ";")
}

// =============================================================================
// Canonical Request / String to Sign
// =============================================================================

// BuildCanonicalRequest assembles the canonical request for a signed URL.
// The path must already be percent-encoded (see EscapePath); query parameter
// values must already be stringified. The payload hash is always the
// UNSIGNED-PAYLOAD token: the upload body is not authenticated.
func BuildCanonicalRequest(method, path string, query map[string]string, headers map[string]string) CanonicalRequest {
	headerBlock, signedHeaders := CanonicalHeaders(headers)

	return CanonicalRequest{
		Method:        method,
		Path:          path,
		QueryString:   CanonicalQueryString(query),
		Headers:       headerBlock,
		SignedHeaders: signedHeaders,
		PayloadHash:   UnsignedPayload,
	}
}

// HashCanonicalRequest returns the lowercase hex SHA-256 digest of a
// canonical request string.
func HashCanonicalRequest(canonicalRequest string) string {
	sum := sha256.Sum256([]byte(canonicalRequest))
	return hex.EncodeToString(sum[:])
}

// GetStringToSign builds the string to sign for a canonical request.
func GetStringToSign(cr CanonicalRequest, requestTime time.Time, scope CredentialScope) StringToSign {
	return StringToSign{
		Algorithm:            SignV4Algorithm,
		RequestDateTime:      requestTime.Format(ISO8601BasicFormat),
		CredentialScope:      scope.String(),
		CanonicalRequestHash: HashCanonicalRequest(cr.String()),
	}
}
