// Package signing implements Google Cloud Storage V4 signed URL construction.
package signing

import (
	"encoding/hex"
)

// EncodeSignature returns the text form of a raw signature as it appears in
// the X-Goog-Signature parameter: lowercase hex. The signature length is
// fixed by the key provisioned for the signing identity (256 bytes for a
// 2048-bit RSA key); this function does not validate it.
func EncodeSignature(signature []byte) string {
	return hex.EncodeToString(signature)
}

// AssembleSignedURL merges the signature into the query parameters and
// serializes the final URL. The query string is produced by the same
// escape-and-sort routine used for the canonical query string; the only
// difference is the added X-Goog-Signature pair.
func AssembleSignedURL(host, path string, params map[string]string, signature []byte) string {
	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged[XGoogSignature] = EncodeSignature(signature)

	return "https://" + host + path + "?" + encodeQuery(merged)
}
