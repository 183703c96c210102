package signing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Digest of the canonical request literal below, computed with an
// independent SHA-256 implementation over those exact bytes.
const referenceCanonicalRequest = "PUT\n/file.jpg\n\ncontent-type:image/jpeg\nhost:bucket.example.com\n\ncontent-type;host\nUNSIGNED-PAYLOAD"
const referenceCanonicalDigest = "abbeb0fa1db0fd8e87892596098d4fc12cd81bab392ddf5b580f207936d50841"

func TestEscape(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unreserved untouched", "AZaz09-._~", "AZaz09-._~"},
		{"space", "a b", "a%20b"},
		{"slash", "a/b", "a%2Fb"},
		{"at sign", "sa@example.com", "sa%40example.com"},
		{"plus", "a+b", "a%2Bb"},
		{"equals and ampersand", "a=b&c", "a%3Db%26c"},
		{"semicolon", "content-type;host", "content-type%3Bhost"},
		{"utf8 multibyte", "café", "caf%C3%A9"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Escape(tt.input))
		})
	}
}

func TestEscapePath(t *testing.T) {
	require.Equal(t, "/uploads/img%201.jpg", EscapePath("/uploads/img 1.jpg"))
	require.Equal(t, "/plain.jpg", EscapePath("/plain.jpg"))
}

func TestCanonicalQueryStringSortsByEscapedKey(t *testing.T) {
	// Raw byte order and escaped byte order disagree for these keys:
	// ':' (0x3A) sorts after '0' raw, but "%3A" sorts before "0".
	params := map[string]string{
		"a:": "1",
		"a0": "2",
	}

	require.Equal(t, "a%3A=1&a0=2", CanonicalQueryString(params))
}

func TestCanonicalQueryStringDropsSignature(t *testing.T) {
	params := map[string]string{
		"X-Goog-Date":      "20240115T120000Z",
		"X-Goog-Signature": "deadbeef",
	}

	got := CanonicalQueryString(params)
	require.Equal(t, "X-Goog-Date=20240115T120000Z", got)
	require.NotContains(t, got, "Signature")
}

func TestCanonicalHeadersCaseInsensitive(t *testing.T) {
	mixed, mixedSigned := CanonicalHeaders(map[string]string{
		"Content-Type": "image/jpeg",
		"HOST":         "bucket.storage.googleapis.com",
	})
	lower, lowerSigned := CanonicalHeaders(map[string]string{
		"content-type": "image/jpeg",
		"host":         "bucket.storage.googleapis.com",
	})

	require.Equal(t, lower, mixed)
	require.Equal(t, lowerSigned, mixedSigned)
	require.Equal(t, "content-type:image/jpeg\nhost:bucket.storage.googleapis.com", mixed)
	require.Equal(t, "content-type;host", mixedSigned)
}

func TestCanonicalHeadersTrimsValues(t *testing.T) {
	block, _ := CanonicalHeaders(map[string]string{
		"content-type": "  image/jpeg ",
		"x-meta":       "a  b", // internal whitespace preserved
	})

	require.Equal(t, "content-type:image/jpeg\nx-meta:a  b", block)
}

func TestBuildCanonicalRequestDeterminism(t *testing.T) {
	query := map[string]string{
		XGoogAlgorithm: SignV4Algorithm,
		XGoogDate:      "20240115T120000Z",
		XGoogExpires:   "900",
	}
	headers := map[string]string{
		"content-type": "image/jpeg",
		"host":         "bucket.storage.googleapis.com",
	}

	first := BuildCanonicalRequest("PUT", "/test.jpg", query, headers).String()
	for i := 0; i < 50; i++ {
		require.Equal(t, first, BuildCanonicalRequest("PUT", "/test.jpg", query, headers).String())
	}
}

func TestCanonicalRequestBlankLineInvariant(t *testing.T) {
	cr := BuildCanonicalRequest("PUT", "/test.jpg",
		map[string]string{XGoogDate: "20240115T120000Z"},
		map[string]string{"content-type": "image/jpeg", "host": "b.example.com"},
	)
	s := cr.String()

	// Exactly one empty line, sitting between the headers block and the
	// signed-headers list.
	require.Equal(t, 1, strings.Count(s, "\n\n"))
	lines := strings.Split(s, "\n")
	require.Equal(t, 7, len(lines))
	require.Equal(t, "", lines[4])
	require.Equal(t, "content-type;host", lines[5])
	require.Equal(t, UnsignedPayload, lines[6])
}

func TestHashCanonicalRequestReference(t *testing.T) {
	require.Equal(t, referenceCanonicalDigest, HashCanonicalRequest(referenceCanonicalRequest))
}

func TestGetStringToSign(t *testing.T) {
	requestTime := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	scope := CredentialScope{Date: requestTime}
	require.Equal(t, "20240115/auto/storage/goog4_request", scope.String())

	cr := CanonicalRequest{
		Method:        "PUT",
		Path:          "/file.jpg",
		QueryString:   "",
		Headers:       "content-type:image/jpeg\nhost:bucket.example.com",
		SignedHeaders: "content-type;host",
		PayloadHash:   UnsignedPayload,
	}
	require.Equal(t, referenceCanonicalRequest, cr.String())

	sts := GetStringToSign(cr, requestTime, scope)
	want := SignV4Algorithm + "\n" +
		"20240115T120000Z\n" +
		"20240115/auto/storage/goog4_request\n" +
		referenceCanonicalDigest
	require.Equal(t, want, sts.String())
}
