package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/fletcher-signer/internal/ratelimit"
	"github.com/prn-tf/fletcher-signer/internal/service"
)

// stubUploadService captures its input and returns canned results.
type stubUploadService struct {
	lastInput service.CreateUploadURLInput
	output    *service.CreateUploadURLOutput
	err       error
}

func (s *stubUploadService) CreateUploadURL(_ context.Context, input service.CreateUploadURLInput) (*service.CreateUploadURLOutput, error) {
	s.lastInput = input
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

func (s *stubUploadService) Identity() service.IdentityOutput {
	return service.IdentityOutput{
		Backend:        "gcs",
		SignerIdentity: "uploader@example-project.iam.gserviceaccount.com",
		Bucket:         "test-bucket",
	}
}

func newTestRouter(svc service.UploadURLService, middlewares ...func(http.Handler) http.Handler) http.Handler {
	h := NewSignedURLHandler(SignedURLHandlerConfig{
		Service: svc,
		Logger:  zerolog.Nop(),
	})
	return NewRouter(RouterConfig{
		SignedURLHandler: h,
		Middlewares:      middlewares,
		Logger:           zerolog.Nop(),
	}).Handler()
}

func postSignedURL(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/signed-url", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSignedURL(t *testing.T) {
	expiresAt := time.Date(2024, 1, 15, 12, 15, 0, 0, time.UTC)
	svc := &stubUploadService{
		output: &service.CreateUploadURLOutput{
			URL:         "https://test-bucket.storage.googleapis.com/test.jpg?X-Goog-Signature=ab",
			Method:      "PUT",
			BlobName:    "test.jpg",
			ContentType: "image/png",
			ExpiresAt:   expiresAt,
		},
	}
	router := newTestRouter(svc)

	rec := postSignedURL(t, router, `{"filename":"test.jpg","content_type":"image/png","expires_minutes":30}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, "test.jpg", svc.lastInput.Filename)
	require.Equal(t, "image/png", svc.lastInput.ContentType)
	require.Equal(t, 30*time.Minute, svc.lastInput.Expiry)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, svc.output.URL, resp["url"])
	require.Equal(t, "PUT", resp["method"])
	require.Equal(t, "test.jpg", resp["blob_name"])
	require.Equal(t, "image/png", resp["content_type"])
	require.Equal(t, "2024-01-15T12:15:00Z", resp["expires_at"])
}

func TestCreateSignedURLContentTypeDefaulting(t *testing.T) {
	svc := &stubUploadService{output: &service.CreateUploadURLOutput{Method: "PUT"}}
	router := newTestRouter(svc)

	// Omitted content_type defaults to image/jpeg.
	rec := postSignedURL(t, router, `{"filename":"a.jpg"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", svc.lastInput.ContentType)

	// Explicitly empty content_type passes through; the service falls
	// back to application/octet-stream.
	rec = postSignedURL(t, router, `{"filename":"a.jpg","content_type":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "", svc.lastInput.ContentType)
}

func TestCreateSignedURLEmptyBody(t *testing.T) {
	svc := &stubUploadService{output: &service.CreateUploadURLOutput{Method: "PUT"}}
	router := newTestRouter(svc)

	rec := postSignedURL(t, router, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "", svc.lastInput.Filename)
	require.Equal(t, "image/jpeg", svc.lastInput.ContentType)
	require.Equal(t, time.Duration(0), svc.lastInput.Expiry, "expiry defaulting belongs to the service")
}

func TestCreateSignedURLInvalidJSON(t *testing.T) {
	svc := &stubUploadService{output: &service.CreateUploadURLOutput{}}
	router := newTestRouter(svc)

	rec := postSignedURL(t, router, `{"filename":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "invalid request body", resp["detail"])
}

func TestCreateSignedURLErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid expiration", service.ErrInvalidExpiration, http.StatusBadRequest},
		{"invalid filename", service.ErrInvalidFilename, http.StatusBadRequest},
		{"signing failure", service.ErrSigningFailed, http.StatusInternalServerError},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubUploadService{err: tt.err}
			router := newTestRouter(svc)

			rec := postSignedURL(t, router, `{"filename":"a.jpg"}`)
			require.Equal(t, tt.wantStatus, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotEmpty(t, resp["detail"])
		})
	}
}

func TestDebugIdentity(t *testing.T) {
	router := newTestRouter(&stubUploadService{})

	req := httptest.NewRequest(http.MethodGet, "/debug/identity", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "gcs", resp["backend"])
	require.Equal(t, "uploader@example-project.iam.gserviceaccount.com", resp["signer_identity"])
	require.Equal(t, "test-bucket", resp["bucket"])
}

func TestHealthBypassesMiddleware(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0, time.Minute)
	router := newTestRouter(&stubUploadService{},
		RateLimitMiddleware(limiter, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestAPIKeyMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key"), bcrypt.DefaultCost)
	require.NoError(t, err)

	svc := &stubUploadService{output: &service.CreateUploadURLOutput{Method: "PUT"}}
	router := newTestRouter(svc,
		APIKeyMiddleware([]string{string(hash)}, zerolog.Nop()))

	// Missing key
	req := httptest.NewRequest(http.MethodPost, "/signed-url", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key
	req = httptest.NewRequest(http.MethodPost, "/signed-url", bytes.NewBufferString(`{}`))
	req.Header.Set(APIKeyHeader, "wrong-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid key
	req = httptest.NewRequest(http.MethodPost, "/signed-url", bytes.NewBufferString(`{}`))
	req.Header.Set(APIKeyHeader, "secret-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, time.Minute)
	svc := &stubUploadService{output: &service.CreateUploadURLOutput{Method: "PUT"}}
	router := newTestRouter(svc,
		RateLimitMiddleware(limiter, zerolog.Nop()))

	rec := postSignedURL(t, router, `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postSignedURL(t, router, `{}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
