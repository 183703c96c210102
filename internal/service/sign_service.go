// Package service provides business logic for Fletcher Signer.
package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/fletcher-signer/internal/metrics"
	"github.com/prn-tf/fletcher-signer/internal/repository"
	"github.com/prn-tf/fletcher-signer/internal/signer"
	"github.com/prn-tf/fletcher-signer/internal/signing"
)

// BackendGCS identifies the keyless GCS signing backend.
const BackendGCS = "gcs"

// SignService issues GCS V4 signed upload URLs via remote keyless signing.
// The canonical request and string-to-sign are built locally; the RSA
// signature comes from the IAM Credentials API, so no private key ever
// exists in this process.
type SignService struct {
	signer         signer.BlobSigner
	issuances      repository.IssuanceRepository
	metrics        *metrics.Metrics
	bucket         string
	signerIdentity string
	defaultExpiry  time.Duration
	now            func() time.Time
	logger         zerolog.Logger
}

// SignServiceConfig contains configuration for creating a SignService.
type SignServiceConfig struct {
	Signer         signer.BlobSigner
	Issuances      repository.IssuanceRepository
	Metrics        *metrics.Metrics
	Bucket         string
	SignerIdentity string
	DefaultExpiry  time.Duration
	Logger         zerolog.Logger
}

// NewSignService creates a new GCS signing service.
func NewSignService(cfg SignServiceConfig) *SignService {
	defaultExpiry := cfg.DefaultExpiry
	if defaultExpiry <= 0 {
		defaultExpiry = 15 * time.Minute
	}

	return &SignService{
		signer:         cfg.Signer,
		issuances:      cfg.Issuances,
		metrics:        cfg.Metrics,
		bucket:         cfg.Bucket,
		signerIdentity: cfg.SignerIdentity,
		defaultExpiry:  defaultExpiry,
		now:            time.Now,
		logger:         cfg.Logger.With().Str("service", "sign").Logger(),
	}
}

// CreateUploadURL issues a V4 signed PUT URL for a single object upload.
func (s *SignService) CreateUploadURL(ctx context.Context, input CreateUploadURLInput) (*CreateUploadURLOutput, error) {
	blobName := input.Filename
	if blobName == "" {
		blobName = generateBlobName()
	}
	if strings.HasPrefix(blobName, "/") {
		return nil, ErrInvalidFilename
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	expiry := input.Expiry
	if expiry == 0 {
		expiry = s.defaultExpiry
	}
	if expiry < signing.SignedURLMinExpiry || expiry > signing.SignedURLMaxExpiry {
		return nil, ErrInvalidExpiration
	}

	requestTime := s.now().UTC()
	scope := signing.CredentialScope{Date: requestTime}
	host := s.bucket + "." + signing.StorageHost
	path := "/" + signing.EscapePath(blobName)

	headers := map[string]string{
		"host":         host,
		"content-type": contentType,
	}
	_, signedHeaders := signing.CanonicalHeaders(headers)

	params := map[string]string{
		signing.XGoogAlgorithm:     signing.SignV4Algorithm,
		signing.XGoogCredential:    s.signerIdentity + "/" + scope.String(),
		signing.XGoogDate:          requestTime.Format(signing.ISO8601BasicFormat),
		signing.XGoogExpires:       strconv.Itoa(int(expiry / time.Second)),
		signing.XGoogSignedHeaders: signedHeaders,
	}

	canonicalRequest := signing.BuildCanonicalRequest("PUT", path, params, headers)
	stringToSign := signing.GetStringToSign(canonicalRequest, requestTime, scope)

	signStart := time.Now()
	signature, err := s.signer.SignBlob(ctx, s.signerIdentity, []byte(stringToSign.String()))
	if s.metrics != nil {
		s.metrics.ObserveSignBlob(time.Since(signStart), err)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Str("blob_name", blobName).
			Msg("remote signing failed")
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	url := signing.AssembleSignedURL(host, path, params, signature)
	expiresAt := requestTime.Add(expiry)

	s.recordIssuance(ctx, blobName, contentType, requestTime, expiresAt)
	if s.metrics != nil {
		s.metrics.URLsIssued.WithLabelValues(BackendGCS).Inc()
	}

	s.logger.Info().
		Str("blob_name", blobName).
		Str("content_type", contentType).
		Time("expires_at", expiresAt).
		Msg("signed upload URL issued")

	return &CreateUploadURLOutput{
		URL:         url,
		Method:      "PUT",
		BlobName:    blobName,
		ContentType: contentType,
		ExpiresAt:   expiresAt,
	}, nil
}

// Identity reports the identity the service signs as.
func (s *SignService) Identity() IdentityOutput {
	return IdentityOutput{
		Backend:        BackendGCS,
		SignerIdentity: s.signerIdentity,
		Bucket:         s.bucket,
	}
}

// recordIssuance appends the audit record. The URL has already been
// issued, so failures here are logged and swallowed.
func (s *SignService) recordIssuance(ctx context.Context, blobName, contentType string, issuedAt, expiresAt time.Time) {
	if s.issuances == nil {
		return
	}

	err := s.issuances.Create(ctx, &repository.Issuance{
		ID:             uuid.New(),
		Bucket:         s.bucket,
		BlobName:       blobName,
		Method:         "PUT",
		ContentType:    contentType,
		SignerIdentity: s.signerIdentity,
		Backend:        BackendGCS,
		IssuedAt:       issuedAt,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("blob_name", blobName).
			Msg("failed to record issuance")
	}
}

// generateBlobName returns a unique object name under uploads/.
func generateBlobName() string {
	id := uuid.New()
	return "uploads/" + hex.EncodeToString(id[:]) + ".jpg"
}

// Ensure SignService implements UploadURLService
var _ UploadURLService = (*SignService)(nil)
