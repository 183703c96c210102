// Package service provides business logic for Fletcher Signer.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/fletcher-signer/internal/metrics"
	"github.com/prn-tf/fletcher-signer/internal/repository"
)

// BackendS3 identifies the S3-compatible signing backend.
const BackendS3 = "s3"

// S3Presigner is the subset of the S3 backend the service needs.
type S3Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
}

// S3SignService issues upload URLs against an S3-compatible store. Signing
// happens locally via the SDK, so there is no remote signing boundary here.
type S3SignService struct {
	presigner     S3Presigner
	issuances     repository.IssuanceRepository
	metrics       *metrics.Metrics
	bucket        string
	identity      string
	defaultExpiry time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// S3SignServiceConfig contains configuration for creating an S3SignService.
type S3SignServiceConfig struct {
	Presigner     S3Presigner
	Issuances     repository.IssuanceRepository
	Metrics       *metrics.Metrics
	Bucket        string
	Identity      string
	DefaultExpiry time.Duration
	Logger        zerolog.Logger
}

// NewS3SignService creates a new S3 signing service.
func NewS3SignService(cfg S3SignServiceConfig) *S3SignService {
	defaultExpiry := cfg.DefaultExpiry
	if defaultExpiry <= 0 {
		defaultExpiry = 15 * time.Minute
	}

	return &S3SignService{
		presigner:     cfg.Presigner,
		issuances:     cfg.Issuances,
		metrics:       cfg.Metrics,
		bucket:        cfg.Bucket,
		identity:      cfg.Identity,
		defaultExpiry: defaultExpiry,
		now:           time.Now,
		logger:        cfg.Logger.With().Str("service", "s3-sign").Logger(),
	}
}

// CreateUploadURL issues a pre-signed PUT URL for a single object upload.
func (s *S3SignService) CreateUploadURL(ctx context.Context, input CreateUploadURLInput) (*CreateUploadURLOutput, error) {
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
	if expiry < time.Second || expiry > 7*24*time.Hour {
		return nil, ErrInvalidExpiration
	}

	requestTime := s.now().UTC()

	url, err := s.presigner.PresignUpload(ctx, blobName, contentType, expiry)
	if err != nil {
		s.logger.Error().Err(err).
			Str("blob_name", blobName).
			Msg("presigning failed")
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	expiresAt := requestTime.Add(expiry)

	s.recordIssuance(ctx, blobName, contentType, requestTime, expiresAt)
	if s.metrics != nil {
		s.metrics.URLsIssued.WithLabelValues(BackendS3).Inc()
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
func (s *S3SignService) Identity() IdentityOutput {
	return IdentityOutput{
		Backend:        BackendS3,
		SignerIdentity: s.identity,
		Bucket:         s.bucket,
	}
}

func (s *S3SignService) recordIssuance(ctx context.Context, blobName, contentType string, issuedAt, expiresAt time.Time) {
	if s.issuances == nil {
		return
	}

	err := s.issuances.Create(ctx, &repository.Issuance{
		ID:             uuid.New(),
		Bucket:         s.bucket,
		BlobName:       blobName,
		Method:         "PUT",
		ContentType:    contentType,
		SignerIdentity: s.identity,
		Backend:        BackendS3,
		IssuedAt:       issuedAt,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("blob_name", blobName).
			Msg("failed to record issuance")
	}
}

// Ensure S3SignService implements UploadURLService
var _ UploadURLService = (*S3SignService)(nil)
