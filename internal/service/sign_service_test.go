package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/fletcher-signer/internal/repository"
)

// Reference vectors computed independently from the V4 signing rules.
const (
	refBucket   = "test-bucket"
	refBlob     = "test.jpg"
	refIdentity = "uploader@example-project.iam.gserviceaccount.com"

	refStringToSign = "GOOG4-RSA-SHA256\n" +
		"20240115T120000Z\n" +
		"20240115/auto/storage/goog4_request\n" +
		"a652f613feb47d1aa905bc79f216e8346af99a5b9b2d10dba8a68b8fa5b9e028"

	refURL = "https://test-bucket.storage.googleapis.com/test.jpg" +
		"?X-Goog-Algorithm=GOOG4-RSA-SHA256" +
		"&X-Goog-Credential=uploader%40example-project.iam.gserviceaccount.com%2F20240115%2Fauto%2Fstorage%2Fgoog4_request" +
		"&X-Goog-Date=20240115T120000Z" +
		"&X-Goog-Expires=900" +
		"&X-Goog-Signature=00010203040506070001020304050607" +
		"&X-Goog-SignedHeaders=content-type%3Bhost"
)

var refTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// refSignature is the stub signature whose hex form appears in refURL.
var refSignature = []byte{0, 1, 2, 3, 4, 5, 6, 7, 0, 1, 2, 3, 4, 5, 6, 7}

// mockBlobSigner is a mock implementation of signer.BlobSigner.
type mockBlobSigner struct {
	mock.Mock
}

func (m *mockBlobSigner) SignBlob(ctx context.Context, identity string, payload []byte) ([]byte, error) {
	args := m.Called(ctx, identity, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// mockIssuanceRepo is a mock implementation of repository.IssuanceRepository.
type mockIssuanceRepo struct {
	mock.Mock
}

func (m *mockIssuanceRepo) Create(ctx context.Context, issuance *repository.Issuance) error {
	args := m.Called(ctx, issuance)
	return args.Error(0)
}

func (m *mockIssuanceRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Issuance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Issuance), args.Error(1)
}

func (m *mockIssuanceRepo) ListRecent(ctx context.Context, limit int) ([]*repository.Issuance, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Issuance), args.Error(1)
}

func (m *mockIssuanceRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockIssuanceRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService(blobSigner *mockBlobSigner, issuances repository.IssuanceRepository) *SignService {
	svc := NewSignService(SignServiceConfig{
		Signer:         blobSigner,
		Issuances:      issuances,
		Bucket:         refBucket,
		SignerIdentity: refIdentity,
		DefaultExpiry:  15 * time.Minute,
		Logger:         zerolog.Nop(),
	})
	svc.now = func() time.Time { return refTime }
	return svc
}

func TestCreateUploadURLReference(t *testing.T) {
	blobSigner := &mockBlobSigner{}
	blobSigner.On("SignBlob", mock.Anything, refIdentity, []byte(refStringToSign)).
		Return(refSignature, nil)

	issuances := &mockIssuanceRepo{}
	issuances.On("Create", mock.Anything, mock.MatchedBy(func(i *repository.Issuance) bool {
		return i.Bucket == refBucket &&
			i.BlobName == refBlob &&
			i.Method == "PUT" &&
			i.Backend == BackendGCS &&
			i.ExpiresAt.Equal(refTime.Add(15*time.Minute))
	})).Return(nil)

	svc := newTestService(blobSigner, issuances)

	output, err := svc.CreateUploadURL(context.Background(), CreateUploadURLInput{
		Filename:    refBlob,
		ContentType: "image/jpeg",
		Expiry:      15 * time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, refURL, output.URL)
	require.Equal(t, "PUT", output.Method)
	require.Equal(t, refBlob, output.BlobName)
	require.Equal(t, "image/jpeg", output.ContentType)
	require.Equal(t, refTime.Add(15*time.Minute), output.ExpiresAt)

	blobSigner.AssertExpectations(t)
	issuances.AssertExpectations(t)
}

func TestCreateUploadURLSignerFailure(t *testing.T) {
	blobSigner := &mockBlobSigner{}
	blobSigner.On("SignBlob", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("signBlob: 403"))

	issuances := &mockIssuanceRepo{}

	svc := newTestService(blobSigner, issuances)

	output, err := svc.CreateUploadURL(context.Background(), CreateUploadURLInput{
		Filename:    refBlob,
		ContentType: "image/jpeg",
	})
	require.ErrorIs(t, err, ErrSigningFailed)
	require.Nil(t, output, "no URL-shaped result may exist on signing failure")

	issuances.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateUploadURLInvalidExpiration(t *testing.T) {
	blobSigner := &mockBlobSigner{}
	svc := newTestService(blobSigner, nil)

	for _, expiry := range []time.Duration{
		-time.Minute,
		500 * time.Millisecond,
		7*24*time.Hour + time.Second,
	} {
		_, err := svc.CreateUploadURL(context.Background(), CreateUploadURLInput{
			Filename: refBlob,
			Expiry:   expiry,
		})
		require.ErrorIs(t, err, ErrInvalidExpiration, "expiry %s", expiry)
	}

	blobSigner.AssertNotCalled(t, "SignBlob", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateUploadURLDefaults(t *testing.T) {
	blobSigner := &mockBlobSigner{}
	blobSigner.On("SignBlob", mock.Anything, refIdentity, mock.Anything).
		Return(refSignature, nil)

	svc := newTestService(blobSigner, nil)

	output, err := svc.CreateUploadURL(context.Background(), CreateUploadURLInput{})
	require.NoError(t, err)

	require.Regexp(t, regexp.MustCompile(`^uploads/[0-9a-f]{32}\.jpg$`), output.BlobName)
	require.Equal(t, "application/octet-stream", output.ContentType)
	require.Equal(t, refTime.Add(15*time.Minute), output.ExpiresAt)
}

func TestCreateUploadURLGeneratedNamesAreUnique(t *testing.T) {
	blobSigner := &mockBlobSigner{}
	blobSigner.On("SignBlob", mock.Anything, refIdentity, mock.Anything).
		Return(refSignature, nil)

	svc := newTestService(blobSigner, nil)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		output, err := svc.CreateUploadURL(context.Background(), CreateUploadURLInput{})
		require.NoError(t, err)
		require.False(t, seen[output.BlobName], "blob name %s repeated", output.BlobName)
		seen[output.BlobName] = true
	}
}

func TestCreateUploadURLRejectsAbsolutePath(t *testing.T) {
	blobSigner := &mockBlobSigner{}
	svc := newTestService(blobSigner, nil)

	_, err := svc.CreateUploadURL(context.Background(), CreateUploadURLInput{
		Filename: "/etc/passwd",
	})
	require.ErrorIs(t, err, ErrInvalidFilename)
}

func TestCreateUploadURLAuditFailureDoesNotFailRequest(t *testing.T) {
	blobSigner := &mockBlobSigner{}
	blobSigner.On("SignBlob", mock.Anything, refIdentity, mock.Anything).
		Return(refSignature, nil)

	issuances := &mockIssuanceRepo{}
	issuances.On("Create", mock.Anything, mock.Anything).
		Return(errors.New("database unavailable"))

	svc := newTestService(blobSigner, issuances)

	output, err := svc.CreateUploadURL(context.Background(), CreateUploadURLInput{
		Filename:    refBlob,
		ContentType: "image/jpeg",
	})
	require.NoError(t, err, "audit log is best effort")
	require.NotEmpty(t, output.URL)
}

func TestIdentity(t *testing.T) {
	svc := newTestService(&mockBlobSigner{}, nil)

	identity := svc.Identity()
	require.Equal(t, BackendGCS, identity.Backend)
	require.Equal(t, refIdentity, identity.SignerIdentity)
	require.Equal(t, refBucket, identity.Bucket)
}
