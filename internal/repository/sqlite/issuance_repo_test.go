package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/fletcher-signer/internal/repository"
)

func newTestRepo(t *testing.T) repository.IssuanceRepository {
	t.Helper()

	db, err := NewDB(context.Background(), DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))

	return NewIssuanceRepository(db)
}

func newTestIssuance(blobName string, issuedAt time.Time) *repository.Issuance {
	return &repository.Issuance{
		ID:             uuid.New(),
		Bucket:         "test-bucket",
		BlobName:       blobName,
		Method:         "PUT",
		ContentType:    "image/jpeg",
		SignerIdentity: "uploader@example-project.iam.gserviceaccount.com",
		Backend:        "gcs",
		IssuedAt:       issuedAt,
		ExpiresAt:      issuedAt.Add(15 * time.Minute),
	}
}

func TestIssuanceCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	issuedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	issuance := newTestIssuance("uploads/abc.jpg", issuedAt)

	require.NoError(t, repo.Create(ctx, issuance))

	got, err := repo.GetByID(ctx, issuance.ID)
	require.NoError(t, err)
	require.Equal(t, issuance.ID, got.ID)
	require.Equal(t, "test-bucket", got.Bucket)
	require.Equal(t, "uploads/abc.jpg", got.BlobName)
	require.Equal(t, "PUT", got.Method)
	require.Equal(t, "image/jpeg", got.ContentType)
	require.Equal(t, "gcs", got.Backend)
	require.True(t, got.IssuedAt.Equal(issuedAt))
	require.True(t, got.ExpiresAt.Equal(issuedAt.Add(15*time.Minute)))
}

func TestIssuanceGetByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIssuanceCreateDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	issuance := newTestIssuance("uploads/dup.jpg", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, issuance))
	require.ErrorIs(t, repo.Create(ctx, issuance), repository.ErrDuplicate)
}

func TestIssuanceListRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		issuance := newTestIssuance("uploads/list.jpg", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, issuance))
	}

	records, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	require.True(t, records[0].IssuedAt.Equal(base.Add(4*time.Minute)))
	require.True(t, records[1].IssuedAt.Equal(base.Add(3*time.Minute)))
	require.True(t, records[2].IssuedAt.Equal(base.Add(2*time.Minute)))
}

func TestIssuanceCountSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(ctx, newTestIssuance("uploads/count.jpg", base.Add(time.Duration(i)*time.Hour))))
	}

	count, err := repo.CountSince(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestIssuanceDeleteOlderThan(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(ctx, newTestIssuance("uploads/del.jpg", base.Add(time.Duration(i)*time.Hour))))
	}

	deleted, err := repo.DeleteOlderThan(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	count, err := repo.CountSince(ctx, base)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}
