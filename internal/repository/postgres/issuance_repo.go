package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/fletcher-signer/internal/repository"
)

// issuanceRepository implements repository.IssuanceRepository for PostgreSQL.
type issuanceRepository struct {
	db *DB
}

// NewIssuanceRepository creates a new PostgreSQL issuance repository.
func NewIssuanceRepository(db *DB) repository.IssuanceRepository {
	return &issuanceRepository{db: db}
}

// Create records a new issuance.
func (r *issuanceRepository) Create(ctx context.Context, issuance *repository.Issuance) error {
	query := `
		INSERT INTO issuances (id, bucket, blob_name, method, content_type, signer_identity, backend, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		issuance.ID,
		issuance.Bucket,
		issuance.BlobName,
		issuance.Method,
		issuance.ContentType,
		issuance.SignerIdentity,
		issuance.Backend,
		issuance.IssuedAt.UTC(),
		issuance.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert issuance: %w", err)
	}

	return nil
}

// GetByID retrieves an issuance by ID.
func (r *issuanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.Issuance, error) {
	query := `
		SELECT id, bucket, blob_name, method, content_type, signer_identity, backend, issued_at, expires_at
		FROM issuances
		WHERE id = $1
	`

	issuance := &repository.Issuance{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&issuance.ID,
		&issuance.Bucket,
		&issuance.BlobName,
		&issuance.Method,
		&issuance.ContentType,
		&issuance.SignerIdentity,
		&issuance.Backend,
		&issuance.IssuedAt,
		&issuance.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get issuance: %w", err)
	}

	return issuance, nil
}

// ListRecent returns the most recent issuances, newest first.
func (r *issuanceRepository) ListRecent(ctx context.Context, limit int) ([]*repository.Issuance, error) {
	query := `
		SELECT id, bucket, blob_name, method, content_type, signer_identity, backend, issued_at, expires_at
		FROM issuances
		ORDER BY issued_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list issuances: %w", err)
	}
	defer rows.Close()

	var issuances []*repository.Issuance
	for rows.Next() {
		issuance := &repository.Issuance{}
		err := rows.Scan(
			&issuance.ID,
			&issuance.Bucket,
			&issuance.BlobName,
			&issuance.Method,
			&issuance.ContentType,
			&issuance.SignerIdentity,
			&issuance.Backend,
			&issuance.IssuedAt,
			&issuance.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issuance: %w", err)
		}
		issuances = append(issuances, issuance)
	}

	return issuances, rows.Err()
}

// CountSince returns the number of issuances since the given time.
func (r *issuanceRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM issuances WHERE issued_at >= $1`,
		since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count issuances: %w", err)
	}

	return count, nil
}

// DeleteOlderThan deletes records issued before the cutoff.
func (r *issuanceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM issuances WHERE issued_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old issuances: %w", err)
	}

	return tag.RowsAffected(), nil
}
