package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/fletcher-signer/internal/repository"
)

// issuanceRepository implements repository.IssuanceRepository for SQLite.
type issuanceRepository struct {
	db *DB
}

// NewIssuanceRepository creates a new SQLite issuance repository.
func NewIssuanceRepository(db *DB) repository.IssuanceRepository {
	return &issuanceRepository{db: db}
}

// Create records a new issuance.
func (r *issuanceRepository) Create(ctx context.Context, issuance *repository.Issuance) error {
	query := `
		INSERT INTO issuances (id, bucket, blob_name, method, content_type, signer_identity, backend, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.db.ExecContext(ctx, query,
		issuance.ID.String(),
		issuance.Bucket,
		issuance.BlobName,
		issuance.Method,
		issuance.ContentType,
		issuance.SignerIdentity,
		issuance.Backend,
		issuance.IssuedAt.UTC().Format(time.RFC3339),
		issuance.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to insert issuance: %w", err)
	}

	return nil
}

// GetByID retrieves an issuance by ID.
func (r *issuanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*repository.Issuance, error) {
	query := `
		SELECT id, bucket, blob_name, method, content_type, signer_identity, backend, issued_at, expires_at
		FROM issuances
		WHERE id = ?
	`

	issuance, err := scanIssuance(r.db.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if isNoRows(err) {
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
		LIMIT ?
	`

	rows, err := r.db.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list issuances: %w", err)
	}
	defer rows.Close()

	var issuances []*repository.Issuance
	for rows.Next() {
		issuance, err := scanIssuance(rows)
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
	err := r.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issuances WHERE issued_at >= ?`,
		since.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count issuances: %w", err)
	}

	return count, nil
}

// DeleteOlderThan deletes records issued before the cutoff.
func (r *issuanceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.db.ExecContext(ctx,
		`DELETE FROM issuances WHERE issued_at < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old issuances: %w", err)
	}

	return result.RowsAffected()
}

// scanner abstracts sql.Row and sql.Rows for scanIssuance.
type scanner interface {
	Scan(dest ...any) error
}

func scanIssuance(row scanner) (*repository.Issuance, error) {
	var (
		issuance  repository.Issuance
		id        string
		issuedAt  string
		expiresAt string
	)

	err := row.Scan(
		&id,
		&issuance.Bucket,
		&issuance.BlobName,
		&issuance.Method,
		&issuance.ContentType,
		&issuance.SignerIdentity,
		&issuance.Backend,
		&issuedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	if issuance.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid issuance id %q: %w", id, err)
	}
	if issuance.IssuedAt, err = time.Parse(time.RFC3339, issuedAt); err != nil {
		return nil, fmt.Errorf("invalid issued_at %q: %w", issuedAt, err)
	}
	if issuance.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("invalid expires_at %q: %w", expiresAt, err)
	}

	return &issuance, nil
}

// isUniqueViolation checks if an error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed: UNIQUE")
}

// isNoRows checks if an error indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
