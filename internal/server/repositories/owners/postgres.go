// Package owners provides the per-owner bookkeeping row, currently just the
// journal sequence counter.
package owners

import (
	"context"
	"fmt"

	"github.com/antonkovalev/storysync/internal/dbx"
)

// PostgresRepository implements the owner counter over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Lock upserts the owner row without changing it, which takes the row
// lock until the surrounding transaction ends.
func (r *PostgresRepository) Lock(ctx context.Context, ownerID string) error {
	query := `
		INSERT INTO owners (owner_id, journal_seq)
		VALUES ($1, 0)
		ON CONFLICT (owner_id)
		DO UPDATE SET journal_seq = owners.journal_seq
	`
	if _, err := r.db.ExecContext(ctx, query, ownerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// NextJournalSeq increments and returns the owner's journal counter,
// creating the owner row on first use.
func (r *PostgresRepository) NextJournalSeq(ctx context.Context, ownerID string) (int64, error) {
	query := `
		INSERT INTO owners (owner_id, journal_seq)
		VALUES ($1, 1)
		ON CONFLICT (owner_id)
		DO UPDATE SET journal_seq = owners.journal_seq + 1
		RETURNING journal_seq
	`
	var seq int64
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}
