// Package journal provides the PostgreSQL-backed append-only change journal.
// The per-owner sequence is the sole source of truth for event ordering;
// entries are never revised, corrections are new entries.
package journal

import (
	"context"
	"fmt"

	"github.com/antonkovalev/storysync/internal/dbx"
	"github.com/antonkovalev/storysync/internal/server/models"
)

// PostgresRepository implements journal storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one journal entry.
func (r *PostgresRepository) Append(ctx context.Context, entry *models.JournalEntry) error {
	query := `
		INSERT INTO journal (owner_id, sequence, entity_type, entity_id, resulting_version, operation, server_timestamp, origin_device_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query,
		entry.OwnerID, entry.Sequence, entry.EntityType, entry.EntityID,
		entry.ResultingVersion, entry.Operation, entry.ServerTimestamp, entry.OriginDeviceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Since is a pure range read over (owner_id, sequence), safe to run
// concurrently with Append. Each entry carries the latest entity payload so
// the response path never needs a second round trip.
func (r *PostgresRepository) Since(ctx context.Context, ownerID string, cursor int64, entityTypes []string) ([]*models.JournalEntry, error) {
	query := `
		SELECT j.owner_id, j.sequence, j.entity_type, j.entity_id, j.resulting_version,
		       j.operation, j.server_timestamp, j.origin_device_id,
		       e.payload, COALESCE(e.deleted, FALSE)
		FROM journal j
		LEFT JOIN entities e
		  ON e.owner_id = j.owner_id AND e.entity_type = j.entity_type AND e.entity_id = j.entity_id
		WHERE j.owner_id = $1 AND j.sequence > $2
		  AND (cardinality($3::text[]) = 0 OR j.entity_type = ANY($3::text[]))
		ORDER BY j.sequence
	`
	if entityTypes == nil {
		entityTypes = []string{}
	}
	rows, err := r.db.QueryContext(ctx, query, ownerID, cursor, entityTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to select journal entries: %w", err)
	}
	defer rows.Close()

	var result []*models.JournalEntry
	for rows.Next() {
		var item models.JournalEntry
		var payload []byte
		if err := rows.Scan(
			&item.OwnerID, &item.Sequence, &item.EntityType, &item.EntityID,
			&item.ResultingVersion, &item.Operation, &item.ServerTimestamp,
			&item.OriginDeviceID, &payload, &item.Deleted,
		); err != nil {
			return nil, err
		}
		item.Payload = payload
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
