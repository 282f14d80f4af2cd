// Package entities provides the PostgreSQL-backed versioned entity store.
// Deleted entities stay behind as tombstones; rows are only ever removed by
// an external retention job.
package entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/antonkovalev/storysync/internal/common"
	"github.com/antonkovalev/storysync/internal/dbx"
	"github.com/antonkovalev/storysync/internal/server/models"
)

// PostgresRepository implements entity storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the latest stored state of one entity, tombstones included.
func (r *PostgresRepository) Get(ctx context.Context, ownerID, entityType, entityID string) (*models.Entity, error) {
	query := `
		SELECT owner_id, entity_type, entity_id, version, payload, updated_at, updated_by_device, deleted
		FROM entities
		WHERE owner_id = $1 AND entity_type = $2 AND entity_id = $3
	`
	e := &models.Entity{}
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, ownerID, entityType, entityID).Scan(
		&e.OwnerID, &e.EntityType, &e.EntityID, &e.Version, &payload,
		&e.UpdatedAt, &e.UpdatedByDevice, &e.Deleted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	e.Payload = payload
	return e, nil
}

// Upsert writes the entity state by primary key.
func (r *PostgresRepository) Upsert(ctx context.Context, entity *models.Entity) error {
	query := `
		INSERT INTO entities (owner_id, entity_type, entity_id, version, payload, updated_at, updated_by_device, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id, entity_type, entity_id)
		DO UPDATE SET
			version = EXCLUDED.version,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at,
			updated_by_device = EXCLUDED.updated_by_device,
			deleted = EXCLUDED.deleted;
	`
	res, err := r.db.ExecContext(ctx, query,
		entity.OwnerID, entity.EntityType, entity.EntityID, entity.Version,
		[]byte(entity.Payload), entity.UpdatedAt, entity.UpdatedByDevice, entity.Deleted)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}
