package entities

import (
	"context"

	"github.com/antonkovalev/storysync/internal/server/models"
)

type Repository interface {
	// Get returns the stored entity (tombstones included) or
	// common.ErrorNotFound when no row exists.
	Get(ctx context.Context, ownerID, entityType, entityID string) (*models.Entity, error)

	// Upsert writes the full entity state, inserting or replacing the row.
	Upsert(ctx context.Context, entity *models.Entity) error
}
