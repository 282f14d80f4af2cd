package journal

import (
	"context"

	"github.com/antonkovalev/storysync/internal/server/models"
)

type Repository interface {
	// Append writes one immutable journal entry. The sequence must already
	// be allocated via owners.NextJournalSeq inside the same transaction.
	Append(ctx context.Context, entry *models.JournalEntry) error

	// Since returns all committed entries with sequence > cursor in
	// ascending sequence order, each joined with the latest entity payload.
	// An empty entityTypes slice means no type filter.
	Since(ctx context.Context, ownerID string, cursor int64, entityTypes []string) ([]*models.JournalEntry, error)
}
