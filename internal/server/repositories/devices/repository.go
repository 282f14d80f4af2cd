package devices

import (
	"context"
	"time"

	"github.com/antonkovalev/storysync/internal/server/models"
)

type Repository interface {
	// Touch upserts the device row, refreshing last_seen_at,
	// last_ack_cursor and capabilities.
	Touch(ctx context.Context, device *models.Device) error

	// ListActive returns devices whose last_seen_at falls within the
	// staleness window. Stale devices are skipped, never deleted.
	ListActive(ctx context.Context, ownerID string, window time.Duration) ([]*models.Device, error)
}
