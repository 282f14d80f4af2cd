// Package devices provides the PostgreSQL-backed device registry.
package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/antonkovalev/storysync/internal/dbx"
	"github.com/antonkovalev/storysync/internal/server/models"
)

// PostgresRepository implements the device registry over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Touch upserts the device record for (owner_id, device_id).
func (r *PostgresRepository) Touch(ctx context.Context, device *models.Device) error {
	caps, err := json.Marshal(device.Capabilities)
	if err != nil {
		return fmt.Errorf("capabilities marshal error: %w", err)
	}

	query := `
		INSERT INTO devices (owner_id, device_id, device_name, device_type, app_version, last_ack_cursor, capabilities, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id, device_id)
		DO UPDATE SET
			device_name = EXCLUDED.device_name,
			device_type = EXCLUDED.device_type,
			app_version = EXCLUDED.app_version,
			last_ack_cursor = EXCLUDED.last_ack_cursor,
			capabilities = EXCLUDED.capabilities,
			last_seen_at = EXCLUDED.last_seen_at;
	`
	if _, err := r.db.ExecContext(ctx, query,
		device.OwnerID, device.DeviceID, device.DeviceName, device.DeviceType,
		device.AppVersion, device.LastAckCursor, caps, device.LastSeenAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListActive returns devices seen within the staleness window.
func (r *PostgresRepository) ListActive(ctx context.Context, ownerID string, window time.Duration) ([]*models.Device, error) {
	query := `
		SELECT owner_id, device_id, device_name, device_type, app_version, last_ack_cursor, capabilities, last_seen_at
		FROM devices
		WHERE owner_id = $1 AND last_seen_at > $2
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to select devices: %w", err)
	}
	defer rows.Close()

	var result []*models.Device
	for rows.Next() {
		var item models.Device
		var caps []byte
		if err := rows.Scan(
			&item.OwnerID, &item.DeviceID, &item.DeviceName, &item.DeviceType,
			&item.AppVersion, &item.LastAckCursor, &caps, &item.LastSeenAt,
		); err != nil {
			return nil, err
		}
		if len(caps) > 0 {
			if err := json.Unmarshal(caps, &item.Capabilities); err != nil {
				return nil, fmt.Errorf("capabilities unmarshal error: %w", err)
			}
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
