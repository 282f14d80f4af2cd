package httpapi

import (
	"encoding/json"
	"time"

	"github.com/antonkovalev/storysync/internal/server/models"
	"github.com/antonkovalev/storysync/internal/server/services"
)

// Wire types of the sync protocol. Field names are the protocol contract;
// internal models never leak into responses directly.

type deviceDTO struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name,omitempty"`
	DeviceType string `json:"device_type"`
	AppVersion string `json:"app_version,omitempty"`
}

type changeDTO struct {
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Operation       string          `json:"operation"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	BaseVersion     int64           `json:"base_version"`
	ClientTimestamp time.Time       `json:"client_timestamp"`
}

type syncRequestDTO struct {
	Device         deviceDTO                  `json:"device"`
	LastSyncCursor int64                      `json:"last_sync_cursor"`
	EntityTypes    []string                   `json:"entity_types,omitempty"`
	Changes        []changeDTO                `json:"changes"`
	Capabilities   *models.DeviceCapabilities `json:"capabilities,omitempty"`
}

type serverChangeDTO struct {
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Operation       string          `json:"operation"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Version         int64           `json:"version"`
	Sequence        int64           `json:"sequence"`
	ServerTimestamp time.Time       `json:"server_timestamp"`
	Deleted         bool            `json:"deleted,omitempty"`
}

type entityDTO struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Version    int64           `json:"version"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Deleted    bool            `json:"deleted"`
}

type conflictDTO struct {
	EntityType          string     `json:"entity_type"`
	EntityID            string     `json:"entity_id"`
	Resolution          string     `json:"resolution"`
	Reason              string     `json:"reason,omitempty"`
	ServerVersion       int64      `json:"server_version"`
	AuthoritativeEntity *entityDTO `json:"authoritative_entity,omitempty"`
}

type syncStatusDTO struct {
	TotalProcessed int `json:"total_processed"`
	Successful     int `json:"successful"`
	Conflicts      int `json:"conflicts"`
	Errors         int `json:"errors"`
}

type syncResponseDTO struct {
	SyncCursor            int64             `json:"sync_cursor"`
	DeviceID              string            `json:"device_id"`
	ServerChanges         []serverChangeDTO `json:"server_changes"`
	Conflicts             []conflictDTO     `json:"conflicts"`
	SyncStatus            syncStatusDTO     `json:"sync_status"`
	NextSyncRecommendedAt time.Time         `json:"next_sync_recommended_at"`
	RealTimeEnabled       bool              `json:"real_time_enabled"`
}

type deviceInfoDTO struct {
	DeviceID      string    `json:"device_id"`
	DeviceName    string    `json:"device_name,omitempty"`
	DeviceType    string    `json:"device_type"`
	AppVersion    string    `json:"app_version,omitempty"`
	LastAckCursor int64     `json:"last_ack_cursor"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

type devicesResponseDTO struct {
	Devices []deviceInfoDTO `json:"devices"`
}

type uploadURLResponseDTO struct {
	StorageKey string `json:"storage_key"`
	UploadURL  string `json:"upload_url"`
}

type downloadURLResponseDTO struct {
	DownloadURL string `json:"download_url"`
}

type errorResponseDTO struct {
	Error string `json:"error"`
}

func toDevicesDTO(devices []*models.Device) *devicesResponseDTO {
	out := &devicesResponseDTO{Devices: []deviceInfoDTO{}}
	for _, d := range devices {
		out.Devices = append(out.Devices, deviceInfoDTO{
			DeviceID:      d.DeviceID,
			DeviceName:    d.DeviceName,
			DeviceType:    d.DeviceType,
			AppVersion:    d.AppVersion,
			LastAckCursor: d.LastAckCursor,
			LastSeenAt:    d.LastSeenAt,
		})
	}
	return out
}

func toServiceRequest(req *syncRequestDTO) *services.SyncRequest {
	out := &services.SyncRequest{
		Device: models.Device{
			DeviceID:   req.Device.DeviceID,
			DeviceName: req.Device.DeviceName,
			DeviceType: req.Device.DeviceType,
			AppVersion: req.Device.AppVersion,
		},
		LastSyncCursor: req.LastSyncCursor,
		EntityTypes:    req.EntityTypes,
	}
	if req.Capabilities != nil {
		out.Device.Capabilities = *req.Capabilities
	}
	for _, ch := range req.Changes {
		out.Changes = append(out.Changes, &models.LocalChange{
			EntityType:      ch.EntityType,
			EntityID:        ch.EntityID,
			Operation:       ch.Operation,
			Payload:         ch.Payload,
			BaseVersion:     ch.BaseVersion,
			ClientTimestamp: ch.ClientTimestamp,
		})
	}
	return out
}

func toResponseDTO(res *services.SyncResult) *syncResponseDTO {
	out := &syncResponseDTO{
		SyncCursor:            res.Cursor,
		DeviceID:              res.DeviceID,
		ServerChanges:         []serverChangeDTO{},
		Conflicts:             []conflictDTO{},
		NextSyncRecommendedAt: res.NextSyncAt,
		RealTimeEnabled:       res.RealTimeEnabled,
		SyncStatus: syncStatusDTO{
			TotalProcessed: res.Stats.TotalProcessed,
			Successful:     res.Stats.Successful,
			Conflicts:      res.Stats.Conflicts,
			Errors:         res.Stats.Errors,
		},
	}
	for _, e := range res.ServerChanges {
		out.ServerChanges = append(out.ServerChanges, serverChangeDTO{
			EntityType:      e.EntityType,
			EntityID:        e.EntityID,
			Operation:       e.Operation,
			Payload:         e.Payload,
			Version:         e.ResultingVersion,
			Sequence:        e.Sequence,
			ServerTimestamp: e.ServerTimestamp,
			Deleted:         e.Deleted,
		})
	}
	for _, c := range res.Conflicts {
		dto := conflictDTO{
			EntityType:    c.EntityType,
			EntityID:      c.EntityID,
			Resolution:    c.Resolution,
			Reason:        c.Reason,
			ServerVersion: c.ServerVersion,
		}
		if c.Authoritative != nil {
			dto.AuthoritativeEntity = &entityDTO{
				EntityType: c.Authoritative.EntityType,
				EntityID:   c.Authoritative.EntityID,
				Version:    c.Authoritative.Version,
				Payload:    c.Authoritative.Payload,
				UpdatedAt:  c.Authoritative.UpdatedAt,
				Deleted:    c.Authoritative.Deleted,
			}
		}
		out.Conflicts = append(out.Conflicts, dto)
	}
	return out
}
