package models

import "time"

// DeviceCapabilities are optional feature flags reported by a device on
// every sync call.
type DeviceCapabilities struct {
	SupportsRealTime bool `json:"supports_real_time"`
	SupportsFileSync bool `json:"supports_file_sync"`
	MaxBatchSize     int  `json:"max_batch_size"`
}

// Device is one known client installation of an owner. Upserted on every
// sync call; never auto-deleted, only skipped for fan-out once stale.
type Device struct {
	OwnerID       string
	DeviceID      string
	DeviceName    string
	DeviceType    string
	AppVersion    string
	LastAckCursor int64
	Capabilities  DeviceCapabilities
	LastSeenAt    time.Time
}
