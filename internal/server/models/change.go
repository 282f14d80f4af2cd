package models

import (
	"encoding/json"
	"time"
)

// Operations a client may submit.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// LocalChange is one mutation submitted by a device. BaseVersion is the
// entity version the client believes it is editing (0 for create).
// ClientTimestamp is informational only; conflict resolution never trusts
// client clocks.
type LocalChange struct {
	EntityType      string
	EntityID        string
	Operation       string
	Payload         json.RawMessage
	BaseVersion     int64
	ClientTimestamp time.Time
	OriginDeviceID  string
}
