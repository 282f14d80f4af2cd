package models

import (
	"encoding/json"
	"time"
)

// JournalEntry is one accepted mutation in the per-owner change journal.
// Sequence is a per-owner monotonic cursor value, strictly increasing and
// gap-free among committed entries. Entries are immutable once written;
// corrections are new entries.
type JournalEntry struct {
	OwnerID          string
	Sequence         int64
	EntityType       string
	EntityID         string
	ResultingVersion int64
	Operation        string
	ServerTimestamp  time.Time
	OriginDeviceID   string

	// Latest entity state joined in for the response path. Payload is nil
	// for tombstoned entities.
	Payload json.RawMessage
	Deleted bool
}
