// Package models holds the persistent and wire-level data structures of the
// sync engine: entities, submitted changes, journal entries, devices and
// per-call conflict reports.
package models

import (
	"encoding/json"
	"time"
)

// Entity type names accepted by the engine.
const (
	EntityTypeHero         = "hero"
	EntityTypeStory        = "story"
	EntityTypeCustomEvent  = "custom_event"
	EntityTypeIllustration = "illustration"
)

// KnownEntityTypes maps every accepted entity type to struct{}.
var KnownEntityTypes = map[string]struct{}{
	EntityTypeHero:         {},
	EntityTypeStory:        {},
	EntityTypeCustomEvent:  {},
	EntityTypeIllustration: {},
}

// Entity is the latest known state of one synchronized record.
// The key is (OwnerID, EntityType, EntityID); EntityID is a client-issued
// UUID that is never reassigned. Version strictly increases on every
// accepted mutation. Deleted rows are kept as tombstones so stale edits
// against removed data can still be detected.
type Entity struct {
	OwnerID         string
	EntityType      string
	EntityID        string
	Version         int64
	Payload         json.RawMessage
	UpdatedAt       time.Time
	UpdatedByDevice string
	Deleted         bool
}
