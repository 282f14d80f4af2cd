package models

// Conflict resolutions.
const (
	ResolutionAccepted   = "accepted"
	ResolutionServerWins = "server_wins"
	ResolutionClientWins = "client_wins"
)

// Conflict reasons.
const (
	ReasonStaleBase  = "stale_base_version"
	ReasonNotFound   = "not_found"
	ReasonTombstone  = "deleted"
	ReasonDuplicate  = "duplicate_submission"
	ReasonDeleteWins = "delete_wins"
)

// Conflict reports one rejected or force-accepted change of a sync call.
// Transient: returned to the caller, never persisted — the journal is the
// durable record of what actually happened.
type Conflict struct {
	EntityType    string
	EntityID      string
	ClientChange  *LocalChange
	ServerVersion int64
	Resolution    string
	Reason        string

	// Authoritative is the stored entity the client should adopt when the
	// server side won. Nil when no row exists at all.
	Authoritative *Entity
}

// ChangeSummary is the payload pushed to other devices after a commit.
type ChangeSummary struct {
	OwnerID     string   `json:"owner_id"`
	NewCursor   int64    `json:"new_cursor"`
	Changes     int      `json:"changes"`
	EntityTypes []string `json:"entity_types,omitempty"`
}
