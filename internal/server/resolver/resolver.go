// Package resolver decides, for one incoming change against the stored
// entity state, whether to accept the change and at which new version, or to
// reject it as a conflict. Resolve is a pure function of its arguments: the
// same (current, change, receivedAt) triple always yields the same outcome,
// which is what makes whole-batch retries safe.
package resolver

import (
	"time"

	"github.com/antonkovalev/storysync/internal/server/models"
)

// Outcome is the resolver's verdict for one change.
type Outcome struct {
	Accepted   bool
	NewVersion int64

	// Resolution is "accepted" on the plain path, "client_wins" when a
	// stale change won last-write-wins, "server_wins" on rejection.
	Resolution string
	Reason     string

	// Authoritative is the stored entity returned to the client on
	// server_wins so it can reconcile. Nil when no row exists.
	Authoritative *models.Entity
}

// Resolve applies the conflict rules in order. receivedAt is the server's
// receipt time of the change; client clocks are never consulted.
//
//  1. create with no row or only a tombstone: accept. A fresh create starts
//     at version 1; recreating over a tombstone bumps from the tombstone
//     version so entity versions never move backwards.
//  2. non-create against a missing or tombstoned entity: NotFound conflict,
//     returning the tombstone when one exists. Deleting deleted data and
//     updating deleted data both land here, which is also the delete-wins
//     half that protects tombstones from resurrection.
//  3. base matches the stored version: accept unconditionally.
//  4. stale base, same device already produced version base+1: the client
//     is replaying an already-applied change; report server_wins without
//     re-applying so identical retries never double-journal.
//  5. stale delete against a live entity: delete wins regardless of
//     timestamps, accepted as client_wins bumping from the stored version.
//  6. any other stale change: last-write-wins on server receipt time.
//     A strict tie keeps the stored row, so re-resolving a loser can never
//     flip it into a winner.
func Resolve(current *models.Entity, change *models.LocalChange, receivedAt time.Time) Outcome {
	if change.Operation == models.OpCreate {
		if current == nil {
			return Outcome{Accepted: true, NewVersion: 1, Resolution: models.ResolutionAccepted}
		}
		if current.Deleted {
			return Outcome{Accepted: true, NewVersion: current.Version + 1, Resolution: models.ResolutionAccepted}
		}
		// Duplicate create against a live entity falls through to the
		// stale-base rules below.
	}

	if current == nil {
		return Outcome{
			Resolution: models.ResolutionServerWins,
			Reason:     models.ReasonNotFound,
		}
	}

	if current.Deleted && change.Operation != models.OpCreate {
		return Outcome{
			Resolution:    models.ResolutionServerWins,
			Reason:        models.ReasonTombstone,
			Authoritative: current,
		}
	}

	if change.BaseVersion == current.Version {
		return Outcome{Accepted: true, NewVersion: current.Version + 1, Resolution: models.ResolutionAccepted}
	}

	// Stale base from here on.

	if change.OriginDeviceID != "" &&
		change.OriginDeviceID == current.UpdatedByDevice &&
		current.Version == change.BaseVersion+1 {
		return Outcome{
			Resolution:    models.ResolutionServerWins,
			Reason:        models.ReasonDuplicate,
			Authoritative: current,
		}
	}

	if change.Operation == models.OpDelete {
		return Outcome{
			Accepted:   true,
			NewVersion: current.Version + 1,
			Resolution: models.ResolutionClientWins,
			Reason:     models.ReasonDeleteWins,
		}
	}

	if receivedAt.After(current.UpdatedAt) {
		return Outcome{
			Accepted:   true,
			NewVersion: current.Version + 1,
			Resolution: models.ResolutionClientWins,
			Reason:     models.ReasonStaleBase,
		}
	}

	return Outcome{
		Resolution:    models.ResolutionServerWins,
		Reason:        models.ReasonStaleBase,
		Authoritative: current,
	}
}
