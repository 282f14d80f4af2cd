// Package services contains the request-scoped orchestration of the sync
// engine. SyncService runs each Sync call as one atomic per-owner
// transaction over the entity store, the change journal and the device
// registry, then hands a change summary to the notifier after commit.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/antonkovalev/storysync/internal/common"
	"github.com/antonkovalev/storysync/internal/dbx"
	"github.com/antonkovalev/storysync/internal/logging"
	sc "github.com/antonkovalev/storysync/internal/server/config"
	"github.com/antonkovalev/storysync/internal/server/models"
	"github.com/antonkovalev/storysync/internal/server/repositories/repomanager"
	"github.com/antonkovalev/storysync/internal/server/resolver"
	"github.com/google/uuid"
)

// Notifier receives post-commit change summaries for fan-out to other
// devices. Implementations must never block the caller; a lost notification
// is fine, the missed device catches up on its next pull.
type Notifier interface {
	Notify(ownerID, excludingDeviceID string, summary models.ChangeSummary)
}

// NoopNotifier drops every notification. Sync stays correct with fan-out
// fully disabled; push is a latency optimization only.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ownerID, excludingDeviceID string, summary models.ChangeSummary) {}

// SyncRequest is one device's sync call after validation/decoding.
type SyncRequest struct {
	Device         models.Device
	LastSyncCursor int64
	EntityTypes    []string
	Changes        []*models.LocalChange
}

// SyncStats summarizes per-change outcomes of one call.
type SyncStats struct {
	TotalProcessed int
	Successful     int
	Conflicts      int

	// Errors counts changes that failed without being conflicts. Any
	// write failure aborts the whole call, so a committed response always
	// reports zero here; the field stays because the response shape
	// carries it.
	Errors int
}

// SyncResult is the outcome of one committed sync call.
type SyncResult struct {
	Cursor          int64
	DeviceID        string
	ServerChanges   []*models.JournalEntry
	Conflicts       []*models.Conflict
	Stats           SyncStats
	NextSyncAt      time.Time
	RealTimeEnabled bool
}

type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	notifier    Notifier
	logger      logging.Logger

	now func() time.Time
}

func NewSyncService(db *sql.DB, rm repomanager.RepositoryManager, cfg *sc.Config, n Notifier, l logging.Logger) *SyncService {
	if n == nil {
		n = NoopNotifier{}
	}
	return &SyncService{
		db:          db,
		repomanager: rm,
		config:      cfg,
		notifier:    n,
		logger:      l.With("module", "sync_service"),
		now:         time.Now,
	}
}

// validate rejects malformed requests before any write.
func (s *SyncService) validate(ownerID string, req *SyncRequest) error {
	if ownerID == "" {
		return fmt.Errorf("%w: empty owner id", common.ErrorValidation)
	}
	if req.Device.DeviceID == "" {
		return fmt.Errorf("%w: empty device id", common.ErrorValidation)
	}
	if req.LastSyncCursor < 0 {
		return fmt.Errorf("%w: negative cursor", common.ErrorValidation)
	}
	if len(req.Changes) > s.config.MaxBatchSize {
		return fmt.Errorf("%w: %d > %d", common.ErrTooManyChanges, len(req.Changes), s.config.MaxBatchSize)
	}
	for _, t := range req.EntityTypes {
		if _, ok := models.KnownEntityTypes[t]; !ok {
			return fmt.Errorf("%w: %q", common.ErrUnknownEntityType, t)
		}
	}
	for _, ch := range req.Changes {
		if _, ok := models.KnownEntityTypes[ch.EntityType]; !ok {
			return fmt.Errorf("%w: %q", common.ErrUnknownEntityType, ch.EntityType)
		}
		switch ch.Operation {
		case models.OpCreate:
			if ch.BaseVersion != 0 {
				return fmt.Errorf("%w: create must carry base version 0, got %d", common.ErrorValidation, ch.BaseVersion)
			}
		case models.OpUpdate, models.OpDelete:
			if ch.BaseVersion < 0 {
				return fmt.Errorf("%w: negative base version", common.ErrorValidation)
			}
		default:
			return fmt.Errorf("%w: %q", common.ErrUnknownOperation, ch.Operation)
		}
		if _, err := uuid.Parse(ch.EntityID); err != nil {
			return fmt.Errorf("%w: bad entity id %q", common.ErrorValidation, ch.EntityID)
		}
	}
	return nil
}

// Sync reconciles the submitted batch against the owner's stored state.
// The whole call commits atomically: on failure nothing is durable and the
// client retries the identical batch. Per-change conflicts are reported in
// the result, they never fail the call.
func (s *SyncService) Sync(ctx context.Context, ownerID string, req *SyncRequest) (*SyncResult, error) {
	if err := s.validate(ownerID, req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SyncCallTimeout)
	defer cancel()

	receivedAt := s.now().UTC()

	result := &SyncResult{
		DeviceID: req.Device.DeviceID,
		Stats:    SyncStats{TotalProcessed: len(req.Changes)},
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entityRepo := s.repomanager.Entities(tx)
		journalRepo := s.repomanager.Journal(tx)
		ownerRepo := s.repomanager.Owners(tx)
		deviceRepo := s.repomanager.Devices(tx)

		// Writing calls for one owner serialize on the owner row before
		// any entity is read. Under read-committed, resolving against an
		// unlocked read would let two concurrent calls both see the same
		// version and the later commit silently overwrite the earlier one.
		if len(req.Changes) > 0 {
			if err := ownerRepo.Lock(ctx, ownerID); err != nil {
				return err
			}
		}

		// Sequence range produced by this call, used below to keep the
		// caller from receiving its own writes echoed back.
		var appliedLo, appliedHi int64

		for _, ch := range req.Changes {
			ch.OriginDeviceID = req.Device.DeviceID

			current, err := entityRepo.Get(ctx, ownerID, ch.EntityType, ch.EntityID)
			if err != nil {
				if !errors.Is(err, common.ErrorNotFound) {
					return err
				}
				current = nil
			}

			out := resolver.Resolve(current, ch, receivedAt)

			if !out.Accepted {
				result.Stats.Conflicts++
				result.Conflicts = append(result.Conflicts, &models.Conflict{
					EntityType:    ch.EntityType,
					EntityID:      ch.EntityID,
					ClientChange:  ch,
					ServerVersion: versionOf(current),
					Resolution:    out.Resolution,
					Reason:        out.Reason,
					Authoritative: out.Authoritative,
				})
				continue
			}

			seq, err := ownerRepo.NextJournalSeq(ctx, ownerID)
			if err != nil {
				return err
			}

			entity := &models.Entity{
				OwnerID:         ownerID,
				EntityType:      ch.EntityType,
				EntityID:        ch.EntityID,
				Version:         out.NewVersion,
				Payload:         ch.Payload,
				UpdatedAt:       receivedAt,
				UpdatedByDevice: req.Device.DeviceID,
				Deleted:         ch.Operation == models.OpDelete,
			}
			if entity.Deleted {
				entity.Payload = nil
			}

			if err := entityRepo.Upsert(ctx, entity); err != nil {
				return err
			}
			if err := journalRepo.Append(ctx, &models.JournalEntry{
				OwnerID:          ownerID,
				Sequence:         seq,
				EntityType:       ch.EntityType,
				EntityID:         ch.EntityID,
				ResultingVersion: out.NewVersion,
				Operation:        ch.Operation,
				ServerTimestamp:  receivedAt,
				OriginDeviceID:   req.Device.DeviceID,
			}); err != nil {
				return err
			}

			if appliedLo == 0 {
				appliedLo = seq
			}
			appliedHi = seq
			result.Stats.Successful++

			if out.Resolution == models.ResolutionClientWins {
				result.Conflicts = append(result.Conflicts, &models.Conflict{
					EntityType:    ch.EntityType,
					EntityID:      ch.EntityID,
					ClientChange:  ch,
					ServerVersion: versionOf(current),
					Resolution:    out.Resolution,
					Reason:        out.Reason,
				})
			}
		}

		entries, err := journalRepo.Since(ctx, ownerID, req.LastSyncCursor, req.EntityTypes)
		if err != nil {
			return err
		}

		// The cursor only advances over a contiguous run of sequences
		// starting right after the client's cursor. Committed sequences
		// are gap-free, so with an entity type filter active the first
		// missing sequence marks an entry of an excluded type; skipping
		// past it would lose that entry for a later unfiltered pull.
		// Entries beyond such a hole are still returned and re-delivered
		// until the hole is consumed without the filter.
		newCursor := req.LastSyncCursor
		advance := true
		for _, e := range entries {
			if advance && e.Sequence != newCursor+1 {
				advance = false
			}
			if advance {
				newCursor = e.Sequence
			}
			// Skip the writes this very call just applied for this device;
			// older entries from the same device are still returned so a
			// device that lost its cursor can rebuild.
			if e.OriginDeviceID == req.Device.DeviceID && e.Sequence >= appliedLo && e.Sequence <= appliedHi && appliedLo != 0 {
				continue
			}
			result.ServerChanges = append(result.ServerChanges, e)
		}
		result.Cursor = newCursor

		device := req.Device
		device.OwnerID = ownerID
		device.LastAckCursor = newCursor
		device.LastSeenAt = receivedAt
		return deviceRepo.Touch(ctx, &device)
	})
	if err != nil {
		if dbx.IsUnavailable(err) {
			return nil, fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("sync transaction failed: %w", err)
	}

	result.RealTimeEnabled = req.Device.Capabilities.SupportsRealTime
	result.NextSyncAt = receivedAt.Add(s.config.SyncInterval)
	if result.Stats.Conflicts > 0 {
		result.NextSyncAt = receivedAt.Add(s.config.ConflictRetryInterval)
	}

	// Fan-out only after the transaction committed, never awaited.
	if result.Stats.Successful > 0 {
		s.notifier.Notify(ownerID, req.Device.DeviceID, models.ChangeSummary{
			OwnerID:     ownerID,
			NewCursor:   result.Cursor,
			Changes:     result.Stats.Successful,
			EntityTypes: changedTypes(req.Changes),
		})
		s.logger.Debug(ctx, "changes committed",
			"owner_id", ownerID, "device_id", req.Device.DeviceID,
			"applied", result.Stats.Successful, "cursor", result.Cursor)
	}

	return result, nil
}

// ActiveDevices lists the owner's devices seen within the staleness window.
// Plain read outside any transaction.
func (s *SyncService) ActiveDevices(ctx context.Context, ownerID string) ([]*models.Device, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: empty owner id", common.ErrorValidation)
	}
	return s.repomanager.Devices(s.db).ListActive(ctx, ownerID, s.config.DeviceStalenessWindow)
}

func versionOf(e *models.Entity) int64 {
	if e == nil {
		return 0
	}
	return e.Version
}

func changedTypes(changes []*models.LocalChange) []string {
	seen := map[string]struct{}{}
	var types []string
	for _, ch := range changes {
		if _, ok := seen[ch.EntityType]; ok {
			continue
		}
		seen[ch.EntityType] = struct{}{}
		types = append(types, ch.EntityType)
	}
	return types
}
