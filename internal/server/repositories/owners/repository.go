package owners

import "context"

type Repository interface {
	// Lock takes the owner's row lock, creating the row on first use.
	// Must be the first statement of a writing sync transaction, before
	// any entity read: the lock is held until commit or rollback, so
	// concurrent syncs of one owner queue here and every resolver
	// decision sees the latest committed entity version.
	Lock(ctx context.Context, ownerID string) error

	// NextJournalSeq allocates and returns the next journal sequence for
	// ownerID. Must run inside the sync call's transaction: an aborted
	// transaction rolls the counter back, so committed sequences stay
	// gap-free.
	NextJournalSeq(ctx context.Context, ownerID string) (int64, error)
}
