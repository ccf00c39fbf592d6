package cache

import (
	"context"
	"errors"
	"fmt"
)

type backupEntry struct {
	loc     Location
	payload []byte
	existed bool
}

// Backup is a scoped capture of cache entries about to be overwritten. While
// armed, the transport calls Capture before each overwrite; only the earliest
// prior state per location is kept, so restoring returns the store to its
// state before the first overwrite of that location.
type Backup struct {
	store    Store
	entries  []backupEntry
	captured map[Location]struct{}
	release  func()
	stopped  bool
}

// NewBackup creates an armed backup over the given store. The release
// callback runs exactly once when the backup is stopped.
func NewBackup(store Store, release func()) *Backup {
	return &Backup{
		store:    store,
		captured: make(map[Location]struct{}),
		release:  release,
	}
}

// Capture records the current entry at loc before it is overwritten. A
// location already captured in this backup is left untouched. A location with
// no current entry is recorded as absent, so restoring deletes whatever was
// written there afterwards.
func (b *Backup) Capture(ctx context.Context, loc Location) error {
	if _, ok := b.captured[loc]; ok {
		return nil
	}
	payload, err := b.store.Lookup(ctx, loc)
	switch {
	case err == nil:
		b.entries = append(b.entries, backupEntry{loc: loc, payload: payload, existed: true})
	case errors.Is(err, ErrEntryNotFound):
		b.entries = append(b.entries, backupEntry{loc: loc})
	default:
		return err
	}
	b.captured[loc] = struct{}{}
	return nil
}

// Len returns the number of captured locations.
func (b *Backup) Len() int {
	return len(b.entries)
}

// Restore writes the captured prior state of a single location back to the
// store. Restoring a location this backup never captured returns
// ErrNothingToRestore.
func (b *Backup) Restore(ctx context.Context, loc Location) error {
	for _, e := range b.entries {
		if e.loc == loc {
			return b.restore(ctx, e)
		}
	}
	return fmt.Errorf("%w: %s", ErrNothingToRestore, loc)
}

// RestoreAll rolls back every captured location, last captured first.
func (b *Backup) RestoreAll(ctx context.Context) error {
	for i := len(b.entries) - 1; i >= 0; i-- {
		if err := b.restore(ctx, b.entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backup) restore(ctx context.Context, e backupEntry) error {
	if !e.existed {
		err := b.store.Delete(ctx, e.loc)
		if err != nil && !errors.Is(err, ErrEntryNotFound) {
			return err
		}
		return nil
	}
	return b.store.Store(ctx, e.loc, e.payload)
}

// Stop disarms capture. Calling Stop more than once is harmless, so a
// deferred Stop pairs safely with an explicit one.
func (b *Backup) Stop() {
	if b.stopped {
		return
	}
	b.stopped = true
	if b.release != nil {
		b.release()
	}
}
