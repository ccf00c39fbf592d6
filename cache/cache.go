// Package cache defines the storage contract shared by all cache backends:
// response payloads addressed by a deterministic Location derived from the
// request URL.
package cache

import "context"

// Location is a cache address derived from a request URL. It is a
// slash-separated relative path, so the filesystem store uses it as a file
// path and the database stores use it as a primary key.
type Location string

// Store persists response payloads addressed by Location. Implementations
// store the payload bytes only; response headers and cookies are never
// persisted.
//
// Stores perform no internal locking beyond what their backing medium
// requires. Callers sharing one store across goroutines must serialize
// access themselves.
type Store interface {
	// Lookup returns the payload stored at loc, or ErrEntryNotFound.
	Lookup(ctx context.Context, loc Location) ([]byte, error)
	// Store writes the payload at loc, overwriting any existing entry.
	Store(ctx context.Context, loc Location, payload []byte) error
	// Delete removes the entry at loc. It returns ErrEntryNotFound if no
	// entry exists there.
	Delete(ctx context.Context, loc Location) error
}
