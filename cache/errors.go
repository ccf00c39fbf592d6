package cache

import (
	"errors"
	"fmt"
)

// ValidationError reports an invalid backend configuration.
type ValidationError struct {
	Reason string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("creation of cache failed for reason : %s", ve.Reason)
}

var (
	// ErrEntryNotFound is returned by Store implementations when no entry
	// exists at the requested location.
	ErrEntryNotFound = errors.New("no entry at cache location")

	// ErrNothingToRestore is returned when a restore is requested for a
	// location the backup never captured.
	ErrNothingToRestore = errors.New("nothing to restore for cache location")
)
