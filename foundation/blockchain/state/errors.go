package state

import (
	"errors"
	"fmt"
)

// SyncError is returned when a chain can't be pulled from a peer. The peer
// was unreachable, answered with a non-success status, sent a body that
// isn't a chain or, in strict mode, sent a chain that fails validation.
// These are recoverable, the caller decides to retry or not.
type SyncError struct {
	URL    string
	Status int
	Err    error
}

// Error implements the error interface.
func (se *SyncError) Error() string {
	if se.Status != 0 {
		return fmt.Sprintf("sync %s: status %d: %s", se.URL, se.Status, se.Err)
	}
	return fmt.Sprintf("sync %s: %s", se.URL, se.Err)
}

// Unwrap returns the underlying error.
func (se *SyncError) Unwrap() error {
	return se.Err
}

// Remote marks the failure as caused by the peer. Integrity and decode
// errors wrapped by a SyncError are never local corruption.
func (se *SyncError) Remote() bool {
	return true
}

// IsSyncError checks if an error of type SyncError exists.
func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}
