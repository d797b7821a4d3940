package database

import (
	"errors"
	"fmt"
)

// StorageError is returned when the chain storage can't be read or written.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (se *StorageError) Error() string {
	if se.Path == "" {
		return fmt.Sprintf("storage: %s: %s", se.Op, se.Err)
	}
	return fmt.Sprintf("storage: %s %s: %s", se.Op, se.Path, se.Err)
}

// Unwrap returns the underlying error.
func (se *StorageError) Unwrap() error {
	return se.Err
}

// DecodeError is returned when persisted or received block data is malformed.
// Source names the file or response the data came from.
type DecodeError struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (de *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", de.Source, de.Err)
}

// Unwrap returns the underlying error.
func (de *DecodeError) Unwrap() error {
	return de.Err
}

// ChainIntegrityError is returned when a sequence of blocks breaks the
// linkage rules. Index identifies the first offending block.
type ChainIntegrityError struct {
	Index  uint64
	Reason string
}

// Error implements the error interface.
func (ce *ChainIntegrityError) Error() string {
	return fmt.Sprintf("chain integrity: blk[%d]: %s", ce.Index, ce.Reason)
}

// remote is implemented by errors describing data received from another
// node. Integrity or decode failures wrapped by such an error are the
// peer's problem, not this node's.
type remote interface {
	Remote() bool
}

// IsLocalCorruption reports whether the error means the data this node has
// stored can't be trusted. These require an operator to intervene.
func IsLocalCorruption(err error) bool {
	var re remote
	if errors.As(err, &re) && re.Remote() {
		return false
	}

	var ce *ChainIntegrityError
	if errors.As(err, &ce) {
		return true
	}

	var de *DecodeError
	return errors.As(err, &de)
}
