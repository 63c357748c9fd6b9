// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockstore

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrDbError indicates a generic error with the underlying database.
	ErrDbError = ErrorKind("ErrDbError")

	// ErrValueNotFound indicates no value exists for a requested key.
	ErrValueNotFound = ErrorKind("ErrValueNotFound")

	// ErrBlockPruned indicates the requested block or undo data has been
	// discarded per the retention policy.
	ErrBlockPruned = ErrorKind("ErrBlockPruned")

	// ErrCorruption indicates a stored value failed to deserialize which
	// means the underlying data is corrupted.
	ErrCorruption = ErrorKind("ErrCorruption")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// StoreError identifies an error related to the block store.  It has full
// support for errors.Is and errors.As, so the caller can ascertain the
// specific reason for the error by checking the underlying error.
type StoreError struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e StoreError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e StoreError) Unwrap() error {
	return e.Err
}

// storeError creates a StoreError given a set of arguments.
func storeError(kind ErrorKind, desc string) StoreError {
	return StoreError{Err: kind, Description: desc}
}
