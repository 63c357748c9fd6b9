// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package query

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrInvalidKeyEncoding indicates a private key argument was not a
	// valid WIF encoded key.
	ErrInvalidKeyEncoding = ErrorKind("ErrInvalidKeyEncoding")

	// ErrNoMatchingUtxo indicates no unspent output pays to the key given
	// in a lookup request.
	ErrNoMatchingUtxo = ErrorKind("ErrNoMatchingUtxo")

	// ErrUnknownBlock indicates a requested block is not known to the
	// chain.
	ErrUnknownBlock = ErrorKind("ErrUnknownBlock")

	// ErrInvalidParameter indicates a request parameter was outside the
	// accepted range.
	ErrInvalidParameter = ErrorKind("ErrInvalidParameter")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a query error.  It has full support for errors.Is and
// errors.As, so the caller can ascertain the specific reason for the error
// by checking the underlying error.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}
