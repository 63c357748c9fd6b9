// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrDuplicateBlock indicates a block with the same hash already
	// exists.
	ErrDuplicateBlock = ErrorKind("ErrDuplicateBlock")

	// ErrMissingParent indicates the parent of a block is not known to the
	// block index.
	ErrMissingParent = ErrorKind("ErrMissingParent")

	// ErrInvalidTime indicates the time in the passed block has a precision
	// that is more than one second.
	ErrInvalidTime = ErrorKind("ErrInvalidTime")

	// ErrTimeTooOld indicates the time is either before the median time of
	// the last several blocks per the chain consensus rules.
	ErrTimeTooOld = ErrorKind("ErrTimeTooOld")

	// ErrTimeTooNew indicates the time is too far in the future as compared
	// the current time.
	ErrTimeTooNew = ErrorKind("ErrTimeTooNew")

	// ErrUnexpectedDifficulty indicates specified bits do not align with
	// the expected value either because it doesn't match the calculated
	// value or it is out of the valid range.
	ErrUnexpectedDifficulty = ErrorKind("ErrUnexpectedDifficulty")

	// ErrHighHash indicates the block does not hash to a value which is
	// lower than the required target difficultly.
	ErrHighHash = ErrorKind("ErrHighHash")

	// ErrBadMerkleRoot indicates the calculated merkle root does not match
	// the expected value.
	ErrBadMerkleRoot = ErrorKind("ErrBadMerkleRoot")

	// ErrNoTransactions indicates the block does not have at least one
	// transaction.  A valid block must have at least the coinbase
	// transaction.
	ErrNoTransactions = ErrorKind("ErrNoTransactions")

	// ErrFirstTxNotCoinbase indicates the first transaction in a block
	// is not a coinbase transaction.
	ErrFirstTxNotCoinbase = ErrorKind("ErrFirstTxNotCoinbase")

	// ErrMultipleCoinbases indicates a block contains more than one
	// coinbase transaction.
	ErrMultipleCoinbases = ErrorKind("ErrMultipleCoinbases")

	// ErrNoTxInputs indicates a transaction does not have any inputs.  A
	// valid transaction must have at least one input.
	ErrNoTxInputs = ErrorKind("ErrNoTxInputs")

	// ErrNoTxOutputs indicates a transaction does not have any outputs.  A
	// valid transaction must have at least one output.
	ErrNoTxOutputs = ErrorKind("ErrNoTxOutputs")

	// ErrBadTxOutValue indicates an output value for a transaction is
	// invalid in some way such as being out of range.
	ErrBadTxOutValue = ErrorKind("ErrBadTxOutValue")

	// ErrDuplicateTxInputs indicates a transaction references the same
	// input more than once.
	ErrDuplicateTxInputs = ErrorKind("ErrDuplicateTxInputs")

	// ErrMissingTxOut indicates a transaction output referenced by an input
	// either does not exist or has already been spent.
	ErrMissingTxOut = ErrorKind("ErrMissingTxOut")

	// ErrDoubleSpend indicates a transaction is attempting to spend an
	// output that was already spent by an earlier transaction in the same
	// block.
	ErrDoubleSpend = ErrorKind("ErrDoubleSpend")

	// ErrSpendTooHigh indicates a transaction is attempting to spend more
	// value than the sum of all of its inputs.
	ErrSpendTooHigh = ErrorKind("ErrSpendTooHigh")

	// ErrScriptValidation indicates the result of executing a transaction
	// input script evaluated to false.
	ErrScriptValidation = ErrorKind("ErrScriptValidation")

	// ErrChainworkOverflow indicates the accumulated chainwork for a block
	// exceeds the maximum representable value.
	ErrChainworkOverflow = ErrorKind("ErrChainworkOverflow")

	// ErrPrevBlockNotBest indicates a full block builds on a block that is
	// not the current best chain tip.  Side chain headers may still be
	// tracked by the block index, but only the best chain is materialized.
	ErrPrevBlockNotBest = ErrorKind("ErrPrevBlockNotBest")

	// ErrBadUndoData indicates the stored undo data for a block does not
	// match the spends the block itself performs.
	ErrBadUndoData = ErrorKind("ErrBadUndoData")

	// ErrInvalidArgument indicates a caller supplied an out-of-range
	// parameter to a chain operation.
	ErrInvalidArgument = ErrorKind("ErrInvalidArgument")

	// ErrUnknownBlock indicates a requested block hash or height is not
	// known to the block index.
	ErrUnknownBlock = ErrorKind("ErrUnknownBlock")

	// ErrPrunedDataUnavailable indicates a verification task requires
	// block or undo data that has already been evicted by the prune
	// manager.
	ErrPrunedDataUnavailable = ErrorKind("ErrPrunedDataUnavailable")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// RuleError identifies a rule violation.  It is used to indicate that
// processing of a block or transaction failed due to one of the many
// validation rules.  It has full support for errors.Is and errors.As, so the
// caller can ascertain the specific reason for the error by checking the
// underlying error.
type RuleError struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(kind ErrorKind, desc string) RuleError {
	return RuleError{Err: kind, Description: desc}
}
