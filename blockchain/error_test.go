// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"io"
	"testing"
)

// TestErrorKindStringer tests the stringized output for the ErrorKind type.
func TestErrorKindStringer(t *testing.T) {
	tests := []struct {
		in   ErrorKind
		want string
	}{
		{ErrDuplicateBlock, "ErrDuplicateBlock"},
		{ErrMissingParent, "ErrMissingParent"},
		{ErrInvalidTime, "ErrInvalidTime"},
		{ErrTimeTooOld, "ErrTimeTooOld"},
		{ErrTimeTooNew, "ErrTimeTooNew"},
		{ErrUnexpectedDifficulty, "ErrUnexpectedDifficulty"},
		{ErrHighHash, "ErrHighHash"},
		{ErrBadMerkleRoot, "ErrBadMerkleRoot"},
		{ErrNoTransactions, "ErrNoTransactions"},
		{ErrFirstTxNotCoinbase, "ErrFirstTxNotCoinbase"},
		{ErrMultipleCoinbases, "ErrMultipleCoinbases"},
		{ErrNoTxInputs, "ErrNoTxInputs"},
		{ErrNoTxOutputs, "ErrNoTxOutputs"},
		{ErrBadTxOutValue, "ErrBadTxOutValue"},
		{ErrDuplicateTxInputs, "ErrDuplicateTxInputs"},
		{ErrMissingTxOut, "ErrMissingTxOut"},
		{ErrDoubleSpend, "ErrDoubleSpend"},
		{ErrChainworkOverflow, "ErrChainworkOverflow"},
		{ErrPrevBlockNotBest, "ErrPrevBlockNotBest"},
		{ErrSpendTooHigh, "ErrSpendTooHigh"},
		{ErrScriptValidation, "ErrScriptValidation"},
		{ErrBadUndoData, "ErrBadUndoData"},
		{ErrInvalidArgument, "ErrInvalidArgument"},
		{ErrUnknownBlock, "ErrUnknownBlock"},
		{ErrPrunedDataUnavailable, "ErrPrunedDataUnavailable"},
	}

	for i, test := range tests {
		result := test.in.Error()
		if result != test.want {
			t.Errorf("#%d: got: %s want: %s", i, result, test.want)
			continue
		}
	}
}

// TestRuleError tests the error output for the RuleError type.
func TestRuleError(t *testing.T) {
	tests := []struct {
		in   RuleError
		want string
	}{{
		RuleError{Description: "some rule error"},
		"some rule error",
	}, {
		RuleError{Description: "human-readable error"},
		"human-readable error",
	}}

	for i, test := range tests {
		result := test.in.Error()
		if result != test.want {
			t.Errorf("#%d: got: %s want: %s", i, result, test.want)
			continue
		}
	}
}

// TestErrorKindIsAs ensures both ErrorKind and RuleError can be identified
// as being a specific error kind via errors.Is and unwrapped via errors.As.
func TestErrorKindIsAs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
		wantAs    ErrorKind
	}{{
		name:      "ErrDuplicateBlock == ErrDuplicateBlock",
		err:       ErrDuplicateBlock,
		target:    ErrDuplicateBlock,
		wantMatch: true,
		wantAs:    ErrDuplicateBlock,
	}, {
		name:      "RuleError.ErrDuplicateBlock == ErrDuplicateBlock",
		err:       ruleError(ErrDuplicateBlock, ""),
		target:    ErrDuplicateBlock,
		wantMatch: true,
		wantAs:    ErrDuplicateBlock,
	}, {
		name:      "RuleError.ErrDuplicateBlock == RuleError.ErrDuplicateBlock",
		err:       ruleError(ErrDuplicateBlock, ""),
		target:    ruleError(ErrDuplicateBlock, ""),
		wantMatch: true,
		wantAs:    ErrDuplicateBlock,
	}, {
		name:      "ErrDuplicateBlock != ErrMissingParent",
		err:       ErrDuplicateBlock,
		target:    ErrMissingParent,
		wantMatch: false,
		wantAs:    ErrDuplicateBlock,
	}, {
		name:      "RuleError.ErrDuplicateBlock != ErrMissingParent",
		err:       ruleError(ErrDuplicateBlock, ""),
		target:    ErrMissingParent,
		wantMatch: false,
		wantAs:    ErrDuplicateBlock,
	}, {
		name:      "RuleError.ErrDuplicateBlock != io.EOF",
		err:       ruleError(ErrDuplicateBlock, ""),
		target:    io.EOF,
		wantMatch: false,
		wantAs:    ErrDuplicateBlock,
	}}

	for _, test := range tests {
		// Ensure the error matches or not depending on the expected result.
		result := errors.Is(test.err, test.target)
		if result != test.wantMatch {
			t.Errorf("%s: incorrect error identification -- got %v, want %v",
				test.name, result, test.wantMatch)
			continue
		}

		// Ensure the underlying error kind can be unwrapped and is the
		// expected kind.
		var kind ErrorKind
		if !errors.As(test.err, &kind) {
			t.Errorf("%s: unable to unwrap to error kind", test.name)
			continue
		}
		if kind != test.wantAs {
			t.Errorf("%s: unexpected unwrapped error kind -- got %v, want %v",
				test.name, kind, test.wantAs)
			continue
		}
	}
}
