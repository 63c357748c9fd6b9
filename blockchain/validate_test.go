// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TestCheckProofOfWork ensures the proof of work check behaves as expected for
// headers with a valid solution, an out of range target, and a hash that does
// not satisfy the committed target.
func TestCheckProofOfWork(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	genesisHeader := params.GenesisBlock.Header

	tests := []struct {
		name     string
		munger   func(*wire.BlockHeader)
		powLimit *big.Int
		err      error
	}{{
		name:     "genesis satisfies network limit",
		powLimit: params.PowLimit,
	}, {
		name: "zero target difficulty",
		munger: func(header *wire.BlockHeader) {
			header.Bits = 0
		},
		powLimit: params.PowLimit,
		err:      ErrUnexpectedDifficulty,
	}, {
		name:     "target above limit",
		powLimit: lowPowLimit,
		err:      ErrUnexpectedDifficulty,
	}, {
		name: "hash above target",
		munger: func(header *wire.BlockHeader) {
			// Target of one admits no hash.
			header.Bits = 0x01010000
		},
		powLimit: params.PowLimit,
		err:      ErrHighHash,
	}}

	for _, test := range tests {
		header := genesisHeader
		if test.munger != nil {
			test.munger(&header)
		}

		err := checkProofOfWork(&header, test.powLimit)
		if !errors.Is(err, test.err) {
			t.Errorf("%s: unexpected error: got %v, want %v", test.name,
				err, test.err)
		}
	}
}

// TestCheckTransactionSanity ensures the context free transaction checks
// reject malformed transactions with the expected error kinds.
func TestCheckTransactionSanity(t *testing.T) {
	// baseTx returns a minimal sane transaction with a single input and
	// output for the tests to mutate.
	baseTx := func() *wire.MsgTx {
		tx := wire.NewMsgTx(1)
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{
				Hash:  chainhash.Hash{0x01},
				Index: 0,
			},
			Sequence: wire.MaxTxInSequenceNum,
		})
		tx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: []byte{0x51}})
		return tx
	}

	tests := []struct {
		name   string
		munger func(*wire.MsgTx)
		err    error
	}{{
		name: "sane transaction",
	}, {
		name: "no inputs",
		munger: func(tx *wire.MsgTx) {
			tx.TxIn = nil
		},
		err: ErrNoTxInputs,
	}, {
		name: "no outputs",
		munger: func(tx *wire.MsgTx) {
			tx.TxOut = nil
		},
		err: ErrNoTxOutputs,
	}, {
		name: "negative output value",
		munger: func(tx *wire.MsgTx) {
			tx.TxOut[0].Value = -1
		},
		err: ErrBadTxOutValue,
	}, {
		name: "output value above max",
		munger: func(tx *wire.MsgTx) {
			tx.TxOut[0].Value = btcutil.MaxSatoshi + 1
		},
		err: ErrBadTxOutValue,
	}, {
		name: "total output value above max",
		munger: func(tx *wire.MsgTx) {
			tx.TxOut[0].Value = btcutil.MaxSatoshi
			tx.AddTxOut(&wire.TxOut{
				Value:    btcutil.MaxSatoshi,
				PkScript: []byte{0x51},
			})
		},
		err: ErrBadTxOutValue,
	}, {
		name: "duplicate inputs",
		munger: func(tx *wire.MsgTx) {
			tx.AddTxIn(&wire.TxIn{
				PreviousOutPoint: tx.TxIn[0].PreviousOutPoint,
				Sequence:         wire.MaxTxInSequenceNum,
			})
		},
		err: ErrDuplicateTxInputs,
	}}

	for _, test := range tests {
		tx := baseTx()
		if test.munger != nil {
			test.munger(tx)
		}

		err := checkTransactionSanity(tx)
		if !errors.Is(err, test.err) {
			t.Errorf("%s: unexpected error: got %v, want %v", test.name,
				err, test.err)
		}
	}
}

// TestCheckBlockSanity ensures the context free block checks reject blocks
// with missing or malformed transactions and an invalid merkle commitment.
func TestCheckBlockSanity(t *testing.T) {
	h := newChainHarness(t, PruneDisabled, 0)
	powLimit := h.params.PowLimit

	// resolve recommits the merkle root for the block's current
	// transactions and finds a new proof of work solution so the header
	// checks pass and the later checks are reached.
	resolve := func(block *wire.MsgBlock) {
		block.Header.MerkleRoot = calcMerkleRoot(block.Transactions)
		solveBlock(t, &block.Header)
	}

	tests := []struct {
		name   string
		munger func(*wire.MsgBlock)
		err    error
	}{{
		name: "sane block",
	}, {
		name: "no transactions",
		munger: func(block *wire.MsgBlock) {
			block.Transactions = nil
			solveBlock(t, &block.Header)
		},
		err: ErrNoTransactions,
	}, {
		name: "first transaction not coinbase",
		munger: func(block *wire.MsgBlock) {
			spend := wire.NewMsgTx(1)
			spend.AddTxIn(&wire.TxIn{
				PreviousOutPoint: wire.OutPoint{
					Hash:  chainhash.Hash{0x02},
					Index: 1,
				},
				Sequence: wire.MaxTxInSequenceNum,
			})
			spend.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x51}})
			block.Transactions = []*wire.MsgTx{spend}
			resolve(block)
		},
		err: ErrFirstTxNotCoinbase,
	}, {
		name: "second coinbase",
		munger: func(block *wire.MsgBlock) {
			extra := createCoinbaseTx(9999, block.Transactions[0].TxOut[0].PkScript)
			block.Transactions = append(block.Transactions, extra)
			resolve(block)
		},
		err: ErrMultipleCoinbases,
	}, {
		name: "malformed transaction",
		munger: func(block *wire.MsgBlock) {
			block.Transactions[0].TxOut[0].Value = -1
			resolve(block)
		},
		err: ErrBadTxOutValue,
	}, {
		name: "bad merkle root",
		munger: func(block *wire.MsgBlock) {
			block.Header.MerkleRoot[0] ^= 0x55
			solveBlock(t, &block.Header)
		},
		err: ErrBadMerkleRoot,
	}, {
		name: "subsecond timestamp precision",
		munger: func(block *wire.MsgBlock) {
			block.Header.Timestamp = block.Header.Timestamp.Add(
				500 * time.Millisecond)
			solveBlock(t, &block.Header)
		},
		err: ErrInvalidTime,
	}}

	for _, test := range tests {
		block := h.buildBlock()
		if test.munger != nil {
			test.munger(block)
		}

		err := checkBlockSanity(block, powLimit)
		if !errors.Is(err, test.err) {
			t.Errorf("%s: unexpected error: got %v, want %v", test.name,
				err, test.err)
		}
	}
}

// TestIsCoinBaseTx ensures coinbase detection handles transactions with the
// wrong input count and non-null previous outpoints.
func TestIsCoinBaseTx(t *testing.T) {
	coinbase := createCoinbaseTx(1, []byte{0x51})
	if !IsCoinBaseTx(coinbase) {
		t.Fatal("coinbase transaction not detected as coinbase")
	}

	spend := wire.NewMsgTx(1)
	spend.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x01}},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	spend.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x51}})
	if IsCoinBaseTx(spend) {
		t.Fatal("regular transaction detected as coinbase")
	}

	multi := createCoinbaseTx(1, []byte{0x51})
	multi.AddTxIn(spend.TxIn[0])
	if IsCoinBaseTx(multi) {
		t.Fatal("multi-input transaction detected as coinbase")
	}
}
