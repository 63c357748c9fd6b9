// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/blockchain/standalone/v2"
)

// isNullOutpoint determines whether or not a previous transaction output point
// is set.
func isNullOutpoint(outpoint *wire.OutPoint) bool {
	if outpoint.Index == wire.MaxPrevOutIndex && outpoint.Hash == *zeroHash {
		return true
	}
	return false
}

// IsCoinBaseTx determines whether or not a transaction is a coinbase.  A
// coinbase is a special transaction created by miners that has no inputs.
// This is represented in the block chain by a transaction with a single input
// that has a previous output transaction index set to the maximum value along
// with a zero hash.
func IsCoinBaseTx(msgTx *wire.MsgTx) bool {
	// A coin base must only have one transaction input.
	if len(msgTx.TxIn) != 1 {
		return false
	}

	// The previous output of a coin base must have a max value index and a
	// zero hash.
	return isNullOutpoint(&msgTx.TxIn[0].PreviousOutPoint)
}

// hashToBig converts a chainhash.Hash into a big.Int that can be used to
// perform math comparisons.
func hashToBig(hash *chainhash.Hash) *big.Int {
	// A Hash is in little-endian, but the big package wants the bytes in
	// big-endian, so reverse them.
	buf := *hash
	blen := len(buf)
	for i := 0; i < blen/2; i++ {
		buf[i], buf[blen-1-i] = buf[blen-1-i], buf[i]
	}

	return new(big.Int).SetBytes(buf[:])
}

// checkProofOfWork ensures the block header bits which indicate the target
// difficulty is in min/max range and that the block hash is less than the
// target difficulty as claimed.
func checkProofOfWork(header *wire.BlockHeader, powLimit *big.Int) error {
	// The target difficulty must be larger than zero.
	target := standalone.CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		str := fmt.Sprintf("block target difficulty of %064x is too low",
			target)
		return ruleError(ErrUnexpectedDifficulty, str)
	}

	// The target difficulty must be less than the maximum allowed.
	if target.Cmp(powLimit) > 0 {
		str := fmt.Sprintf("block target difficulty of %064x is higher "+
			"than max of %064x", target, powLimit)
		return ruleError(ErrUnexpectedDifficulty, str)
	}

	// The block hash must be less than the claimed target.
	hash := header.BlockHash()
	hashNum := hashToBig(&hash)
	if hashNum.Cmp(target) > 0 {
		str := fmt.Sprintf("block hash of %064x is higher than expected "+
			"max of %064x", hashNum, target)
		return ruleError(ErrHighHash, str)
	}

	return nil
}

// calcMerkleRoot computes the merkle root over the hashes of the provided
// transactions using the original duplicate-final-entry scheme in which
// levels with an odd number of hashes pair the final hash with itself.
func calcMerkleRoot(txns []*wire.MsgTx) chainhash.Hash {
	hashes := make([]chainhash.Hash, 0, len(txns))
	for _, tx := range txns {
		hashes = append(hashes, tx.TxHash())
	}

	for len(hashes) > 1 {
		if len(hashes)%2 != 0 {
			hashes = append(hashes, hashes[len(hashes)-1])
		}

		parents := hashes[:0]
		for i := 0; i < len(hashes); i += 2 {
			var buf [chainhash.HashSize * 2]byte
			copy(buf[:chainhash.HashSize], hashes[i][:])
			copy(buf[chainhash.HashSize:], hashes[i+1][:])
			parents = append(parents, chainhash.DoubleHashH(buf[:]))
		}
		hashes = parents
	}

	if len(hashes) == 0 {
		return chainhash.Hash{}
	}
	return hashes[0]
}

// checkTransactionSanity performs some preliminary checks on a transaction to
// ensure it is sane.  These checks are context free.
func checkTransactionSanity(tx *wire.MsgTx) error {
	// A transaction must have at least one input.
	if len(tx.TxIn) == 0 {
		return ruleError(ErrNoTxInputs, "transaction has no inputs")
	}

	// A transaction must have at least one output.
	if len(tx.TxOut) == 0 {
		return ruleError(ErrNoTxOutputs, "transaction has no outputs")
	}

	// Ensure the transaction amounts are in range.  Each transaction output
	// must not be negative or more than the max allowed per transaction.
	// Also, the total of all outputs must abide by the same restrictions.
	// All amounts in a transaction are in a unit value known as a satoshi.
	var totalSatoshi int64
	for _, txOut := range tx.TxOut {
		satoshi := txOut.Value
		if satoshi < 0 {
			str := fmt.Sprintf("transaction output has negative value of %v",
				satoshi)
			return ruleError(ErrBadTxOutValue, str)
		}
		if satoshi > btcutil.MaxSatoshi {
			str := fmt.Sprintf("transaction output value of %v is higher "+
				"than max allowed value of %v", satoshi,
				btcutil.MaxSatoshi)
			return ruleError(ErrBadTxOutValue, str)
		}

		totalSatoshi += satoshi
		if totalSatoshi < 0 || totalSatoshi > btcutil.MaxSatoshi {
			str := fmt.Sprintf("total value of all transaction outputs is "+
				"%v which is higher than max allowed value of %v",
				totalSatoshi, btcutil.MaxSatoshi)
			return ruleError(ErrBadTxOutValue, str)
		}
	}

	// Check for duplicate transaction inputs.
	existingTxOut := make(map[wire.OutPoint]struct{})
	for _, txIn := range tx.TxIn {
		if _, exists := existingTxOut[txIn.PreviousOutPoint]; exists {
			return ruleError(ErrDuplicateTxInputs, "transaction contains "+
				"duplicate inputs")
		}
		existingTxOut[txIn.PreviousOutPoint] = struct{}{}
	}

	return nil
}

// checkBlockHeaderSanity performs some preliminary checks on a block header to
// ensure it is sane before continuing with processing.  These checks are
// context free.
func checkBlockHeaderSanity(header *wire.BlockHeader, powLimit *big.Int) error {
	// Ensure the proof of work bits in the block header is in min/max
	// range and the block hash is less than the target value described by
	// the bits.
	err := checkProofOfWork(header, powLimit)
	if err != nil {
		return err
	}

	// A block timestamp must not have a greater precision than one second.
	if !header.Timestamp.Equal(time.Unix(header.Timestamp.Unix(), 0)) {
		str := fmt.Sprintf("block timestamp of %v has a higher precision "+
			"than one second", header.Timestamp)
		return ruleError(ErrInvalidTime, str)
	}

	return nil
}

// checkBlockSanity performs some preliminary checks on a block to ensure it is
// sane before continuing with block processing.  These checks are context
// free.
func checkBlockSanity(block *wire.MsgBlock, powLimit *big.Int) error {
	err := checkBlockHeaderSanity(&block.Header, powLimit)
	if err != nil {
		return err
	}

	// A block must have at least one transaction.
	if len(block.Transactions) == 0 {
		return ruleError(ErrNoTransactions, "block does not contain any "+
			"transactions")
	}

	// The first transaction in a block must be a coinbase.
	if !IsCoinBaseTx(block.Transactions[0]) {
		return ruleError(ErrFirstTxNotCoinbase, "first transaction in "+
			"block is not a coinbase")
	}

	// A block must not have more than one coinbase.
	for i, tx := range block.Transactions[1:] {
		if IsCoinBaseTx(tx) {
			str := fmt.Sprintf("block contains second coinbase at index %d",
				i+1)
			return ruleError(ErrMultipleCoinbases, str)
		}
	}

	// Do some preliminary checks on each transaction to ensure they are
	// sane before continuing.
	for _, tx := range block.Transactions {
		err := checkTransactionSanity(tx)
		if err != nil {
			return err
		}
	}

	// Build merkle tree and ensure the calculated merkle root matches the
	// entry in the block header.  This also has the effect of caching all
	// of the transaction hashes in the block to speed up future hash
	// checks.
	calculatedMerkleRoot := calcMerkleRoot(block.Transactions)
	if block.Header.MerkleRoot != calculatedMerkleRoot {
		str := fmt.Sprintf("block merkle root is invalid - block header "+
			"indicates %v, but calculated value is %v",
			block.Header.MerkleRoot, calculatedMerkleRoot)
		return ruleError(ErrBadMerkleRoot, str)
	}

	return nil
}

// checkBlockHeaderContext performs several validation checks on the block
// header which depend on its position within the block chain.
func checkBlockHeaderContext(header *wire.BlockHeader, parent *blockNode) error {
	// Ensure the timestamp for the block header is after the median time of
	// the last several blocks (medianTimeBlocks).
	medianTime := parent.CalcPastMedianTime()
	if !header.Timestamp.After(medianTime) {
		str := fmt.Sprintf("block timestamp of %v is not after expected %v",
			header.Timestamp, medianTime)
		return ruleError(ErrTimeTooOld, str)
	}

	// Ensure the timestamp for the block header is not too far in the
	// future.
	maxTimestamp := time.Now().Add(maxFutureBlockTime)
	if header.Timestamp.After(maxTimestamp) {
		str := fmt.Sprintf("block timestamp of %v is too far in the future",
			header.Timestamp)
		return ruleError(ErrTimeTooNew, str)
	}

	return nil
}
