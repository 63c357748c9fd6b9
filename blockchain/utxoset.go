// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// UtxoSet represents the authoritative set of unspent transaction outputs for
// the materialized best chain.  An output's presence in the set is a direct
// function of the best-chain history, not a cache.
//
// The set is intentionally not safe for concurrent access.  All access is
// expected to be protected by the chain lock of the containing Chain.
type UtxoSet struct {
	entries map[wire.OutPoint]*UtxoEntry
}

// newUtxoSet returns a new empty utxo set.
func newUtxoSet() *UtxoSet {
	return &UtxoSet{
		entries: make(map[wire.OutPoint]*UtxoEntry),
	}
}

// LookupEntry returns information about a given transaction output.  It will
// return nil if the output is spent or does not exist.
func (s *UtxoSet) LookupEntry(outpoint wire.OutPoint) *UtxoEntry {
	return s.entries[outpoint]
}

// addTxOut adds the specified output to the set if it is spendable.  When the
// set already has an entry for the output, all fields are updated since the
// previous occurrence must have been fully spent.
func (s *UtxoSet) addTxOut(outpoint wire.OutPoint, txOut *wire.TxOut,
	packedFlags utxoFlags, blockHeight int64, blockIndex uint32) {

	// Don't add provably unspendable outputs.
	if txscript.IsUnspendable(txOut.PkScript) {
		return
	}

	entry := s.entries[outpoint]
	if entry == nil {
		entry = new(UtxoEntry)
		s.entries[outpoint] = entry
	}

	entry.amount = txOut.Value
	entry.pkScript = txOut.PkScript
	entry.blockHeight = uint32(blockHeight)
	entry.blockIndex = blockIndex
	entry.packedFlags = packedFlags
}

// addTxOuts adds all spendable outputs of the passed transaction to the set.
func (s *UtxoSet) addTxOuts(tx *wire.MsgTx, blockHeight int64, blockIndex uint32) {
	isCoinBase := IsCoinBaseTx(tx)
	packedFlags := encodeUtxoFlags(isCoinBase)
	txHash := tx.TxHash()
	for txOutIdx, txOut := range tx.TxOut {
		outpoint := wire.OutPoint{Hash: txHash, Index: uint32(txOutIdx)}
		s.addTxOut(outpoint, txOut, packedFlags, blockHeight, blockIndex)
	}
}

// checkConnectBlock ensures connecting the passed block to the set would not
// violate any spend rules without actually modifying the set.  In particular,
// every input of every non-coinbase transaction must reference an output that
// is either already in the set or created earlier in the same block and not
// already spent, and no transaction may spend more than the sum of its
// inputs.
func (s *UtxoSet) checkConnectBlock(block *wire.MsgBlock) error {
	inBlock := make(map[wire.OutPoint]int64)
	spent := make(map[wire.OutPoint]struct{})
	for _, tx := range block.Transactions {
		txHash := tx.TxHash()

		if !IsCoinBaseTx(tx) {
			var totalIn int64
			for _, txIn := range tx.TxIn {
				prevOut := txIn.PreviousOutPoint
				if _, alreadySpent := spent[prevOut]; alreadySpent {
					str := fmt.Sprintf("output %v already spent in "+
						"block %v", prevOut, block.BlockHash())
					return ruleError(ErrDoubleSpend, str)
				}

				amount, created := inBlock[prevOut]
				if !created {
					entry := s.entries[prevOut]
					if entry == nil {
						str := fmt.Sprintf("output %v referenced from "+
							"transaction %v does not exist or has "+
							"already been spent", prevOut, txHash)
						return ruleError(ErrMissingTxOut, str)
					}
					amount = entry.amount
				}

				spent[prevOut] = struct{}{}
				totalIn += amount
			}

			var totalOut int64
			for _, txOut := range tx.TxOut {
				totalOut += txOut.Value
			}
			if totalOut > totalIn {
				str := fmt.Sprintf("transaction %v spends %v which is "+
					"more than its inputs provide %v", txHash, totalOut,
					totalIn)
				return ruleError(ErrSpendTooHigh, str)
			}
		}

		for txOutIdx, txOut := range tx.TxOut {
			outpoint := wire.OutPoint{Hash: txHash, Index: uint32(txOutIdx)}
			inBlock[outpoint] = txOut.Value
		}
	}

	return nil
}

// connectTransaction updates the set by removing every output the passed
// transaction spends and adding every output it creates.  When the spent
// txout slice is not nil, an entry describing the prior state of every spent
// output is appended to it in input order.
//
// The referenced outputs are required to exist which is the responsibility of
// the caller to establish via checkConnectBlock beforehand.
func (s *UtxoSet) connectTransaction(tx *wire.MsgTx, blockHeight int64,
	blockIndex uint32, stxos *[]spentTxOut) error {

	// Coinbase transactions don't have any inputs to spend.
	if IsCoinBaseTx(tx) {
		s.addTxOuts(tx, blockHeight, blockIndex)
		return nil
	}

	// Spend the referenced utxos by removing them from the set and, if a
	// slice was provided for the spent txout details, append an entry to
	// it.
	for _, txIn := range tx.TxIn {
		entry := s.entries[txIn.PreviousOutPoint]
		if entry == nil {
			return AssertError(fmt.Sprintf("set missing input %v",
				txIn.PreviousOutPoint))
		}

		if stxos != nil {
			*stxos = append(*stxos, spentTxOut{
				amount:     entry.amount,
				pkScript:   entry.pkScript,
				height:     entry.blockHeight,
				blockIndex: entry.blockIndex,
				isCoinBase: entry.IsCoinBase(),
			})
		}

		delete(s.entries, txIn.PreviousOutPoint)
	}

	// Add the transaction's outputs as available utxos.
	s.addTxOuts(tx, blockHeight, blockIndex)
	return nil
}

// connectBlock atomically updates the set with every spend and creation the
// transactions in the passed block perform.  The update is all or nothing: on
// failure the set is left exactly as it was before the attempt.  The returned
// spent txout slice describes the prior state of every spent output in spend
// order and constitutes the undo data for the block.
func (s *UtxoSet) connectBlock(block *wire.MsgBlock, blockHeight int64) ([]spentTxOut, error) {
	// Validate every spend against the set before any mutation so that a
	// failure cannot leave a partially applied block behind.
	err := s.checkConnectBlock(block)
	if err != nil {
		return nil, err
	}

	stxos := make([]spentTxOut, 0, countSpentOutputs(block))
	for txIdx, tx := range block.Transactions {
		err := s.connectTransaction(tx, blockHeight, uint32(txIdx), &stxos)
		if err != nil {
			return nil, err
		}
	}

	return stxos, nil
}

// disconnectBlock updates the set by removing every output the transactions
// in the passed block create and restoring every output they spend from the
// provided undo data.  This reverses the effect of connectBlock.
func (s *UtxoSet) disconnectBlock(block *wire.MsgBlock, stxos []spentTxOut) error {
	if len(stxos) != countSpentOutputs(block) {
		return ruleError(ErrBadUndoData, "undo data does not match the "+
			"number of outputs the block spends")
	}

	stxoIdx := len(stxos) - 1
	for txIdx := len(block.Transactions) - 1; txIdx > -1; txIdx-- {
		tx := block.Transactions[txIdx]
		txHash := tx.TxHash()

		// Remove all of the outputs the transaction created.  Note that
		// provably unspendable outputs were never added, so deleting them
		// here is a no-op.
		for txOutIdx := range tx.TxOut {
			outpoint := wire.OutPoint{Hash: txHash, Index: uint32(txOutIdx)}
			delete(s.entries, outpoint)
		}

		// Coinbase transactions don't have any inputs to restore.
		if IsCoinBaseTx(tx) {
			continue
		}

		// Restore the spent outputs from the undo data in reverse spend
		// order.
		for txInIdx := len(tx.TxIn) - 1; txInIdx > -1; txInIdx-- {
			stxo := &stxos[stxoIdx]
			stxoIdx--

			outpoint := tx.TxIn[txInIdx].PreviousOutPoint
			s.entries[outpoint] = &UtxoEntry{
				amount:      stxo.amount,
				pkScript:    stxo.pkScript,
				blockHeight: stxo.height,
				blockIndex:  stxo.blockIndex,
				packedFlags: encodeUtxoFlags(stxo.isCoinBase),
			}
		}
	}

	return nil
}

// countSpentOutputs returns the number of utxos the passed block spends.
func countSpentOutputs(block *wire.MsgBlock) int {
	var numSpent int
	for _, tx := range block.Transactions {
		if IsCoinBaseTx(tx) {
			continue
		}
		numSpent += len(tx.TxIn)
	}
	return numSpent
}

// sortedOutpoints returns every outpoint in the set ordered lexicographically
// by serialized outpoint key.  This ordering is contractual: both the set
// digest and scan tie-breaking depend on it.
func (s *UtxoSet) sortedOutpoints() []wire.OutPoint {
	outpoints := make([]wire.OutPoint, 0, len(s.entries))
	for outpoint := range s.entries {
		outpoints = append(outpoints, outpoint)
	}
	sort.Slice(outpoints, func(i, j int) bool {
		keyI := outpointKey(outpoints[i])
		keyJ := outpointKey(outpoints[j])
		return bytes.Compare(keyI[:], keyJ[:]) < 0
	})
	return outpoints
}

// forEachOrdered invokes the provided callback for every (outpoint, entry)
// pair in the set in lexicographic outpoint key order.  Iteration stops early
// when the callback returns false.
//
// The iteration order is deterministic but the sequence is not restartable
// after the set is mutated.
func (s *UtxoSet) forEachOrdered(f func(outpoint wire.OutPoint, entry *UtxoEntry) bool) {
	for _, outpoint := range s.sortedOutpoints() {
		if !f(outpoint, s.entries[outpoint]) {
			return
		}
	}
}

// clone returns a deep copy of the utxo set.
func (s *UtxoSet) clone() *UtxoSet {
	entries := make(map[wire.OutPoint]*UtxoEntry, len(s.entries))
	for outpoint, entry := range s.entries {
		entries[outpoint] = entry.Clone()
	}
	return &UtxoSet{entries: entries}
}

// restore replaces the contents of the set with the provided backup.  It is
// used to guarantee the set returns to a known prior state after a
// verification task that transiently mutates it.
func (s *UtxoSet) restore(backup *UtxoSet) {
	s.entries = backup.entries
}
