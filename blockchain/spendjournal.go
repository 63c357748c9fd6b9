// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"
	"fmt"
)

// spentTxOut contains a spent transaction output and potentially additional
// contextual information such as whether or not it was contained in a
// coinbase transaction and the height of the block that contains the
// transaction.  This constitutes the undo data needed to reverse the effect a
// block has on the utxo set.
type spentTxOut struct {
	amount     int64
	pkScript   []byte
	height     uint32
	blockIndex uint32
	isCoinBase bool
}

// The serialized format for the spend journal entry of a block is a simple
// concatenation of the spent txouts in spend order:
//
//	[<amount><block height><block index><flags><script len><script>],...
//
// Each spent txout reuses the canonical utxo entry value serialization.  The
// format is not self describing regarding which outputs the entries belong
// to, so decoding additionally requires the transactions of the block the
// journal entry is for, exactly as the entries were derived from them.

// serializeSpendJournalEntry serializes all of the passed spent txouts into a
// single byte slice according to the format described in detail above.
func serializeSpendJournalEntry(stxos []spentTxOut) []byte {
	if len(stxos) == 0 {
		return nil
	}

	var serialized []byte
	for i := range stxos {
		stxo := &stxos[i]
		entry := UtxoEntry{
			amount:      stxo.amount,
			pkScript:    stxo.pkScript,
			blockHeight: stxo.height,
			blockIndex:  stxo.blockIndex,
			packedFlags: encodeUtxoFlags(stxo.isCoinBase),
		}
		serialized = append(serialized, serializeUtxoEntry(&entry)...)
	}
	return serialized
}

// deserializeSpendJournalEntry decodes the passed serialized byte slice into
// a slice of spent txouts according to the format described in detail above.
//
// The provided expected count comes from the transactions of the block the
// journal entry belongs to since the serialization format is not self
// describing in that regard.
func deserializeSpendJournalEntry(serialized []byte, numStxos int) ([]spentTxOut, error) {
	// When a block has no spent txouts there is nothing to deserialize.
	if len(serialized) == 0 {
		// Ensure the block actually has no stxos.  This should never
		// happen unless there is database corruption or an empty entry
		// erroneously made its way into the database.
		if numStxos != 0 {
			return nil, ruleError(ErrBadUndoData, fmt.Sprintf(
				"mismatched spend journal serialization - no "+
					"serialization for expected %d stxos", numStxos))
		}

		return nil, nil
	}

	stxos := make([]spentTxOut, 0, numStxos)
	offset := 0
	for offset < len(serialized) {
		if len(stxos) == numStxos {
			return nil, ruleError(ErrBadUndoData, fmt.Sprintf(
				"mismatched spend journal serialization - more than "+
					"expected %d stxos", numStxos))
		}
		if len(serialized[offset:]) < utxoEntryHeaderSize {
			return nil, ruleError(ErrBadUndoData, "corrupt spend journal "+
				"serialization - short entry header")
		}

		scriptLen := int(binary.LittleEndian.Uint16(
			serialized[offset+17 : offset+19]))
		entryLen := utxoEntryHeaderSize + scriptLen
		if len(serialized[offset:]) < entryLen {
			return nil, ruleError(ErrBadUndoData, "corrupt spend journal "+
				"serialization - short entry script")
		}

		entry, err := deserializeUtxoEntry(serialized[offset : offset+entryLen])
		if err != nil {
			return nil, err
		}
		offset += entryLen

		stxos = append(stxos, spentTxOut{
			amount:     entry.amount,
			pkScript:   entry.pkScript,
			height:     entry.blockHeight,
			blockIndex: entry.blockIndex,
			isCoinBase: entry.IsCoinBase(),
		})
	}

	if len(stxos) != numStxos {
		return nil, ruleError(ErrBadUndoData, fmt.Sprintf("mismatched "+
			"spend journal serialization - got %d stxos, expected %d",
			len(stxos), numStxos))
	}

	return stxos, nil
}
