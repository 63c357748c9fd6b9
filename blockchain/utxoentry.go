// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

// utxoFlags defines additional information for the containing transaction of
// a utxo entry.
//
// The bit representation is:
//
//	bit  0    - containing transaction is a coinbase
//	bits 1-7  - unused
type utxoFlags uint8

const (
	// utxoFlagCoinBase indicates that a txout was contained in a coinbase
	// tx.
	utxoFlagCoinBase utxoFlags = 1 << iota
)

// encodeUtxoFlags returns utxoFlags representing the passed parameters.
func encodeUtxoFlags(coinbase bool) utxoFlags {
	var packedFlags utxoFlags
	if coinbase {
		packedFlags |= utxoFlagCoinBase
	}
	return packedFlags
}

// UtxoEntry houses details about an individual transaction output in the utxo
// set such as whether or not it was contained in a coinbase tx, the height of
// the block that contains the tx, its public key script, and how much it
// pays.
type UtxoEntry struct {
	amount   int64
	pkScript []byte

	blockHeight uint32
	blockIndex  uint32

	// packedFlags contains additional info about the containing transaction
	// of the output as defined by utxoFlags.  This approach is used in
	// order to reduce memory usage since there will be a lot of these in
	// memory.
	packedFlags utxoFlags
}

// IsCoinBase returns whether or not the output was contained in a coinbase
// transaction.
func (entry *UtxoEntry) IsCoinBase() bool {
	return entry.packedFlags&utxoFlagCoinBase == utxoFlagCoinBase
}

// BlockHeight returns the height of the block containing the output.
func (entry *UtxoEntry) BlockHeight() int64 {
	return int64(entry.blockHeight)
}

// BlockIndex returns the index of the transaction that the output is
// contained in within the block that contains it.
func (entry *UtxoEntry) BlockIndex() uint32 {
	return entry.blockIndex
}

// Amount returns the amount of the output.
func (entry *UtxoEntry) Amount() int64 {
	return entry.amount
}

// PkScript returns the public key script for the output.
func (entry *UtxoEntry) PkScript() []byte {
	return entry.pkScript
}

// Clone returns a deep copy of the utxo entry.
func (entry *UtxoEntry) Clone() *UtxoEntry {
	if entry == nil {
		return nil
	}

	script := make([]byte, len(entry.pkScript))
	copy(script, entry.pkScript)
	return &UtxoEntry{
		amount:      entry.amount,
		pkScript:    script,
		blockHeight: entry.blockHeight,
		blockIndex:  entry.blockIndex,
		packedFlags: entry.packedFlags,
	}
}
