// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"lukechampine.com/blake3"
)

// UtxoSetStats houses aggregate statistics about the utxo set along with a
// reproducible digest of its full contents.
type UtxoSetStats struct {
	// TxCount is the number of transactions with at least one unspent
	// output.
	TxCount uint64

	// OutputCount is the total number of unspent outputs.
	OutputCount uint64

	// TotalAmount is the exact sum of the amounts of all unspent outputs
	// in the minor unit.  It is an integer sum and therefore never
	// accumulates floating point error.
	TotalAmount int64

	// SerializedSize is the total size of the canonical serialization of
	// the set contents in bytes.
	SerializedSize uint64

	// Digest is a BLAKE3-256 hash computed over the canonical
	// serialization of every (outpoint, entry) pair in lexicographic
	// outpoint key order.  The ordering is a contractual part of the
	// format, so two sets with identical contents always produce an
	// identical digest.
	Digest chainhash.Hash
}

// stats calculates aggregate statistics and the digest over the full
// contents of the utxo set.
//
// This function MUST be called with the chain lock of the containing Chain
// held (for reads).
func (s *UtxoSet) stats() UtxoSetStats {
	var result UtxoSetStats
	hasher := blake3.New(chainhash.HashSize, nil)
	var lastTxHash chainhash.Hash
	first := true
	s.forEachOrdered(func(outpoint wire.OutPoint, entry *UtxoEntry) bool {
		key := outpointKey(outpoint)
		serialized := serializeUtxoEntry(entry)
		hasher.Write(key[:])
		hasher.Write(serialized)

		result.OutputCount++
		result.TotalAmount += entry.amount
		result.SerializedSize += uint64(len(key) + len(serialized))
		if first || outpoint.Hash != lastTxHash {
			result.TxCount++
			lastTxHash = outpoint.Hash
			first = false
		}
		return true
	})

	copy(result.Digest[:], hasher.Sum(nil))
	return result
}

// digest returns only the digest portion of the utxo set statistics.  It is
// primarily used by verification tasks that need to prove the set returns to
// its original state after rolling backwards and forwards across a range of
// blocks.
func (s *UtxoSet) digest() chainhash.Hash {
	return s.stats().Digest
}
