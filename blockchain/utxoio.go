// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// The serialized key and value formats defined in this file are contractual.
// The utxo set digest is computed over these exact byte sequences in
// lexicographic key order, so any change to them changes the digest for every
// existing chain.
//
// The serialized key format is:
//
//	<hash><output index>
//
//	Field          Type           Size
//	hash           chainhash.Hash chainhash.HashSize
//	output index   uint32         4 bytes (big endian)
//
// The output index is serialized in big endian so that iterating keys in
// lexicographic order visits the outputs of a given transaction in ascending
// index order.
//
// The serialized value format is:
//
//	<amount><block height><block index><flags><script len><script>
//
//	Field          Type      Size
//	amount         int64     8 bytes (little endian)
//	block height   uint32    4 bytes (little endian)
//	block index    uint32    4 bytes (little endian)
//	flags          uint8     1 byte
//	script len     uint16    2 bytes (little endian)
//	script         []byte    script len

const (
	// outpointKeySize is the size of a serialized outpoint key.
	outpointKeySize = chainhash.HashSize + 4

	// utxoEntryHeaderSize is the size of the fixed portion of a serialized
	// utxo entry preceding the script.
	utxoEntryHeaderSize = 8 + 4 + 4 + 1 + 2
)

// outpointKey returns the canonical serialized key for the provided outpoint.
func outpointKey(outpoint wire.OutPoint) [outpointKeySize]byte {
	var key [outpointKeySize]byte
	copy(key[:], outpoint.Hash[:])
	binary.BigEndian.PutUint32(key[chainhash.HashSize:], outpoint.Index)
	return key
}

// parseOutpointKey parses a canonical serialized outpoint key back into an
// outpoint.
func parseOutpointKey(key []byte) (wire.OutPoint, error) {
	if len(key) != outpointKeySize {
		return wire.OutPoint{}, AssertError(fmt.Sprintf("malformed "+
			"outpoint key length %d", len(key)))
	}

	var outpoint wire.OutPoint
	copy(outpoint.Hash[:], key[:chainhash.HashSize])
	outpoint.Index = binary.BigEndian.Uint32(key[chainhash.HashSize:])
	return outpoint, nil
}

// serializeUtxoEntry returns the canonical serialization of the provided
// utxo entry.
func serializeUtxoEntry(entry *UtxoEntry) []byte {
	serialized := make([]byte, utxoEntryHeaderSize+len(entry.pkScript))
	binary.LittleEndian.PutUint64(serialized[0:8], uint64(entry.amount))
	binary.LittleEndian.PutUint32(serialized[8:12], entry.blockHeight)
	binary.LittleEndian.PutUint32(serialized[12:16], entry.blockIndex)
	serialized[16] = byte(entry.packedFlags)
	binary.LittleEndian.PutUint16(serialized[17:19], uint16(len(entry.pkScript)))
	copy(serialized[utxoEntryHeaderSize:], entry.pkScript)
	return serialized
}

// deserializeUtxoEntry decodes a utxo entry from the passed serialized byte
// slice into a new UtxoEntry using a format that is suitable for long-term
// storage.
func deserializeUtxoEntry(serialized []byte) (*UtxoEntry, error) {
	if len(serialized) < utxoEntryHeaderSize {
		return nil, AssertError(fmt.Sprintf("short utxo entry length %d",
			len(serialized)))
	}

	scriptLen := int(binary.LittleEndian.Uint16(serialized[17:19]))
	if len(serialized) != utxoEntryHeaderSize+scriptLen {
		return nil, AssertError(fmt.Sprintf("mismatched utxo entry script "+
			"length %d for entry length %d", scriptLen, len(serialized)))
	}

	script := make([]byte, scriptLen)
	copy(script, serialized[utxoEntryHeaderSize:])
	return &UtxoEntry{
		amount:      int64(binary.LittleEndian.Uint64(serialized[0:8])),
		blockHeight: binary.LittleEndian.Uint32(serialized[8:12]),
		blockIndex:  binary.LittleEndian.Uint32(serialized[12:16]),
		packedFlags: utxoFlags(serialized[16]),
		pkScript:    script,
	}, nil
}
