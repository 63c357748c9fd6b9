// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockstore provides durable storage for block bodies, block
// headers, per-block undo data, and the materialized chain state of a pruned
// chain.
//
// The store deals in opaque serialized values.  All (de)serialization of the
// chain's own types is the responsibility of the caller, which keeps the
// storage format concerns in one place and the database layer generic.
package blockstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/decred/dcrd/container/lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// The following prefixes partition the key space of the underlying database:
//
//	h<height> -> serialized block header (never pruned)
//	b<height> -> serialized block body (prunable)
//	u<height> -> serialized undo data (prunable)
//	c<key>    -> serialized utxo entry keyed by serialized outpoint
//	s         -> serialized chain tip state
//
// Heights are serialized as 8 bytes big endian so that iterating either of
// the prunable buckets visits blocks in ascending height order.
var (
	headerKeyPrefix = []byte("h")
	blockKeyPrefix  = []byte("b")
	undoKeyPrefix   = []byte("u")
	utxoKeyPrefix   = []byte("c")
	tipStateKey     = []byte("s")
)

const (
	// blockCacheLimit is the maximum number of recently accessed block
	// bodies to keep in memory.
	blockCacheLimit = 64
)

// heightKey returns the database key for the provided prefix and height.
func heightKey(prefix []byte, height int64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(height))
	return key
}

// UtxoUpdate describes a single change to the stored utxo state.  A nil
// Serialized value indicates the entry identified by Key must be deleted.
type UtxoUpdate struct {
	Key        []byte
	Serialized []byte
}

// BlockRecord houses all of the serialized data that must be stored
// atomically when a block is connected to the chain.
type BlockRecord struct {
	Height   int64
	Header   []byte
	Block    []byte
	Undo     []byte
	Utxos    []UtxoUpdate
	TipState []byte
}

// Store provides durable storage for chain data backed by leveldb.  It
// tracks the number of bytes consumed by prunable data (block bodies and
// undo data) so that the retention policy of the owning chain can be
// enforced, and maintains an LRU cache of recently accessed block bodies.
//
// All methods are safe for concurrent access.
type Store struct {
	db         *leveldb.DB
	blockCache *lru.Map[int64, []byte]

	// The following fields are protected by the embedded mutex.
	//
	// onDiskBytes is the total size of all retained prunable data.
	//
	// lowestRetained is the lowest height for which the block body is
	// still retained, or -1 when the store holds no block bodies.
	mtx            sync.RWMutex
	onDiskBytes    uint64
	lowestRetained int64
}

// convertLdbErr converts the passed leveldb error into a store error with an
// equivalent error kind and the passed description.  It also sets the passed
// error as the underlying error.
func convertLdbErr(ldbErr error, desc string) StoreError {
	kind := ErrDbError
	if errors.Is(ldbErr, leveldb.ErrNotFound) {
		kind = ErrValueNotFound
	}
	return StoreError{Err: kind, Description: desc + ": " + ldbErr.Error()}
}

// newStore creates a store around an opened leveldb database and initializes
// the size accounting by scanning the prunable buckets.
func newStore(db *leveldb.DB) (*Store, error) {
	s := &Store{
		db:             db,
		blockCache:     lru.NewMap[int64, []byte](blockCacheLimit),
		lowestRetained: -1,
	}

	// Initialize the prunable data accounting.  This intentionally scans
	// only the sizes, not the contents, so startup cost stays proportional
	// to the number of retained blocks.
	for _, prefix := range [][]byte{blockKeyPrefix, undoKeyPrefix} {
		iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
		for iter.Next() {
			if len(iter.Key()) != len(prefix)+8 {
				iter.Release()
				_ = db.Close()
				str := fmt.Sprintf("malformed key of length %d in the %q "+
					"bucket", len(iter.Key()), prefix)
				return nil, storeError(ErrCorruption, str)
			}
			s.onDiskBytes += uint64(len(iter.Key()) + len(iter.Value()))
			if prefix[0] == blockKeyPrefix[0] && s.lowestRetained == -1 {
				height := int64(binary.BigEndian.Uint64(iter.Key()[1:]))
				s.lowestRetained = height
			}
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			_ = db.Close()
			return nil, convertLdbErr(err, "failed to scan store sizes")
		}
	}

	log.Debugf("Block store loaded with %d prunable bytes on disk",
		s.onDiskBytes)
	return s, nil
}

// Open opens the block store at the provided path, creating it if needed.
func Open(dbPath string) (*Store, error) {
	dbExists := true
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbExists = false
		// The error can be ignored here since the call to
		// leveldb.OpenFile will fail if the directory couldn't be
		// created.
		_ = os.MkdirAll(dbPath, 0700)
	}

	log.Infof("Loading block store from '%s'", dbPath)
	opts := opt.Options{
		ErrorIfExist: !dbExists,
		Strict:       opt.DefaultStrict,
		Compression:  opt.NoCompression,
		Filter:       filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, convertLdbErr(err, "failed to open block store")
	}

	return newStore(db)
}

// OpenInMemory opens a block store backed entirely by memory.  It is
// primarily useful for testing.
func OpenInMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, convertLdbErr(err, "failed to open in-memory block store")
	}

	return newStore(db)
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return convertLdbErr(err, "failed to close block store")
	}
	return nil
}

// ConnectBlock atomically stores all of the serialized data for a newly
// connected block: its header, body, undo data, every change to the utxo
// state, and the new tip state.  Either every write succeeds or none do.
func (s *Store) ConnectBlock(rec *BlockRecord) error {
	batch := new(leveldb.Batch)
	batch.Put(heightKey(headerKeyPrefix, rec.Height), rec.Header)
	batch.Put(heightKey(blockKeyPrefix, rec.Height), rec.Block)
	batch.Put(heightKey(undoKeyPrefix, rec.Height), rec.Undo)
	for _, update := range rec.Utxos {
		key := make([]byte, len(utxoKeyPrefix)+len(update.Key))
		copy(key, utxoKeyPrefix)
		copy(key[len(utxoKeyPrefix):], update.Key)
		if update.Serialized == nil {
			batch.Delete(key)
			continue
		}
		batch.Put(key, update.Serialized)
	}
	batch.Put(tipStateKey, rec.TipState)

	if err := s.db.Write(batch, nil); err != nil {
		str := fmt.Sprintf("failed to store block at height %d", rec.Height)
		return convertLdbErr(err, str)
	}

	s.blockCache.Put(rec.Height, rec.Block)

	s.mtx.Lock()
	s.onDiskBytes += uint64(2*(len(blockKeyPrefix)+8) + len(rec.Block) +
		len(rec.Undo))
	if s.lowestRetained == -1 || rec.Height < s.lowestRetained {
		s.lowestRetained = rec.Height
	}
	s.mtx.Unlock()
	return nil
}

// get returns the value for the provided key, mapping leveldb's not found
// error to ErrValueNotFound.
func (s *Store) get(key []byte, what string, height int64) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if err != nil {
		str := fmt.Sprintf("failed to load %s for height %d", what, height)
		return nil, convertLdbErr(err, str)
	}
	return value, nil
}

// Header returns the serialized header for the block at the provided height.
// Headers are retained for every block regardless of pruning.
func (s *Store) Header(height int64) ([]byte, error) {
	return s.get(heightKey(headerKeyPrefix, height), "header", height)
}

// Block returns the serialized body for the block at the provided height.
// It fails with ErrBlockPruned when the body has been discarded per the
// retention policy.
func (s *Store) Block(height int64) ([]byte, error) {
	if block, ok := s.blockCache.Get(height); ok {
		return block, nil
	}

	block, err := s.get(heightKey(blockKeyPrefix, height), "block", height)
	if err != nil {
		if errors.Is(err, ErrValueNotFound) && s.isPrunedHeight(height) {
			str := fmt.Sprintf("block at height %d has been pruned", height)
			return nil, storeError(ErrBlockPruned, str)
		}
		return nil, err
	}

	s.blockCache.Put(height, block)
	return block, nil
}

// Undo returns the serialized undo data for the block at the provided
// height.  It fails with ErrBlockPruned when the data has been discarded per
// the retention policy.
func (s *Store) Undo(height int64) ([]byte, error) {
	undo, err := s.get(heightKey(undoKeyPrefix, height), "undo data", height)
	if err != nil {
		if errors.Is(err, ErrValueNotFound) && s.isPrunedHeight(height) {
			str := fmt.Sprintf("undo data at height %d has been pruned",
				height)
			return nil, storeError(ErrBlockPruned, str)
		}
		return nil, err
	}
	return undo, nil
}

// isPrunedHeight returns whether the provided height is below the lowest
// retained block body.
func (s *Store) isPrunedHeight(height int64) bool {
	s.mtx.RLock()
	pruned := s.lowestRetained != -1 && height < s.lowestRetained
	s.mtx.RUnlock()
	return pruned
}

// HaveBlock returns whether the body for the block at the provided height is
// retained.
func (s *Store) HaveBlock(height int64) bool {
	if _, ok := s.blockCache.Get(height); ok {
		return true
	}
	have, err := s.db.Has(heightKey(blockKeyPrefix, height), nil)
	return err == nil && have
}

// TipState returns the serialized chain tip state, or ErrValueNotFound when
// the store has never connected a block.
func (s *Store) TipState() ([]byte, error) {
	value, err := s.db.Get(tipStateKey, nil)
	if err != nil {
		return nil, convertLdbErr(err, "failed to load tip state")
	}
	return value, nil
}

// ForEachUtxo invokes the provided callback with the serialized key and
// value of every stored utxo entry.  Iteration is in lexicographic key
// order.
func (s *Store) ForEachUtxo(fn func(key, serialized []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(utxoKeyPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		key := make([]byte, len(iter.Key())-len(utxoKeyPrefix))
		copy(key, iter.Key()[len(utxoKeyPrefix):])
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return convertLdbErr(err, "failed to iterate utxo entries")
	}
	return nil
}

// PruneToHeight discards the block bodies and undo data for every height
// strictly below the provided height.  Headers and utxo state are always
// retained.  It returns the number of bytes that were freed.
func (s *Store) PruneToHeight(height int64) (uint64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.lowestRetained == -1 || height <= s.lowestRetained {
		return 0, nil
	}

	var freed uint64
	batch := new(leveldb.Batch)
	for _, prefix := range [][]byte{blockKeyPrefix, undoKeyPrefix} {
		rng := &util.Range{
			Start: heightKey(prefix, 0),
			Limit: heightKey(prefix, height),
		}
		iter := s.db.NewIterator(rng, nil)
		for iter.Next() {
			freed += uint64(len(iter.Key()) + len(iter.Value()))
			keyCopy := make([]byte, len(iter.Key()))
			copy(keyCopy, iter.Key())
			batch.Delete(keyCopy)
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return 0, convertLdbErr(err, "failed to iterate prune range")
		}
	}

	if err := s.db.Write(batch, nil); err != nil {
		str := fmt.Sprintf("failed to prune blocks below height %d", height)
		return 0, convertLdbErr(err, str)
	}

	for h := s.lowestRetained; h < height; h++ {
		s.blockCache.Delete(h)
	}

	s.onDiskBytes -= freed
	s.lowestRetained = height

	log.Infof("Pruned block data below height %d (%d bytes freed)", height,
		freed)
	return freed, nil
}

// Size returns the total number of bytes consumed by retained prunable data
// (block bodies and undo data).
func (s *Store) Size() uint64 {
	s.mtx.RLock()
	size := s.onDiskBytes
	s.mtx.RUnlock()
	return size
}

// LowestBlockHeight returns the lowest height for which the block body is
// still retained, or -1 when the store holds no block bodies.
func (s *Store) LowestBlockHeight() int64 {
	s.mtx.RLock()
	lowest := s.lowestRetained
	s.mtx.RUnlock()
	return lowest
}
