// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockstore

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// testRecord returns a block record for the provided height with
// deterministic but distinguishable contents.
func testRecord(height int64) *BlockRecord {
	marker := byte(height)
	return &BlockRecord{
		Height:   height,
		Header:   bytes.Repeat([]byte{marker}, 80),
		Block:    bytes.Repeat([]byte{marker}, 200),
		Undo:     bytes.Repeat([]byte{marker}, 25),
		TipState: []byte{marker, marker},
		Utxos: []UtxoUpdate{{
			Key:        []byte(fmt.Sprintf("outpoint-%03d", height)),
			Serialized: []byte{marker, 0x01},
		}},
	}
}

// TestStoreRoundTrip ensures connected block data can be read back and the
// tip state tracks the most recent record.
func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer store.Close()

	// An empty store has no tip state and no retained blocks.
	if _, err := store.TipState(); !errors.Is(err, ErrValueNotFound) {
		t.Fatalf("unexpected error for empty tip state: %v", err)
	}
	if got := store.LowestBlockHeight(); got != -1 {
		t.Fatalf("unexpected lowest height for empty store: got %d", got)
	}

	for height := int64(1); height <= 5; height++ {
		if err := store.ConnectBlock(testRecord(height)); err != nil {
			t.Fatalf("unexpected error connecting height %d: %v", height, err)
		}
	}

	for height := int64(1); height <= 5; height++ {
		want := testRecord(height)
		header, err := store.Header(height)
		if err != nil {
			t.Fatalf("unexpected error loading header %d: %v", height, err)
		}
		if !bytes.Equal(header, want.Header) {
			t.Fatalf("header mismatch at height %d", height)
		}
		block, err := store.Block(height)
		if err != nil {
			t.Fatalf("unexpected error loading block %d: %v", height, err)
		}
		if !bytes.Equal(block, want.Block) {
			t.Fatalf("block mismatch at height %d", height)
		}
		undo, err := store.Undo(height)
		if err != nil {
			t.Fatalf("unexpected error loading undo %d: %v", height, err)
		}
		if !bytes.Equal(undo, want.Undo) {
			t.Fatalf("undo mismatch at height %d", height)
		}
		if !store.HaveBlock(height) {
			t.Fatalf("block %d not reported as present", height)
		}
	}

	tipState, err := store.TipState()
	if err != nil {
		t.Fatalf("unexpected error loading tip state: %v", err)
	}
	if !bytes.Equal(tipState, testRecord(5).TipState) {
		t.Fatal("tip state does not reflect the most recent record")
	}

	// Reads for heights that were never stored fail with ErrValueNotFound.
	if _, err := store.Block(42); !errors.Is(err, ErrValueNotFound) {
		t.Fatalf("unexpected error for absent block: %v", err)
	}
	if store.HaveBlock(42) {
		t.Fatal("absent block reported as present")
	}
}

// TestStoreUtxoUpdates ensures utxo puts and deletes apply atomically with
// the block record and iterate back in key order.
func TestStoreUtxoUpdates(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer store.Close()

	rec := testRecord(1)
	rec.Utxos = []UtxoUpdate{
		{Key: []byte("bbb"), Serialized: []byte{2}},
		{Key: []byte("aaa"), Serialized: []byte{1}},
		{Key: []byte("ccc"), Serialized: []byte{3}},
	}
	if err := store.ConnectBlock(rec); err != nil {
		t.Fatalf("unexpected error connecting block: %v", err)
	}

	// Delete one entry and modify another with a subsequent record.
	rec2 := testRecord(2)
	rec2.Utxos = []UtxoUpdate{
		{Key: []byte("bbb")},
		{Key: []byte("aaa"), Serialized: []byte{9}},
	}
	if err := store.ConnectBlock(rec2); err != nil {
		t.Fatalf("unexpected error connecting block: %v", err)
	}

	var gotKeys []string
	var gotValues [][]byte
	err = store.ForEachUtxo(func(key, serialized []byte) error {
		gotKeys = append(gotKeys, string(key))
		gotValues = append(gotValues, serialized)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error iterating utxos: %v", err)
	}

	wantKeys := []string{"aaa", "ccc"}
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("unexpected utxo count: got %d, want %d", len(gotKeys),
			len(wantKeys))
	}
	for i, wantKey := range wantKeys {
		if gotKeys[i] != wantKey {
			t.Fatalf("unexpected key at %d: got %q, want %q", i, gotKeys[i],
				wantKey)
		}
	}
	if !bytes.Equal(gotValues[0], []byte{9}) {
		t.Fatal("modified entry does not hold its updated value")
	}
}

// TestStorePrune ensures pruning discards only block bodies and undo data
// below the requested height, frees their accounted size, and marks reads of
// the discarded heights accordingly.
func TestStorePrune(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer store.Close()

	for height := int64(1); height <= 10; height++ {
		if err := store.ConnectBlock(testRecord(height)); err != nil {
			t.Fatalf("unexpected error connecting height %d: %v", height, err)
		}
	}

	sizeBefore := store.Size()
	if sizeBefore == 0 {
		t.Fatal("prunable size not accounted")
	}

	freed, err := store.PruneToHeight(6)
	if err != nil {
		t.Fatalf("unexpected error pruning: %v", err)
	}
	if freed == 0 {
		t.Fatal("prune freed no bytes")
	}
	if got := store.Size(); got != sizeBefore-freed {
		t.Fatalf("size accounting mismatch: got %d, want %d", got,
			sizeBefore-freed)
	}
	if got := store.LowestBlockHeight(); got != 6 {
		t.Fatalf("unexpected lowest height: got %d, want 6", got)
	}

	// Discarded heights report as pruned for bodies and undo data while
	// headers remain readable.
	for height := int64(1); height < 6; height++ {
		if _, err := store.Block(height); !errors.Is(err, ErrBlockPruned) {
			t.Fatalf("unexpected error for pruned block %d: %v", height, err)
		}
		if _, err := store.Undo(height); !errors.Is(err, ErrBlockPruned) {
			t.Fatalf("unexpected error for pruned undo %d: %v", height, err)
		}
		if _, err := store.Header(height); err != nil {
			t.Fatalf("unexpected error for header %d: %v", height, err)
		}
		if store.HaveBlock(height) {
			t.Fatalf("pruned block %d reported as present", height)
		}
	}
	for height := int64(6); height <= 10; height++ {
		if _, err := store.Block(height); err != nil {
			t.Fatalf("unexpected error for retained block %d: %v", height, err)
		}
	}

	// Pruning to a height at or below the current boundary is a no-op.
	freed, err = store.PruneToHeight(4)
	if err != nil {
		t.Fatalf("unexpected error pruning: %v", err)
	}
	if freed != 0 {
		t.Fatalf("no-op prune freed %d bytes", freed)
	}
}

// TestStorePersistence ensures the size accounting and retention boundary
// survive closing and reopening an on-disk store.
func TestStorePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "store")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}

	for height := int64(1); height <= 8; height++ {
		if err := store.ConnectBlock(testRecord(height)); err != nil {
			t.Fatalf("unexpected error connecting height %d: %v", height, err)
		}
	}
	if _, err := store.PruneToHeight(3); err != nil {
		t.Fatalf("unexpected error pruning: %v", err)
	}

	wantSize := store.Size()
	if err := store.Close(); err != nil {
		t.Fatalf("unexpected error closing store: %v", err)
	}

	store, err = Open(dbPath)
	if err != nil {
		t.Fatalf("unexpected error reopening store: %v", err)
	}
	defer store.Close()

	if got := store.Size(); got != wantSize {
		t.Fatalf("size accounting not restored: got %d, want %d", got,
			wantSize)
	}
	if got := store.LowestBlockHeight(); got != 3 {
		t.Fatalf("unexpected lowest height after reopen: got %d, want 3", got)
	}
	if _, err := store.Block(2); !errors.Is(err, ErrBlockPruned) {
		t.Fatalf("unexpected error for pruned block after reopen: %v", err)
	}
	if _, err := store.Block(8); err != nil {
		t.Fatalf("unexpected error for retained block after reopen: %v", err)
	}
}

// TestStoreCorruptKey ensures loading a store over a database containing a
// malformed prunable bucket key fails with ErrCorruption rather than
// silently miscounting the retained data.
func TestStoreCorruptKey(t *testing.T) {
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	if err := store.ConnectBlock(testRecord(1)); err != nil {
		t.Fatalf("unexpected error connecting block: %v", err)
	}

	// Plant a key in the block body bucket that does not parse as a
	// height and rescan the database.
	if err := store.db.Put([]byte("bogus"), []byte{0x01}, nil); err != nil {
		t.Fatalf("unexpected error writing key: %v", err)
	}
	_, err = newStore(store.db)
	if !errors.Is(err, ErrCorruption) {
		t.Fatalf("unexpected error -- got %v, want %v", err, ErrCorruption)
	}
}
