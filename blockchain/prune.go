// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/mariocripto/criptotr/blockstore"
)

// PruneMode identifies the retention policy for historical block and undo
// data.
type PruneMode int

// The following constants define the supported retention policies.
const (
	// PruneDisabled indicates all historical block and undo data is
	// retained forever.
	PruneDisabled PruneMode = iota

	// PruneManual indicates historical data is only discarded when an
	// operator explicitly requests it.
	PruneManual

	// PruneAutomatic indicates historical data is discarded oldest first
	// whenever the retained data exceeds a configured byte budget.
	PruneAutomatic
)

// String returns the prune mode as a human-readable string.
func (m PruneMode) String() string {
	switch m {
	case PruneDisabled:
		return "disabled"
	case PruneManual:
		return "manual"
	case PruneAutomatic:
		return "automatic"
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// defaultMinRetainBlocks is the default number of most recent blocks whose
// bodies and undo data are never eligible for eviction so that a reasonable
// reorganization depth can always be handled.
const defaultMinRetainBlocks = 288

// pruneManager decides which historical block and undo data may be discarded
// given the configured retention policy and exposes the current retention
// boundaries.
//
// The prune manager is intentionally not safe for concurrent access.  All
// access is expected to be protected by the chain lock of the containing
// Chain, which also serializes eviction against verification tasks that
// depend on the data being evicted.
type pruneManager struct {
	mode            PruneMode
	targetBytes     uint64
	minRetainBlocks int64
	store           *blockstore.Store

	// pruneHeight is the lowest height whose block body is still retained.
	// It is zero until the first eviction and monotonically non-decreasing
	// afterwards.
	pruneHeight int64

	// taskWatermark is the lowest height an in-flight verification task
	// depends on, or -1 when no task is active.  Eviction never discards
	// data at or above the watermark.
	taskWatermark int64
}

// newPruneManager returns a new prune manager for the provided policy backed
// by the provided store.
func newPruneManager(mode PruneMode, targetBytes uint64, minRetain int64,
	store *blockstore.Store) *pruneManager {

	if minRetain <= 0 {
		minRetain = defaultMinRetainBlocks
	}
	return &pruneManager{
		mode:            mode,
		targetBytes:     targetBytes,
		minRetainBlocks: minRetain,
		store:           store,
		taskWatermark:   -1,
	}
}

// evictionCeiling returns the exclusive upper bound of heights that are
// currently eligible for eviction given the provided tip height.  Data within
// the reorganization safety margin below the tip and data pinned by an
// in-flight verification task is never eligible.
func (p *pruneManager) evictionCeiling(tipHeight int64) int64 {
	ceiling := tipHeight - p.minRetainBlocks + 1
	if p.taskWatermark != -1 && p.taskWatermark < ceiling {
		ceiling = p.taskWatermark
	}
	if ceiling < 0 {
		ceiling = 0
	}
	return ceiling
}

// onNewTip recomputes eviction eligibility after the chain tip advanced to
// the provided height.  In automatic mode it discards the oldest retained
// block and undo data until the retained size no longer exceeds the
// configured byte budget.  Other modes never evict from this path.
//
// This function MUST be called with the chain lock held (for writes).
func (p *pruneManager) onNewTip(tipHeight int64) error {
	if p.mode != PruneAutomatic {
		return nil
	}

	ceiling := p.evictionCeiling(tipHeight)
	for p.store.Size() > p.targetBytes {
		lowest := p.store.LowestBlockHeight()
		if lowest == -1 || lowest+1 > ceiling {
			// Nothing more can be evicted without violating the
			// safety margin or an active verification task.
			break
		}

		freed, err := p.store.PruneToHeight(lowest + 1)
		if err != nil {
			return err
		}
		if freed == 0 {
			break
		}
		p.pruneHeight = lowest + 1
	}

	return nil
}

// pruneTo discards block and undo data below the requested height in
// response to an explicit operator request.  The request is clamped to the
// eviction ceiling.  It returns the resulting prune height.
//
// This function MUST be called with the chain lock held (for writes).
func (p *pruneManager) pruneTo(height, tipHeight int64) (int64, error) {
	if ceiling := p.evictionCeiling(tipHeight); height > ceiling {
		height = ceiling
	}
	if height <= p.pruneHeight {
		return p.pruneHeight, nil
	}

	if _, err := p.store.PruneToHeight(height); err != nil {
		return 0, err
	}
	p.pruneHeight = height
	return p.pruneHeight, nil
}

// pinTask records the lowest height an in-flight verification task depends
// on so that eviction defers rather than discarding data the task needs.
//
// This function MUST be called with the chain lock held (for writes).
func (p *pruneManager) pinTask(height int64) {
	p.taskWatermark = height
}

// unpinTask clears the active verification task watermark.
//
// This function MUST be called with the chain lock held (for writes).
func (p *pruneManager) unpinTask() {
	p.taskWatermark = -1
}
