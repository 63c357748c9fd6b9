// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/blockchain/standalone/v2"
	"github.com/decred/dcrd/math/uint256"

	"github.com/mariocripto/criptotr/blockstore"
)

// BestState houses information about the current best block and other info
// related to the state of the main chain as it exists from the point of view
// of the current best block.
//
// The BestSnapshot method can be used to obtain access to this information
// in a concurrent safe manner and the data will not be changed out from
// under the caller when chain state changes occur as the function name
// implies.  However, the returned snapshot must be treated as immutable
// since it is shared by all callers.
type BestState struct {
	Hash       chainhash.Hash // The hash of the block.
	PrevHash   chainhash.Hash // The previous block hash.
	Height     int64          // The height of the block.
	Bits       uint32         // The difficulty bits of the block.
	BlockSize  uint64         // The size of the block.
	NumTxns    uint64         // The number of txns in the block.
	TotalTxns  uint64         // The total number of txns in the chain.
	MedianTime time.Time      // Median time as per CalcPastMedianTime.
}

// newBestState returns a new best state instance for the given parameters.
func newBestState(node *blockNode, blockSize, numTxns, totalTxns uint64,
	medianTime time.Time) *BestState {

	prevHash := *zeroHash
	if node.parent != nil {
		prevHash = node.parent.hash
	}
	return &BestState{
		Hash:       node.hash,
		PrevHash:   prevHash,
		Height:     node.height,
		Bits:       node.bits,
		BlockSize:  blockSize,
		NumTxns:    numTxns,
		TotalTxns:  totalTxns,
		MedianTime: medianTime,
	}
}

// PruneInfo describes the current retention boundaries of the chain.
type PruneInfo struct {
	// Pruned indicates whether any retention policy is in effect.
	Pruned bool

	// PruneHeight is the lowest height whose block body is still retained.
	PruneHeight int64

	// Automatic indicates whether eviction is driven by a byte budget.
	Automatic bool

	// TargetBytes is the byte budget for automatic mode.  It is only
	// meaningful when Automatic is true.
	TargetBytes uint64

	// SizeOnDisk is the current size of the retained block and undo data.
	SizeOnDisk uint64
}

// UtxoSetInfo houses the aggregate utxo set statistics bound to the chain
// state they reflect.  All fields describe one consistent snapshot: the
// height, digest, and totals all belong to the same best block.
type UtxoSetInfo struct {
	BestHash chainhash.Hash
	Height   int64
	Stats    UtxoSetStats
}

// Config is a descriptor which specifies the blockchain instance
// configuration.
type Config struct {
	// ChainParams identifies which chain parameters the chain is
	// associated with.
	//
	// This field is required.
	ChainParams *chaincfg.Params

	// Store defines the durable storage for block data and chain state.
	//
	// This field is required.
	Store *blockstore.Store

	// PruneMode selects the retention policy for historical block and
	// undo data.
	PruneMode PruneMode

	// PruneTargetBytes is the byte budget for retained block and undo
	// data when PruneMode is PruneAutomatic.  It is ignored otherwise.
	PruneTargetBytes uint64

	// MinRetainBlocks overrides the number of most recent blocks that are
	// never eligible for eviction.  Zero means use the default.
	MinRetainBlocks int64
}

// Chain provides functions for working with the blocks and the pruned chain
// state.  It maintains the block index, the authoritative utxo set, and the
// retention policy, and answers point queries against all of them.
//
// A single writer discipline is enforced: only the block acceptance path
// mutates the chain state while all readers observe a consistent
// point-in-time snapshot under a reader lock.
type Chain struct {
	// The following fields are set when the instance is created and can't
	// be changed afterwards, so there is no need to protect them with a
	// separate mutex.
	chainParams *chaincfg.Params
	store       *blockstore.Store

	// chainLock protects concurrent access to the vast majority of the
	// fields below this point.
	chainLock sync.RWMutex

	// index houses the entire block index.  The block index is a tree
	// shaped structure.
	//
	// bestChain tracks the current active chain by making use of a
	// per-height slice of nodes that forms the single best-chain path of
	// maximal cumulative chainwork.
	index     *blockIndex
	bestChain []*blockNode

	// utxoSet is the authoritative set of unspent transaction outputs of
	// the materialized best chain.
	utxoSet *UtxoSet

	// pruner enforces the configured retention policy.
	pruner *pruneManager

	// These fields house cached state about the current best chain.
	stateSnapshot *BestState
	totalTxns     uint64
}

// tipStateSize is the size of the serialized chain tip state: the best block
// hash followed by the best height and the cumulative transaction count.
const tipStateSize = chainhash.HashSize + 8 + 8

// serializeTipState returns the serialized chain tip state for the provided
// values.
func serializeTipState(hash *chainhash.Hash, height int64, totalTxns uint64) []byte {
	serialized := make([]byte, tipStateSize)
	copy(serialized, hash[:])
	binary.LittleEndian.PutUint64(serialized[chainhash.HashSize:], uint64(height))
	binary.LittleEndian.PutUint64(serialized[chainhash.HashSize+8:], totalTxns)
	return serialized
}

// deserializeTipState decodes the serialized chain tip state.
func deserializeTipState(serialized []byte) (chainhash.Hash, int64, uint64, error) {
	if len(serialized) != tipStateSize {
		return chainhash.Hash{}, 0, 0, AssertError(fmt.Sprintf(
			"malformed tip state length %d", len(serialized)))
	}

	var hash chainhash.Hash
	copy(hash[:], serialized[:chainhash.HashSize])
	height := int64(binary.LittleEndian.Uint64(serialized[chainhash.HashSize:]))
	totalTxns := binary.LittleEndian.Uint64(serialized[chainhash.HashSize+8:])
	return hash, height, totalTxns, nil
}

// New returns a Chain instance using the provided configuration details.
// When the provided store already contains chain state, the block index and
// utxo set are reconstructed from it.
func New(config *Config) (*Chain, error) {
	// Enforce required config fields.
	if config.ChainParams == nil {
		return nil, AssertError("blockchain.New chain parameters nil")
	}
	if config.Store == nil {
		return nil, AssertError("blockchain.New block store nil")
	}

	params := config.ChainParams
	c := &Chain{
		chainParams: params,
		store:       config.Store,
		index:       newBlockIndex(),
		utxoSet:     newUtxoSet(),
		pruner: newPruneManager(config.PruneMode, config.PruneTargetBytes,
			config.MinRetainBlocks, config.Store),
	}

	// Create the genesis node.  The genesis coinbase is unspendable by
	// consensus, so it contributes nothing to the utxo set.
	genesisHeader := params.GenesisBlock.Header
	genesisNode := newBlockNode(&genesisHeader, nil)
	c.index.SetStatusFlags(genesisNode, statusDataStored|statusValidated)
	c.index.AddNode(genesisNode)
	c.bestChain = []*blockNode{genesisNode}

	// Reconstruct any existing chain state from the store.
	if err := c.initChainState(); err != nil {
		return nil, err
	}

	tip := c.bestChain[len(c.bestChain)-1]
	c.stateSnapshot = newBestState(tip, 0, 0, c.totalTxns,
		tip.CalcPastMedianTime())

	// Account for data that was already evicted in a previous run.
	if lowest := c.store.LowestBlockHeight(); lowest > 1 {
		c.pruner.pruneHeight = lowest
	}

	log.Infof("Chain state (height %d, hash %v, total transactions %d)",
		tip.height, tip.hash, c.totalTxns)
	return c, nil
}

// initChainState attempts to load and initialize the chain state from the
// store.  When no state exists, the chain remains at the genesis block.
func (c *Chain) initChainState() error {
	serialized, err := c.store.TipState()
	if err != nil {
		if isNotFoundErr(err) {
			return nil
		}
		return err
	}

	tipHash, tipHeight, totalTxns, err := deserializeTipState(serialized)
	if err != nil {
		return err
	}

	// Rebuild the header index along the best chain.
	for height := int64(1); height <= tipHeight; height++ {
		serializedHeader, err := c.store.Header(height)
		if err != nil {
			return err
		}

		var header wire.BlockHeader
		err = header.Deserialize(bytes.NewReader(serializedHeader))
		if err != nil {
			return AssertError(fmt.Sprintf("failed to deserialize stored "+
				"header at height %d: %v", height, err))
		}

		parent := c.bestChain[height-1]
		if header.PrevBlock != parent.hash {
			return AssertError(fmt.Sprintf("stored header at height %d "+
				"does not connect to its parent", height))
		}

		node := newBlockNode(&header, parent)
		c.index.SetStatusFlags(node, statusValidated)
		if c.store.HaveBlock(height) {
			c.index.SetStatusFlags(node, statusDataStored)
		}
		c.index.AddNode(node)
		c.bestChain = append(c.bestChain, node)
	}

	tip := c.bestChain[len(c.bestChain)-1]
	if tip.hash != tipHash {
		return AssertError(fmt.Sprintf("stored tip state hash %v does not "+
			"match reconstructed tip %v", tipHash, tip.hash))
	}

	// Rebuild the utxo set.
	err = c.store.ForEachUtxo(func(key, serialized []byte) error {
		outpoint, err := parseOutpointKey(key)
		if err != nil {
			return err
		}
		entry, err := deserializeUtxoEntry(serialized)
		if err != nil {
			return err
		}
		c.utxoSet.entries[outpoint] = entry
		return nil
	})
	if err != nil {
		return err
	}

	c.totalTxns = totalTxns
	return nil
}

// isNotFoundErr returns whether the passed error indicates a missing value
// in the block store.
func isNotFoundErr(err error) bool {
	return errors.Is(err, blockstore.ErrValueNotFound)
}

// isPrunedErr returns whether the passed error indicates the block store has
// already discarded the requested data.
func isPrunedErr(err error) bool {
	return errors.Is(err, blockstore.ErrBlockPruned)
}

// ProcessBlock is the main workhorse for handling insertion of new blocks
// into the block chain.  It performs all sanity and contextual validation,
// atomically updates the block index and utxo set together, persists the
// block along with its undo data, and finally re-evaluates the retention
// policy.
//
// On any failure the chain state is left exactly as it was before the
// attempt.
//
// This function is safe for concurrent access.
func (c *Chain) ProcessBlock(block *wire.MsgBlock) error {
	c.chainLock.Lock()
	defer c.chainLock.Unlock()

	blockHash := block.BlockHash()

	// The block must not already exist in the index.
	if node := c.index.LookupNode(&blockHash); node != nil {
		str := fmt.Sprintf("already have block %v", blockHash)
		return ruleError(ErrDuplicateBlock, str)
	}

	// The parent must be known.
	parent := c.index.LookupNode(&block.Header.PrevBlock)
	if parent == nil {
		str := fmt.Sprintf("previous block %v is unknown",
			block.Header.PrevBlock)
		return ruleError(ErrMissingParent, str)
	}

	// Only extensions of the current best chain tip are materialized.
	// Side chain headers may be tracked via AcceptHeader, but block data
	// for them is rejected since reorganization is driven by the external
	// synchronization collaborator.
	tip := c.bestChain[len(c.bestChain)-1]
	if parent != tip {
		str := fmt.Sprintf("block %v extends block %v which is not the "+
			"current best chain tip %v", blockHash,
			block.Header.PrevBlock, tip.hash)
		return ruleError(ErrPrevBlockNotBest, str)
	}

	err := c.checkConnectHeader(&block.Header, parent)
	if err != nil {
		return err
	}

	err = checkBlockSanity(block, c.chainParams.PowLimit)
	if err != nil {
		return err
	}

	node := newBlockNode(&block.Header, parent)

	// Atomically update the utxo set with the transactions in the block.
	// A failure here is a consensus error and leaves the set unchanged.
	stxos, err := c.utxoSet.connectBlock(block, node.height)
	if err != nil {
		return err
	}

	// Persist the block, its undo data, and the utxo changes in a single
	// database transaction.  An error requires rolling the in-memory set
	// back so the whole operation remains all or nothing.
	err = c.store.ConnectBlock(c.assembleBlockRecord(node, block, stxos))
	if err != nil {
		if rbErr := c.utxoSet.disconnectBlock(block, stxos); rbErr != nil {
			return AssertError(fmt.Sprintf("failed to roll back utxo set "+
				"after storage failure %v: %v", err, rbErr))
		}
		return err
	}

	// Extend the block index and the best chain.
	c.index.SetStatusFlags(node, statusDataStored|statusValidated)
	c.index.AddNode(node)
	c.bestChain = append(c.bestChain, node)

	numTxns := uint64(len(block.Transactions))
	c.totalTxns += numTxns
	c.stateSnapshot = newBestState(node, uint64(block.SerializeSize()),
		numTxns, c.totalTxns, node.CalcPastMedianTime())

	// Re-evaluate the retention policy for the new tip.  Eviction failures
	// do not invalidate the connected block.
	prevPruneHeight := c.pruner.pruneHeight
	if err := c.pruner.onNewTip(node.height); err != nil {
		log.Warnf("Prune evaluation failed at height %d: %v", node.height,
			err)
	}
	c.markPruned(prevPruneHeight, c.pruner.pruneHeight)

	log.Debugf("Connected block %v (height %d, %d transactions)", blockHash,
		node.height, numTxns)
	return nil
}

// checkConnectHeader performs the contextual header checks and the chainwork
// overflow check for a header that would build on the provided parent.
func (c *Chain) checkConnectHeader(header *wire.BlockHeader, parent *blockNode) error {
	err := checkBlockHeaderContext(header, parent)
	if err != nil {
		return err
	}

	// Reject headers whose accumulated chainwork can no longer be
	// represented.  This can not happen with real difficulty values, but
	// the accumulator is a contractual part of best chain selection, so
	// fail loudly rather than silently wrapping.
	work := standalone.CalcWork(header.Bits)
	work.Add(work, parent.workSum)
	if work.BitLen() > 256 {
		str := fmt.Sprintf("accumulated chainwork for block %v overflows",
			header.BlockHash())
		return ruleError(ErrChainworkOverflow, str)
	}

	return nil
}

// assembleBlockRecord builds the serialized storage record for a block being
// connected along with the resulting utxo changes.
func (c *Chain) assembleBlockRecord(node *blockNode, block *wire.MsgBlock,
	stxos []spentTxOut) *blockstore.BlockRecord {

	var headerBuf bytes.Buffer
	// The only way serialization to a buffer can fail is by running out
	// of memory which would panic anyway.
	if err := block.Header.Serialize(&headerBuf); err != nil {
		panic(err)
	}
	var blockBuf bytes.Buffer
	if err := block.Serialize(&blockBuf); err != nil {
		panic(err)
	}

	// Every output a block spends is deleted from the stored utxo state
	// and every output it creates that is still unspent after the block is
	// inserted.  Outputs both created and spent within the block are
	// deleted keys that never existed, which the database treats as a
	// no-op.
	var updates []blockstore.UtxoUpdate
	for _, tx := range block.Transactions {
		if !IsCoinBaseTx(tx) {
			for _, txIn := range tx.TxIn {
				key := outpointKey(txIn.PreviousOutPoint)
				updates = append(updates, blockstore.UtxoUpdate{
					Key: key[:],
				})
			}
		}

		txHash := tx.TxHash()
		for txOutIdx := range tx.TxOut {
			outpoint := wire.OutPoint{Hash: txHash, Index: uint32(txOutIdx)}
			entry := c.utxoSet.LookupEntry(outpoint)
			if entry == nil {
				// Unspendable or spent later in the same block.
				continue
			}
			key := outpointKey(outpoint)
			updates = append(updates, blockstore.UtxoUpdate{
				Key:        key[:],
				Serialized: serializeUtxoEntry(entry),
			})
		}
	}

	return &blockstore.BlockRecord{
		Height:   node.height,
		Header:   headerBuf.Bytes(),
		Block:    blockBuf.Bytes(),
		Undo:     serializeSpendJournalEntry(stxos),
		Utxos:    updates,
		TipState: serializeTipState(&node.hash, node.height, c.totalTxns+
			uint64(len(block.Transactions))),
	}
}

// AcceptHeader adds the provided header to the block index after performing
// the contextual header checks.  Headers that extend side chains are
// accepted so the index forms a tree, however only blocks that extend the
// best chain tip are materialized via ProcessBlock.
//
// This function is safe for concurrent access.
func (c *Chain) AcceptHeader(header *wire.BlockHeader) error {
	c.chainLock.Lock()
	defer c.chainLock.Unlock()

	headerHash := header.BlockHash()
	if node := c.index.LookupNode(&headerHash); node != nil {
		str := fmt.Sprintf("already have header %v", headerHash)
		return ruleError(ErrDuplicateBlock, str)
	}

	parent := c.index.LookupNode(&header.PrevBlock)
	if parent == nil {
		str := fmt.Sprintf("previous block %v is unknown", header.PrevBlock)
		return ruleError(ErrMissingParent, str)
	}

	err := checkBlockHeaderSanity(header, c.chainParams.PowLimit)
	if err != nil {
		return err
	}
	err = c.checkConnectHeader(header, parent)
	if err != nil {
		return err
	}

	c.index.AddNode(newBlockNode(header, parent))
	return nil
}

// BestSnapshot returns information about the current best chain block and
// related state as of the current point in time.  The returned instance must
// be treated as immutable since it is shared by all callers.
//
// This function is safe for concurrent access.
func (c *Chain) BestSnapshot() *BestState {
	c.chainLock.RLock()
	snapshot := c.stateSnapshot
	c.chainLock.RUnlock()
	return snapshot
}

// MainChainHasBlock returns whether or not the block with the given hash is
// in the main chain.
//
// This function is safe for concurrent access.
func (c *Chain) MainChainHasBlock(hash *chainhash.Hash) bool {
	c.chainLock.RLock()
	node := c.index.LookupNode(hash)
	onChain := node != nil && c.mainChainNodeByHeight(node.height) == node
	c.chainLock.RUnlock()
	return onChain
}

// mainChainNodeByHeight returns the main chain node at the provided height
// or nil when the height is out of range.
//
// This function MUST be called with the chain lock held (for reads).
func (c *Chain) mainChainNodeByHeight(height int64) *blockNode {
	if height < 0 || height >= int64(len(c.bestChain)) {
		return nil
	}
	return c.bestChain[height]
}

// HeaderByHash returns the block header identified by the given hash along
// with its height.
//
// This function is safe for concurrent access.
func (c *Chain) HeaderByHash(hash *chainhash.Hash) (wire.BlockHeader, int64, error) {
	node := c.index.LookupNode(hash)
	if node == nil {
		str := fmt.Sprintf("block %v is not known", hash)
		return wire.BlockHeader{}, 0, ruleError(ErrUnknownBlock, str)
	}

	return node.Header(), node.height, nil
}

// HeaderByHeight returns the block header of the main chain block at the
// given height.
//
// This function is safe for concurrent access.
func (c *Chain) HeaderByHeight(height int64) (wire.BlockHeader, error) {
	c.chainLock.RLock()
	node := c.mainChainNodeByHeight(height)
	c.chainLock.RUnlock()
	if node == nil {
		str := fmt.Sprintf("no block at height %d exists", height)
		return wire.BlockHeader{}, ruleError(ErrUnknownBlock, str)
	}

	return node.Header(), nil
}

// BlockHashByHeight returns the hash of the main chain block at the given
// height.
//
// This function is safe for concurrent access.
func (c *Chain) BlockHashByHeight(height int64) (chainhash.Hash, error) {
	c.chainLock.RLock()
	node := c.mainChainNodeByHeight(height)
	c.chainLock.RUnlock()
	if node == nil {
		str := fmt.Sprintf("no block at height %d exists", height)
		return chainhash.Hash{}, ruleError(ErrUnknownBlock, str)
	}

	return node.hash, nil
}

// Confirmations returns the number of confirmations for the block with the
// given hash: one for the best tip itself plus one for every block built on
// top of it.  Blocks that are not part of the best chain have zero
// confirmations.
//
// This function is safe for concurrent access.
func (c *Chain) Confirmations(hash *chainhash.Hash) (int64, error) {
	c.chainLock.RLock()
	defer c.chainLock.RUnlock()

	node := c.index.LookupNode(hash)
	if node == nil {
		str := fmt.Sprintf("block %v is not known", hash)
		return 0, ruleError(ErrUnknownBlock, str)
	}
	if c.mainChainNodeByHeight(node.height) != node {
		return 0, nil
	}

	tip := c.bestChain[len(c.bestChain)-1]
	return tip.height - node.height + 1, nil
}

// ChainWork returns the total work up to and including the block of the
// provided block hash.
//
// This function is safe for concurrent access.
func (c *Chain) ChainWork(hash *chainhash.Hash) (uint256.Uint256, error) {
	node := c.index.LookupNode(hash)
	if node == nil {
		str := fmt.Sprintf("block %v is not known", hash)
		return uint256.Uint256{}, ruleError(ErrUnknownBlock, str)
	}

	return *new(uint256.Uint256).SetBig(node.workSum), nil
}

// MedianTimeByHash returns the median time of a block by the given hash or
// an error if it doesn't exist.
//
// This function is safe for concurrent access.
func (c *Chain) MedianTimeByHash(hash *chainhash.Hash) (time.Time, error) {
	node := c.index.LookupNode(hash)
	if node == nil {
		str := fmt.Sprintf("block %v is not known", hash)
		return time.Time{}, ruleError(ErrUnknownBlock, str)
	}

	return node.CalcPastMedianTime(), nil
}

// BestHeader returns the hash and height of the header with the most
// cumulative work that is tracked by the block index.
//
// This function is safe for concurrent access.
func (c *Chain) BestHeader() (chainhash.Hash, int64) {
	header := c.index.BestHeader()
	return header.hash, header.height
}

// IsCurrent returns whether or not the chain believes it is current based on
// how recent the best block's timestamp is.
//
// This function is safe for concurrent access.
func (c *Chain) IsCurrent() bool {
	c.chainLock.RLock()
	tip := c.bestChain[len(c.bestChain)-1]
	c.chainLock.RUnlock()

	minus24Hours := time.Now().Add(-24 * time.Hour).Unix()
	return tip.timestamp >= minus24Hours
}

// VerifyProgress returns an estimate of the portion of the chain that has
// been fully validated relative to the best known header.
//
// This function is safe for concurrent access.
func (c *Chain) VerifyProgress() float64 {
	_, bestHeaderHeight := c.BestHeader()
	if bestHeaderHeight == 0 {
		return 1.0
	}

	tip := c.BestSnapshot()
	progress := float64(tip.Height) / float64(bestHeaderHeight)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// FetchUtxoEntry returns unspent transaction output information for the
// passed transaction output.  It will return nil when the output is spent or
// does not exist.  The returned entry is a deep copy, so it is safe to use
// without holding any locks.
//
// This function is safe for concurrent access.
func (c *Chain) FetchUtxoEntry(outpoint wire.OutPoint) *UtxoEntry {
	c.chainLock.RLock()
	entry := c.utxoSet.LookupEntry(outpoint).Clone()
	c.chainLock.RUnlock()
	return entry
}

// FetchUtxoSetInfo computes the aggregate statistics and digest of the utxo
// set bound to the chain state it reflects.  The height, digest, and totals
// all describe the same tip since the entire computation happens under a
// single read lock, so the result is never a torn read across a concurrent
// block connection.
//
// This function is safe for concurrent access.
func (c *Chain) FetchUtxoSetInfo() *UtxoSetInfo {
	c.chainLock.RLock()
	defer c.chainLock.RUnlock()

	tip := c.bestChain[len(c.bestChain)-1]
	return &UtxoSetInfo{
		BestHash: tip.hash,
		Height:   tip.height,
		Stats:    c.utxoSet.stats(),
	}
}

// ScanUtxosByScript searches the utxo set for the first unspent output whose
// public key script matches any of the provided candidate scripts.  Matches
// are produced in lexicographic outpoint key order which serves as the
// deterministic tie-break when multiple unspent outputs pay the same script.
// The returned entry is a deep copy.
//
// This function is safe for concurrent access.
func (c *Chain) ScanUtxosByScript(pkScripts [][]byte) (wire.OutPoint, *UtxoEntry, bool) {
	c.chainLock.RLock()
	defer c.chainLock.RUnlock()

	var foundOutpoint wire.OutPoint
	var foundEntry *UtxoEntry
	c.utxoSet.forEachOrdered(func(outpoint wire.OutPoint, entry *UtxoEntry) bool {
		for _, script := range pkScripts {
			if bytes.Equal(entry.pkScript, script) {
				foundOutpoint = outpoint
				foundEntry = entry.Clone()
				return false
			}
		}
		return true
	})

	return foundOutpoint, foundEntry, foundEntry != nil
}

// FetchPruneInfo returns the current retention boundaries of the chain.
//
// This function is safe for concurrent access.
func (c *Chain) FetchPruneInfo() PruneInfo {
	c.chainLock.RLock()
	defer c.chainLock.RUnlock()

	return PruneInfo{
		Pruned:      c.pruner.mode != PruneDisabled,
		PruneHeight: c.pruner.pruneHeight,
		Automatic:   c.pruner.mode == PruneAutomatic,
		TargetBytes: c.pruner.targetBytes,
		SizeOnDisk:  c.store.Size(),
	}
}

// PruneTo discards historical block and undo data below the requested height
// in response to an explicit operator request.  It is only available in
// manual retention mode.  The request is clamped so that data within the
// reorganization safety margin or required by an in-flight verification task
// is never discarded.  It returns the resulting prune height.
//
// This function is safe for concurrent access.
func (c *Chain) PruneTo(height int64) (int64, error) {
	c.chainLock.Lock()
	defer c.chainLock.Unlock()

	if c.pruner.mode != PruneManual {
		str := fmt.Sprintf("cannot prune manually in %v retention mode",
			c.pruner.mode)
		return 0, ruleError(ErrInvalidArgument, str)
	}

	tip := c.bestChain[len(c.bestChain)-1]
	prevPruneHeight := c.pruner.pruneHeight
	pruneHeight, err := c.pruner.pruneTo(height, tip.height)
	if err != nil {
		return 0, err
	}
	c.markPruned(prevPruneHeight, pruneHeight)
	return pruneHeight, nil
}

// markPruned clears the data stored flag of the main chain nodes in the
// height range [from, to) after their bodies and undo data have been evicted.
//
// This function MUST be called with the chain lock held (for writes).
func (c *Chain) markPruned(from, to int64) {
	if from < 1 {
		from = 1
	}
	for height := from; height < to; height++ {
		c.index.UnsetStatusFlags(c.bestChain[height], statusDataStored)
	}
}

// ChainParams returns the network parameters of the chain.
func (c *Chain) ChainParams() *chaincfg.Params {
	return c.chainParams
}
