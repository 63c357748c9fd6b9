// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/blockchain/standalone/v2"

	"github.com/mariocripto/criptotr/blockstore"
)

// testSubsidy is the coinbase payout used by the generated test chains.
const testSubsidy = 500000 * 1e8

// testMinerKeyBytes is the fixed private key the test harness mines to so
// generated coins can be spent deterministically.
var testMinerKeyBytes = []byte{
	0x2b, 0x8c, 0x52, 0xb7, 0x7b, 0x32, 0x7c, 0x75,
	0x5b, 0x9b, 0x37, 0x55, 0x33, 0x71, 0x93, 0x1e,
	0x8a, 0x93, 0x5a, 0x0d, 0x1d, 0x96, 0x80, 0x4c,
	0x71, 0x8a, 0x5e, 0x95, 0x26, 0x8b, 0x21, 0x80,
}

// spendableOut represents an unspent output the test harness knows how to
// spend.
type spendableOut struct {
	outpoint wire.OutPoint
	amount   int64
	pkScript []byte
}

// chainHarness provides a chain instance backed by an in-memory store along
// with facilities to generate a valid chain of blocks on top of it.
type chainHarness struct {
	t      *testing.T
	chain  *Chain
	store  *blockstore.Store
	params *chaincfg.Params

	minerKey    *btcec.PrivateKey
	minerScript []byte

	tipHeader wire.BlockHeader
	tipHeight int64
	spendable []spendableOut
}

// p2pkhScript returns a standard pay-to-pubkey-hash script for the provided
// serialized public key.
func p2pkhScript(t *testing.T, params *chaincfg.Params, serializedPubKey []byte) []byte {
	t.Helper()

	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(serializedPubKey),
		params)
	if err != nil {
		t.Fatalf("unexpected error creating address: %v", err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		t.Fatalf("unexpected error creating script: %v", err)
	}
	return pkScript
}

// newChainHarness returns a chain harness with the provided retention policy
// applied, initialized to the regression test network genesis block.
func newChainHarness(t *testing.T, pruneMode PruneMode, pruneTarget uint64) *chainHarness {
	t.Helper()

	store, err := blockstore.OpenInMemory()
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return newChainHarnessWithStore(t, store, pruneMode, pruneTarget)
}

// newChainHarnessWithStore is like newChainHarness except it uses the
// provided store, which allows tests to exercise reloading existing chain
// state.  The caller retains responsibility for closing the store.
func newChainHarnessWithStore(t *testing.T, store *blockstore.Store,
	pruneMode PruneMode, pruneTarget uint64) *chainHarness {

	t.Helper()

	params := &chaincfg.RegressionNetParams
	chain, err := New(&Config{
		ChainParams:      params,
		Store:            store,
		PruneMode:        pruneMode,
		PruneTargetBytes: pruneTarget,
		MinRetainBlocks:  10,
	})
	if err != nil {
		t.Fatalf("unexpected error creating chain: %v", err)
	}

	minerKey, _ := btcec.PrivKeyFromBytes(testMinerKeyBytes)
	h := &chainHarness{
		t:           t,
		chain:       chain,
		store:       store,
		params:      params,
		minerKey:    minerKey,
		minerScript: p2pkhScript(t, params, minerKey.PubKey().SerializeCompressed()),
		tipHeader:   params.GenesisBlock.Header,
	}

	// Sync the harness bookkeeping with any chain state that was reloaded
	// from the store.
	best := chain.BestSnapshot()
	if best.Height > 0 {
		header, err := chain.HeaderByHeight(best.Height)
		if err != nil {
			t.Fatalf("unexpected error fetching tip header: %v", err)
		}
		h.tipHeader = header
		h.tipHeight = best.Height
	}
	return h
}

// solveBlock finds a nonce for the provided header that satisfies its
// committed difficulty.  The regression test network difficulty admits half
// of all hashes, so the search terminates almost immediately.
func solveBlock(t *testing.T, header *wire.BlockHeader) {
	t.Helper()

	target := standalone.CompactToBig(header.Bits)
	for nonce := uint32(0); nonce < 1<<24; nonce++ {
		header.Nonce = nonce
		hash := header.BlockHash()
		if hashToBig(&hash).Cmp(target) <= 0 {
			return
		}
	}
	t.Fatal("unable to solve block")
}

// createCoinbaseTx returns a coinbase transaction paying the test subsidy to
// the provided script.  The height is encoded into the signature script so
// every generated coinbase has a unique hash.
func createCoinbaseTx(height int64, pkScript []byte) *wire.MsgTx {
	sigScript := make([]byte, 8)
	binary.LittleEndian.PutUint64(sigScript, uint64(height))

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{},
			wire.MaxPrevOutIndex),
		SignatureScript: sigScript,
		Sequence:        wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{Value: testSubsidy, PkScript: pkScript})
	return tx
}

// buildBlock assembles and solves a block on top of the current tip
// containing a coinbase plus the provided transactions.  It does not submit
// the block to the chain.
func (h *chainHarness) buildBlock(txns ...*wire.MsgTx) *wire.MsgBlock {
	h.t.Helper()

	blockTxns := make([]*wire.MsgTx, 0, len(txns)+1)
	blockTxns = append(blockTxns, createCoinbaseTx(h.tipHeight+1, h.minerScript))
	blockTxns = append(blockTxns, txns...)

	header := wire.BlockHeader{
		Version:    1,
		PrevBlock:  h.tipHeader.BlockHash(),
		MerkleRoot: calcMerkleRoot(blockTxns),
		Timestamp:  h.tipHeader.Timestamp.Add(time.Minute),
		Bits:       h.params.GenesisBlock.Header.Bits,
	}
	solveBlock(h.t, &header)

	block := &wire.MsgBlock{Header: header}
	for _, tx := range blockTxns {
		block.AddTransaction(tx)
	}
	return block
}

// acceptBlock submits the provided block to the chain and requires success.
// The harness bookkeeping is updated to reflect the new tip and the outputs
// that became spendable.
func (h *chainHarness) acceptBlock(block *wire.MsgBlock) {
	h.t.Helper()

	if err := h.chain.ProcessBlock(block); err != nil {
		t := h.t
		t.Fatalf("unexpected error processing block at height %d: %v",
			h.tipHeight+1, err)
	}

	h.tipHeader = block.Header
	h.tipHeight++
	coinbase := block.Transactions[0]
	h.spendable = append(h.spendable, spendableOut{
		outpoint: wire.OutPoint{Hash: coinbase.TxHash()},
		amount:   coinbase.TxOut[0].Value,
		pkScript: coinbase.TxOut[0].PkScript,
	})
}

// generate extends the best chain with the provided number of blocks
// containing only a coinbase.
func (h *chainHarness) generate(numBlocks int) {
	h.t.Helper()

	for i := 0; i < numBlocks; i++ {
		h.acceptBlock(h.buildBlock())
	}
}

// createPaymentTx spends the oldest harness-tracked unspent output and pays
// the provided amount to the provided script with the remainder returned to
// the miner script.  The input is signed so the transaction passes full
// script validation.
func (h *chainHarness) createPaymentTx(pkScript []byte, amount int64) *wire.MsgTx {
	h.t.Helper()

	if len(h.spendable) == 0 {
		h.t.Fatal("no spendable outputs available")
	}
	source := h.spendable[0]
	h.spendable = h.spendable[1:]
	if source.amount < amount {
		h.t.Fatalf("spendable output value %d short of %d", source.amount,
			amount)
	}

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: source.outpoint,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{Value: amount, PkScript: pkScript})
	tx.AddTxOut(&wire.TxOut{
		Value:    source.amount - amount,
		PkScript: h.minerScript,
	})

	sigScript, err := txscript.SignatureScript(tx, 0, source.pkScript,
		txscript.SigHashAll, h.minerKey, true)
	if err != nil {
		h.t.Fatalf("unexpected error signing transaction: %v", err)
	}
	tx.TxIn[0].SignatureScript = sigScript
	return tx
}

// assertTipHeight requires the chain tip to be at the provided height.
func (h *chainHarness) assertTipHeight(wantHeight int64) {
	h.t.Helper()

	best := h.chain.BestSnapshot()
	if best.Height != wantHeight {
		h.t.Fatalf("unexpected tip height: got %d, want %d", best.Height,
			wantHeight)
	}
}

// lowPowLimit is a difficulty limit that no hash can satisfy.  It is useful
// for constructing headers that fail the proof of work check.
var lowPowLimit = big.NewInt(1)
