// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package query exposes the read-only request surface of the chain engine.
// It translates chain state into the verbose result shapes of the wider
// ecosystem and maps engine errors onto a stable error surface.
package query

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/decred/dcrd/blockchain/standalone/v2"

	"github.com/mariocripto/criptotr/blockchain"
)

// Config is a descriptor which specifies the query service configuration.
type Config struct {
	// Chain is the chain instance queries are answered against.
	//
	// This field is required.
	Chain *blockchain.Chain

	// ChainParams identifies the network the chain is associated with.
	//
	// This field is required.
	ChainParams *chaincfg.Params
}

// Service answers read-only queries against a chain instance.  All methods
// are safe for concurrent access.
type Service struct {
	chain       *blockchain.Chain
	chainParams *chaincfg.Params
}

// NewService returns a query service for the provided configuration.
func NewService(config *Config) *Service {
	return &Service{
		chain:       config.Chain,
		chainParams: config.ChainParams,
	}
}

// getDifficultyRatio returns the proof-of-work difficulty as a multiple of
// the minimum difficulty using the passed bits field from the header of a
// block.
func getDifficultyRatio(bits uint32, params *chaincfg.Params) float64 {
	// The minimum difficulty is the max possible proof-of-work limit bits
	// converted back to a number.  Note this is not the same as the proof
	// of work limit directly because the block difficulty is encoded in a
	// block with the compact form which loses precision.
	max := standalone.CompactToBig(params.PowLimitBits)
	target := standalone.CompactToBig(bits)

	difficulty := new(big.Rat).SetFrac(max, target)
	outString := difficulty.FloatString(8)
	diff, err := strconv.ParseFloat(outString, 64)
	if err != nil {
		log.Errorf("Cannot get difficulty: %v", err)
		return 0
	}
	return diff
}

// ChainSummary returns the state of the chain from the point of view of its
// current best block along with the retention policy in effect.
func (s *Service) ChainSummary() (*ChainSummary, error) {
	best := s.chain.BestSnapshot()
	_, bestHeaderHeight := s.chain.BestHeader()

	chainWork, err := s.chain.ChainWork(&best.Hash)
	if err != nil {
		return nil, convertChainErr(err)
	}

	summary := &ChainSummary{
		Chain:                s.chainParams.Name,
		Blocks:               best.Height,
		Headers:              bestHeaderHeight,
		BestBlockHash:        best.Hash.String(),
		Difficulty:           getDifficultyRatio(best.Bits, s.chainParams),
		MedianTime:           best.MedianTime.Unix(),
		VerificationProgress: s.chain.VerifyProgress(),
		InitialBlockDownload: !s.chain.IsCurrent(),
		ChainWork:            fmt.Sprintf("%064x", chainWork),
	}

	info := s.chain.FetchPruneInfo()
	summary.SizeOnDisk = info.SizeOnDisk
	summary.Pruned = info.Pruned
	if info.Pruned {
		pruneHeight := info.PruneHeight
		summary.PruneHeight = &pruneHeight
		automatic := info.Automatic
		summary.AutomaticPruning = &automatic
		if info.Automatic {
			targetSize := info.TargetBytes
			summary.PruneTargetSize = &targetSize
		}
	}

	return summary, nil
}

// UtxoSetSummary returns the aggregate statistics of the unspent transaction
// output set.  The totals, digest, and chain position all describe one
// consistent snapshot.
func (s *Service) UtxoSetSummary() (*UtxoSetSummary, error) {
	info := s.chain.FetchUtxoSetInfo()
	return &UtxoSetSummary{
		Height:          info.Height,
		BestBlock:       info.BestHash.String(),
		Transactions:    int64(info.Stats.TxCount),
		TxOuts:          int64(info.Stats.OutputCount),
		BytesSerialized: info.Stats.SerializedSize,
		HashSerialized:  info.Stats.Digest.String(),
		TotalAmount:     btcutil.Amount(info.Stats.TotalAmount).ToBTC(),
	}, nil
}

// UtxoForKey searches the unspent transaction output set for the first
// output paying to the standard pay-to-pubkey-hash script of the provided
// WIF encoded private key.  Both the compressed and uncompressed forms of
// the public key are considered.
func (s *Service) UtxoForKey(wifKey string) (*UtxoForKeyResult, error) {
	wif, err := btcutil.DecodeWIF(wifKey)
	if err != nil {
		return nil, makeError(ErrInvalidKeyEncoding,
			"Invalid private key encoding")
	}
	if !wif.IsForNet(s.chainParams) {
		return nil, makeError(ErrInvalidKeyEncoding,
			"Invalid private key encoding")
	}

	pubKey := wif.PrivKey.PubKey()
	var pkScripts [][]byte
	for _, serialized := range [][]byte{
		pubKey.SerializeCompressed(), pubKey.SerializeUncompressed(),
	} {
		addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(serialized),
			s.chainParams)
		if err != nil {
			return nil, makeError(ErrInvalidKeyEncoding,
				"Invalid private key encoding")
		}
		pkScript, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, makeError(ErrInvalidKeyEncoding,
				"Invalid private key encoding")
		}
		pkScripts = append(pkScripts, pkScript)
	}

	outpoint, entry, found := s.chain.ScanUtxosByScript(pkScripts)
	if !found {
		return nil, makeError(ErrNoMatchingUtxo, "Unable to find utxo amount")
	}

	return &UtxoForKeyResult{
		Amount: btcutil.Amount(entry.Amount()).ToBTC(),
		Height: int64(entry.BlockHeight()),
		TxID:   outpoint.Hash.String(),
	}, nil
}

// HeaderByHash returns the verbose header of the block with the provided
// hash.
func (s *Service) HeaderByHash(hash *chainhash.Hash) (*BlockHeaderResult, error) {
	_, height, err := s.chain.HeaderByHash(hash)
	if err != nil {
		return nil, convertChainErr(err)
	}
	return s.headerResult(hash, height)
}

// HeaderByHeight returns the verbose header of the main chain block at the
// provided height.
func (s *Service) HeaderByHeight(height int64) (*BlockHeaderResult, error) {
	hash, err := s.chain.BlockHashByHeight(height)
	if err != nil {
		return nil, convertChainErr(err)
	}
	return s.headerResult(&hash, height)
}

// headerResult assembles the verbose header result for the block with the
// provided hash and height.
func (s *Service) headerResult(hash *chainhash.Hash, height int64) (*BlockHeaderResult, error) {
	header, _, err := s.chain.HeaderByHash(hash)
	if err != nil {
		return nil, convertChainErr(err)
	}

	confirmations, err := s.chain.Confirmations(hash)
	if err != nil {
		return nil, convertChainErr(err)
	}

	medianTime, err := s.chain.MedianTimeByHash(hash)
	if err != nil {
		return nil, convertChainErr(err)
	}

	chainWork, err := s.chain.ChainWork(hash)
	if err != nil {
		return nil, convertChainErr(err)
	}

	result := &BlockHeaderResult{
		Hash:          hash.String(),
		Confirmations: confirmations,
		Height:        height,
		Version:       header.Version,
		VersionHex:    fmt.Sprintf("%08x", header.Version),
		MerkleRoot:    header.MerkleRoot.String(),
		Time:          header.Timestamp.Unix(),
		MedianTime:    medianTime.Unix(),
		Nonce:         header.Nonce,
		Bits:          strconv.FormatInt(int64(header.Bits), 16),
		Difficulty:    getDifficultyRatio(header.Bits, s.chainParams),
		ChainWork:     fmt.Sprintf("%064x", chainWork),
	}

	if height > 0 {
		result.PreviousHash = header.PrevBlock.String()
	}

	// The next hash only exists for main chain blocks below the tip.
	best := s.chain.BestSnapshot()
	if confirmations > 0 && height < best.Height {
		nextHash, err := s.chain.BlockHashByHeight(height + 1)
		if err != nil {
			return nil, convertChainErr(err)
		}
		result.NextHash = nextHash.String()
	}

	return result, nil
}

// VerifyChain audits the most recent blockCount blocks of the chain at the
// requested depth level.  See blockchain.Chain.VerifyChain for the level
// semantics.
func (s *Service) VerifyChain(checkLevel, blockCount int64) (bool, error) {
	ok, err := s.chain.VerifyChain(checkLevel, blockCount)
	if err != nil {
		return false, convertChainErr(err)
	}
	return ok, nil
}

// convertChainErr maps chain engine errors onto the query error surface
// while preserving the human-readable description.
func convertChainErr(err error) error {
	var rErr blockchain.RuleError
	if !errors.As(err, &rErr) {
		return err
	}

	switch {
	case errors.Is(err, blockchain.ErrUnknownBlock):
		return makeError(ErrUnknownBlock, rErr.Description)
	case errors.Is(err, blockchain.ErrInvalidArgument):
		return makeError(ErrInvalidParameter, rErr.Description)
	}
	return err
}
