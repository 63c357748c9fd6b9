// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package query

// ChainSummary models the state of the chain from the point of view of its
// current best block together with the retention policy in effect.  The
// field names use the JSON conventions of the wider ecosystem so the result
// can be served over any transport unchanged.
type ChainSummary struct {
	Chain                string  `json:"chain"`
	Blocks               int64   `json:"blocks"`
	Headers              int64   `json:"headers"`
	BestBlockHash        string  `json:"bestblockhash"`
	Difficulty           float64 `json:"difficulty"`
	MedianTime           int64   `json:"mediantime"`
	VerificationProgress float64 `json:"verificationprogress"`
	InitialBlockDownload bool    `json:"initialblockdownload"`
	ChainWork            string  `json:"chainwork"`
	SizeOnDisk           uint64  `json:"size_on_disk"`
	Pruned               bool    `json:"pruned"`

	// PruneHeight is only present when the chain is pruned.
	PruneHeight *int64 `json:"pruneheight,omitempty"`

	// AutomaticPruning is only present when the chain is pruned.
	AutomaticPruning *bool `json:"automatic_pruning,omitempty"`

	// PruneTargetSize is only present when automatic pruning is enabled.
	PruneTargetSize *uint64 `json:"prune_target_size,omitempty"`
}

// UtxoSetSummary models the aggregate statistics of the unspent transaction
// output set.  All fields describe the same consistent snapshot identified
// by Height and BestBlock.
type UtxoSetSummary struct {
	Height          int64   `json:"height"`
	BestBlock       string  `json:"bestblock"`
	Transactions    int64   `json:"transactions"`
	TxOuts          int64   `json:"txouts"`
	BytesSerialized uint64  `json:"bytes_serialized"`
	HashSerialized  string  `json:"hash_serialized"`
	TotalAmount     float64 `json:"total_amount"`
}

// UtxoForKeyResult models the first unspent output paying to a looked up
// private key.
type UtxoForKeyResult struct {
	Amount float64 `json:"amount"`
	Height int64   `json:"height"`
	TxID   string  `json:"txid"`
}

// BlockHeaderResult models a verbose block header.
type BlockHeaderResult struct {
	Hash          string  `json:"hash"`
	Confirmations int64   `json:"confirmations"`
	Height        int64   `json:"height"`
	Version       int32   `json:"version"`
	VersionHex    string  `json:"versionHex"`
	MerkleRoot    string  `json:"merkleroot"`
	Time          int64   `json:"time"`
	MedianTime    int64   `json:"mediantime"`
	Nonce         uint32  `json:"nonce"`
	Bits          string  `json:"bits"`
	Difficulty    float64 `json:"difficulty"`
	ChainWork     string  `json:"chainwork"`

	// PreviousHash is omitted for the genesis block and NextHash for the
	// chain tip.
	PreviousHash string `json:"previousblockhash,omitempty"`
	NextHash     string `json:"nextblockhash,omitempty"`
}
