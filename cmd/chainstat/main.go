// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// chainstat hosts the pruned chain state engine and reports the state of the
// chain, the unspent output set, and the retention policy it maintains.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mariocripto/criptotr/blockchain"
	"github.com/mariocripto/criptotr/blockstore"
	"github.com/mariocripto/criptotr/query"
)

// appVersion is the version of the application.
const appVersion = "0.1.0"

var cfg *config

// chainstatMain is the real main function for chainstat.  It is necessary to
// work around the fact that deferred functions do not run when os.Exit() is
// called.
func chainstatMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	tcfg, _, err := loadConfig(appName)
	if err != nil {
		usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
		fmt.Fprintln(os.Stderr, err)
		var e errSuppressUsage
		if !errors.As(err, &e) {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	ctx := shutdownListener()
	defer mainLog.Info("Shutdown complete")

	mainLog.Infof("Version %s", appVersion)

	params := cfg.activeNetParams()
	dbPath := filepath.Join(cfg.DataDir, params.Name, "chainstate")
	mainLog.Infof("Loading chain state from %s", dbPath)
	store, err := blockstore.Open(dbPath)
	if err != nil {
		mainLog.Errorf("Unable to open chain state: %v", err)
		return err
	}
	defer func() {
		mainLog.Info("Gracefully shutting down the chain state...")
		if err := store.Close(); err != nil {
			mainLog.Errorf("Problem closing chain state: %v", err)
		}
	}()

	chain, err := blockchain.New(&blockchain.Config{
		ChainParams:      params,
		Store:            store,
		PruneMode:        cfg.pruneMode,
		PruneTargetBytes: cfg.pruneTargetBytes,
	})
	if err != nil {
		mainLog.Errorf("Unable to initialize chain: %v", err)
		return err
	}

	svc := query.NewService(&query.Config{
		Chain:       chain,
		ChainParams: params,
	})

	// An explicit verification request runs the audit and reports the
	// outcome instead of the state summaries.
	if cfg.VerifyLevel >= 0 {
		ok, err := svc.VerifyChain(cfg.VerifyLevel, cfg.VerifyBlocks)
		if err != nil {
			mainLog.Errorf("Chain verification error: %v", err)
			return err
		}
		if !ok {
			err := fmt.Errorf("chain verification at level %d failed",
				cfg.VerifyLevel)
			mainLog.Error(err)
			return err
		}
		mainLog.Infof("Chain verification at level %d succeeded",
			cfg.VerifyLevel)
		return nil
	}

	if shutdownRequested(ctx) {
		return nil
	}

	chainSummary, err := svc.ChainSummary()
	if err != nil {
		mainLog.Errorf("Unable to summarize chain: %v", err)
		return err
	}
	utxoSummary, err := svc.UtxoSetSummary()
	if err != nil {
		mainLog.Errorf("Unable to summarize utxo set: %v", err)
		return err
	}

	report := struct {
		Chain   *query.ChainSummary   `json:"chain"`
		UtxoSet *query.UtxoSetSummary `json:"utxoset"`
	}{chainSummary, utxoSummary}
	out, err := json.MarshalIndent(&report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))

	return nil
}

func main() {
	if err := chainstatMain(); err != nil {
		os.Exit(1)
	}
}
