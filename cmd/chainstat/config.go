// Copyright (c) 2024-2026 The criptotr developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"

	"github.com/mariocripto/criptotr/blockchain"
)

const (
	defaultConfigFilename = "chainstat.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "chainstat.log"
	defaultLogLevel       = "info"

	// minPruneTargetMiB is the smallest byte budget accepted for automatic
	// retention.  Smaller requests cannot hold the reorganization safety
	// margin worth of blocks.
	minPruneTargetMiB = 550
)

var (
	defaultHomeDir    = appDataDir("chainstat")
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// config defines the configuration options for chainstat.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion   bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile    string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir       string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir        string `long:"logdir" description:"Directory to log output"`
	NoFileLogging bool   `long:"nofilelogging" description:"Disable file logging"`
	DebugLevel    string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	RegNet        bool   `long:"regnet" description:"Use the regression test network"`
	Prune         int64  `long:"prune" description:"Retention policy: 0=keep everything, 1=allow manual pruning, >=550=automatically keep block data under N MiB"`
	VerifyLevel   int64  `long:"verify" default:"-1" description:"Run a chain verification at the given level (0-4) after loading and exit"`
	VerifyBlocks  int64  `long:"verifyblocks" description:"Number of most recent blocks to verify, 0 means all retained"`

	// pruneMode and pruneTargetBytes are derived from Prune during load.
	pruneMode        blockchain.PruneMode
	pruneTargetBytes uint64
}

// errSuppressUsage signifies that an error should not print the usage message.
type errSuppressUsage string

// Error implements the error interface.
func (e errSuppressUsage) Error() string {
	return string(e)
}

// appDataDir returns an operating system specific data directory for the
// given application name following the conventions of the host platform.
func appDataDir(appName string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "."
	}
	return filepath.Join(homeDir, "."+appName)
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid",
				debugLevel)
		}

		setLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an "+
				"invalid subsystem/level pair [%v]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]
		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is invalid -- "+
				"supported subsystems %v", subsysID,
				supportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid",
				logLevel)
		}
		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// This function also initializes logging and configures it accordingly.
func loadConfig(appName string) (*config, []string, error) {
	cfg := config{
		ConfigFile:  defaultConfigFile,
		DataDir:     defaultDataDir,
		LogDir:      defaultLogDir,
		DebugLevel:  defaultLogLevel,
		VerifyLevel: -1,
	}

	// Pre-parse the command line options to see if an alternative config
	// file was specified or the version flag was given.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		return nil, nil, err
	}

	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go %s)\n", appName, appVersion,
			runtime.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	if preCfg.ConfigFile != defaultConfigFile || fileExists(preCfg.ConfigFile) {
		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			var e *os.PathError
			if !errors.As(err, &e) {
				return nil, nil, fmt.Errorf("error parsing config file: %w",
					err)
			}
			if preCfg.ConfigFile != defaultConfigFile {
				return nil, nil, fmt.Errorf("config file %q does not "+
					"exist", preCfg.ConfigFile)
			}
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	// Translate the prune option into a retention policy.
	switch {
	case cfg.Prune < 0:
		str := "the prune option may not be negative"
		return nil, nil, errSuppressUsage(str)
	case cfg.Prune == 0:
		cfg.pruneMode = blockchain.PruneDisabled
	case cfg.Prune == 1:
		cfg.pruneMode = blockchain.PruneManual
	case cfg.Prune < minPruneTargetMiB:
		str := fmt.Sprintf("the prune target must be at least %d MiB",
			minPruneTargetMiB)
		return nil, nil, errSuppressUsage(str)
	default:
		cfg.pruneMode = blockchain.PruneAutomatic
		cfg.pruneTargetBytes = uint64(cfg.Prune) * 1024 * 1024
	}

	if cfg.VerifyLevel > 4 {
		str := "the verify level may not exceed 4"
		return nil, nil, errSuppressUsage(str)
	}

	// Initialize log rotation.  After the log rotation has been
	// initialized, the logger variables may be used.
	if !cfg.NoFileLogging {
		initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, errSuppressUsage(fmt.Sprintf("%s: %v", appName, err))
	}

	return &cfg, remainingArgs, nil
}

// activeNetParams returns the network parameters the configuration selects.
func (cfg *config) activeNetParams() *chaincfg.Params {
	if cfg.RegNet {
		return &chaincfg.RegressionNetParams
	}
	return &chaincfg.MainNetParams
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		return !os.IsNotExist(err)
	}
	return true
}
