package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	// defaultRPCListen binds to an OS-assigned loopback port by default, so
	// running two nodes side by side never collides, per spec.md §9.
	defaultRPCListen = "127.0.0.1:0"

	// defaultDataDir is where the embedded store and logs live when the
	// caller doesn't override them.
	defaultDataDir = "data"

	defaultStoreFileName = "ledger.db"
	defaultLogFilename   = "bitcoinsimd.log"
	defaultLogLevel      = "info"
	defaultMaxLogFiles   = 3
	defaultMaxLogFileSz  = 10
)

// config holds every flag bitcoinsimd accepts. Field tags follow
// jessevdk/go-flags conventions: long is the --flag name, description shows
// up in --help.
type config struct {
	RPCListen string `long:"rpclisten" description:"host:port to serve JSON-RPC on; port 0 picks a free port"`
	DataDir   string `long:"datadir" description:"directory holding the store file and logs"`
	StorePath string `long:"storefile" description:"path to the SQLite store file; overrides --datadir for storage"`
	LogLevel  string `long:"loglevel" env:"BITCOINSIM_LOGLEVEL" description:"log level for all subsystems (trace, debug, info, warn, error, critical)"`
	NoFileLog bool   `long:"nofilelogging" description:"disable logging to a rotated file; log only to stdout"`
}

// defaultConfig returns a config populated with bitcoinsimd's defaults,
// before flag parsing overrides them.
func defaultConfig() config {
	return config{
		RPCListen: defaultRPCListen,
		DataDir:   defaultDataDir,
		LogLevel:  defaultLogLevel,
	}
}

// loadConfig parses command-line flags on top of the defaults and fills in
// any path defaulted from DataDir.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(cfg.DataDir, defaultStoreFileName)
	}

	return &cfg, nil
}

// logFilePath returns where rotated logs are written for this config.
func (c *config) logFilePath() string {
	return filepath.Join(c.DataDir, "logs", defaultLogFilename)
}
