// Command bitcoinsimd runs the sandboxed Ledger Engine as a standalone
// daemon: it opens the Persistence Store, wires up the Ledger Facade, and
// serves the JSON-RPC 2.0 surface of spec.md §6 until signaled to stop.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainwayxyz/bitcoinsim/internal/build"
	"github.com/chainwayxyz/bitcoinsim/ledger"
	"github.com/chainwayxyz/bitcoinsim/netparams"
	"github.com/chainwayxyz/bitcoinsim/rpc"
	"github.com/chainwayxyz/bitcoinsim/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bitcoinsimd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logWriter := build.NewRotatingLogWriter()
	if !cfg.NoFileLog {
		if err := logWriter.InitLogRotator(cfg.logFilePath(), defaultMaxLogFileSz, defaultMaxLogFiles); err != nil {
			return fmt.Errorf("initializing log rotator: %w", err)
		}
	}
	SetupLoggers(logWriter)
	logWriter.SetLogLevels(cfg.LogLevel)

	daemonLog.Infof("opening store at %s", cfg.StorePath)
	st, created, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if created {
		daemonLog.Infof("initialized new ledger at %s", cfg.StorePath)
	} else {
		daemonLog.Infof("attached to existing ledger at %s", cfg.StorePath)
	}

	params := netparams.Default()
	ledg := ledger.New(st, params)

	srv := rpc.NewServer(ledg, params.Net)
	bound, err := srv.Start(cfg.RPCListen)
	if err != nil {
		return fmt.Errorf("starting rpc server: %w", err)
	}
	defer srv.Stop()

	daemonLog.Infof("rpc server listening on %s", bound)
	fmt.Println(bound)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	daemonLog.Infof("shutting down")
	return nil
}
