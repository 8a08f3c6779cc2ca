package main

import (
	"github.com/btcsuite/btclog"

	"github.com/chainwayxyz/bitcoinsim/internal/build"
	"github.com/chainwayxyz/bitcoinsim/ledger"
	"github.com/chainwayxyz/bitcoinsim/rpc"
	"github.com/chainwayxyz/bitcoinsim/store"
)

// replaceableLogger is a thin wrapper around a logger that is used so the
// logger can be replaced easily without some black pointer magic.
type replaceableLogger struct {
	btclog.Logger
	subsystem string
}

// pkgLoggers tracks every package-level logger declared below so
// SetupLoggers can replace them once the root logger is ready.
var pkgLoggers []*replaceableLogger

func addPkgLogger(subsystem string) *replaceableLogger {
	l := &replaceableLogger{
		Logger:    build.NewSubLogger(subsystem, nil),
		subsystem: subsystem,
	}
	pkgLoggers = append(pkgLoggers, l)
	return l
}

var daemonLog = addPkgLogger("BSMD")

// SetupLoggers initializes every subsystem logger, routing it through the
// shared rotating writer once it has been created.
func SetupLoggers(root *build.RotatingLogWriter) {
	for _, l := range pkgLoggers {
		l.Logger = build.NewSubLogger(l.subsystem, root.GenSubLogger)
		root.RegisterSubLogger(l.subsystem, l.Logger)
	}

	AddSubLogger(root, "LEDG", ledger.UseLogger)
	AddSubLogger(root, "RPCS", rpc.UseLogger)
	AddSubLogger(root, "STOR", store.UseLogger)
}

// AddSubLogger creates and registers the logger for one subsystem, handing
// it to every useLogger callback supplied for it.
func AddSubLogger(root *build.RotatingLogWriter, subsystem string, useLoggers ...func(btclog.Logger)) {
	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure defers an expensive log message's construction until the log
// level actually requires it.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
