// Package build provides the logging plumbing shared by every bitcoinsim
// binary and library package: a rotating file+stdout writer and a registry
// that hands each package subsystem its own prefixed logger. It mirrors the
// teacher dcrlnd project's build package, adapted to use btcsuite/btclog
// instead of decred/slog.
package build

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// LogType describes how the process writes its log output.
type LogType int

const (
	// LogTypeNone indicates no logging should occur.
	LogTypeNone LogType = iota

	// LogTypeStdOut indicates logs should be written to stdout.
	LogTypeStdOut

	// LogTypeFile indicates logs should be written to stdout and a
	// rotating file under the configured log directory.
	LogTypeFile
)

// LogWriter wraps a rotator so it satisfies io.Writer for btclog's backend.
type LogWriter struct {
	RotatorPipe *rotator.Rotator
}

// Write writes the log bytes to stdout and, if configured, to the rotator.
func (w *LogWriter) Write(b []byte) (int, error) {
	os.Stdout.Write(b)
	if w.RotatorPipe != nil {
		w.RotatorPipe.Write(b)
	}
	return len(b), nil
}

// RotatingLogWriter is the root of the logging system. It owns the backend
// that every subsystem logger is derived from, and keeps track of which
// subsystems have been registered so their levels can be changed in bulk.
type RotatingLogWriter struct {
	backend    *btclog.Backend
	subsystems map[string]btclog.Logger
	logWriter  *LogWriter
}

// NewRotatingLogWriter creates a log writer that logs to stdout. File output
// is added only once InitLogRotator has been called.
func NewRotatingLogWriter() *RotatingLogWriter {
	writer := &LogWriter{}
	return &RotatingLogWriter{
		backend:    btclog.NewBackend(writer),
		subsystems: make(map[string]btclog.Logger),
		logWriter:  writer,
	}
}

// InitLogRotator initializes the log file rotator to write logs to logFile
// and create roll files in the same directory. It must be called before
// the log rotator is used, otherwise logs will only go to stdout.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxLogFileSize, maxLogFiles int) error {
	logDir, _ := splitLogPath(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return err
	}

	rot, err := rotator.New(logFile, int64(maxLogFileSize*1024), false, maxLogFiles)
	if err != nil {
		return err
	}

	r.logWriter.RotatorPipe = rot
	return nil
}

// GenSubLogger is passed to subsystems so they can create their own
// btclog.Logger instances rooted at this writer's backend.
func (r *RotatingLogWriter) GenSubLogger(tag string) btclog.Logger {
	return r.backend.Logger(tag)
}

// RegisterSubLogger saves subsystem loggers so their levels can later be
// changed with SetLogLevels.
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string, logger btclog.Logger) {
	r.subsystems[subsystem] = logger
}

// SetLogLevels applies level to every registered subsystem logger.
func (r *RotatingLogWriter) SetLogLevels(level string) {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return
	}
	for _, logger := range r.subsystems {
		logger.SetLevel(lvl)
	}
}

// NewSubLogger builds a single subsystem logger. If genLogger is nil, a
// disabled placeholder is returned so package-level logger variables are
// always safe to use before SetupLoggers runs.
func NewSubLogger(subsystem string, genLogger func(string) btclog.Logger) btclog.Logger {
	if genLogger == nil {
		return btclog.Disabled
	}
	return genLogger(subsystem)
}

func splitLogPath(path string) (dir, file string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return ".", path
}

var _ io.Writer = (*LogWriter)(nil)
