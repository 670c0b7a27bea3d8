// Package loggertest provides in-memory loggers for asserting on log output.
package loggertest

import (
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/longregen/memoir/internal/platform/logger"
)

// New returns a logger that records every entry at debug level and above
func New(redact bool) (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewWithCore(core, redact, ""), logs
}
