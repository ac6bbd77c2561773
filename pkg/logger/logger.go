// Package logger owns the process-global zap logger. Initialize is called
// once from main; all other packages grab the instance with L().
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// Initialize builds the global logger. Development mode gets a colored
// console encoder; production gets JSON with ISO8601 timestamps.
func Initialize(development bool) error {
	var err error
	once.Do(func() {
		var cfg zap.Config
		if development {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "timestamp"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}

		logger, err = cfg.Build()
	})
	return err
}

// L returns the global logger. Before Initialize (tests, mostly) it falls
// back to a development logger so call sites never nil-check.
func L() *zap.Logger {
	if logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
