// Package logger wraps logr/zapr into the small API the rest of this module logs through.
package logger

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log wraps logr.Logger so callers depend on this package rather than on zap directly.
type Log struct {
	logr.Logger
}

// New builds a logger for name, writing JSON (production) or colorized console (development)
// output. If logPath is non-empty, output is additionally written to logPath/name.log.
func New(name, logPath string, production bool) (*Log, error) {
	var zc zap.Config
	if production {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.DisableCaller = true
	zc.DisableStacktrace = true

	if logPath != "" {
		if err := os.MkdirAll(logPath, fs.ModeDir); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		zc.OutputPaths = []string{filepath.Join(logPath, fmt.Sprintf("%s.log", name))}
	}

	z, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building zap logger: %w", err)
	}

	return &Log{Logger: zapr.NewLogger(z).WithName(name)}, nil
}

// NewSimple builds a logger against the global zap logger, for call sites without a
// constructed Log to hand down (package-level helpers, init code).
func NewSimple(name string) *Log {
	return &Log{Logger: zapr.NewLogger(zap.L().Named(name))}
}

// New returns a named sub-logger of l.
func (l *Log) New(name string) *Log {
	return &Log{Logger: l.WithName(name)}
}

// Info logs at the default verbosity.
func (l *Log) Info(msg string, args ...interface{}) {
	l.Logger.V(0).WithValues(args...).Info(msg)
}

// Debug logs at verbosity 1.
func (l *Log) Debug(msg string, args ...interface{}) {
	l.Logger.V(1).WithValues(args...).Info(msg)
}

// Trace logs at verbosity 2.
func (l *Log) Trace(msg string, args ...interface{}) {
	l.Logger.V(2).WithValues(args...).Info(msg)
}
