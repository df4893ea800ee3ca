// Package logging provides the structured, leveled logger used across
// the pipeline. It mirrors the call shape of go.viam.com/rdk/logging
// (Infow/Errorw/Debugw with key-value pairs) since that is the logger
// the teacher module is built against, backed here directly by
// go.uber.org/zap since the RDK logging package cannot be imported
// without the rest of the RDK module tree.
package logging

import (
	"go.uber.org/zap"
)

// Logger is the structured logger passed explicitly into every
// component constructor. There is no package-level global logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a production logger at info level, or a development
// logger (debug level, console encoding, caller info) when debug is true.
func New(name string, debug bool) (Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	z, err := cfg.Build()
	if err != nil {
		return Logger{}, err
	}
	return Logger{sugar: z.Named(name).Sugar()}, nil
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() Logger {
	return Logger{sugar: zap.NewNop().Sugar()}
}

// Named returns a child logger scoped to the given component name.
func (l Logger) Named(name string) Logger {
	return Logger{sugar: l.sugar.Named(name)}
}

// Debugw logs at debug level with structured key-value pairs.
func (l Logger) Debugw(msg string, kv ...interface{}) {
	l.sugar.Debugw(msg, kv...)
}

// Infow logs at info level with structured key-value pairs.
func (l Logger) Infow(msg string, kv ...interface{}) {
	l.sugar.Infow(msg, kv...)
}

// Warnw logs at warn level with structured key-value pairs.
func (l Logger) Warnw(msg string, kv ...interface{}) {
	l.sugar.Warnw(msg, kv...)
}

// Errorw logs at error level with structured key-value pairs.
func (l Logger) Errorw(msg string, kv ...interface{}) {
	l.sugar.Errorw(msg, kv...)
}

// Sync flushes any buffered log entries, called once at shutdown.
func (l Logger) Sync() error {
	return l.sugar.Sync()
}
