// Package bslog wraps go.uber.org/zap into the small, verbosity-gated
// logging surface the engine's pipeline stages use. Every externally
// reachable operation logs through here rather than through fmt, so stage
// events (name, file, duration) are structured fields rather than
// formatted strings.
package bslog

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the engine-wide structured logger. The zero value is not
// usable; construct with New or NewDebug.
type Logger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

// New builds a production-configured logger writing JSON to stderr at
// info level, so stdout stays clean for results.
func New() *Logger {
	return build(zapcore.InfoLevel)
}

// NewDebug builds a logger at debug level, used when the caller's
// configuration requests verbose diagnostics.
func NewDebug() *Logger {
	return build(zapcore.DebugLevel)
}

func build(initial zapcore.Level) *Logger {
	level := zap.NewAtomicLevelAt(initial)
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build()
	if err != nil {
		// Fall back to a minimal logger rather than let a logging
		// misconfiguration abort the scan.
		z = zap.NewNop()
	}
	return &Logger{z: z, level: level}
}

// NewNop returns a logger that discards everything, used in tests.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.InvalidLevel)}
}

// SetDebug toggles debug-level verbosity at runtime.
func (l *Logger) SetDebug(on bool) {
	if on {
		l.level.SetLevel(zapcore.DebugLevel)
	} else {
		l.level.SetLevel(zapcore.InfoLevel)
	}
}

// Stage logs a pipeline stage starting or completing.
func (l *Logger) Stage(name string, fields ...zap.Field) {
	l.z.Info(name, fields...)
}

// Debug logs low-level diagnostics, shown only when debug is enabled.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.z.Debug(msg, fields...)
}

// Warn logs a recoverable stage failure (parse/rule/LLM/harness errors
// that were caught and converted into a violation rather than propagated).
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.z.Warn(msg, fields...)
}

// Error logs a request-validation failure or an unexpected internal
// condition that could not be downgraded to a violation.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.z.Error(msg, fields...)
}

// Sync flushes any buffered log entries. Call at process shutdown.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// Timed returns a function that, when called, logs the elapsed duration
// since Timed was invoked under the given stage name.
func (l *Logger) Timed(stage string, fields ...zap.Field) func() {
	start := time.Now()
	return func() {
		all := append(append([]zap.Field{}, fields...), zap.Duration("duration", time.Since(start)))
		l.Stage(stage, all...)
	}
}

// Sensitive redacts a credential-shaped value for inclusion in a log
// field, keeping only a short prefix.
func Sensitive(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return value[:4] + "****"
}
