package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger writing to stderr. When debug is true, uses development
// config (human-readable, debug level); otherwise uses production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	return newLogger(debug, zapcore.InfoLevel)
}

// NewQuietLogger is NewLogger for commands that own the terminal or stdout (chat,
// mcp, one-shot commands): outside debug mode only warnings and errors are logged.
func NewQuietLogger(debug bool) (*zap.Logger, error) {
	return newLogger(debug, zapcore.WarnLevel)
}

func newLogger(debug bool, level zapcore.Level) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
