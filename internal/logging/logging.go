// Package logging sets up the process-wide zap.Logger used by every
// long-lived component (canvas, each painter's supervisor, the image
// manager): structured fields instead of format strings, one logger per
// component via Logger.With.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console-encoded zap.Logger at the given level, suitable
// for an interactive terminal (the operator watching reconnects and
// frame arrivals scroll by).
func New(verbose bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}
