// Package logger wires the slog API used across the service to a zap core.
package logger

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"research_intake/config"
)

// New builds a JSON (production) or console (development) zap logger at the
// configured level and exposes it as a *slog.Logger. The returned func
// flushes buffered entries.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	var zc zap.Config
	switch cfg.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		zc = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}
	zc.Level = level
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := zc.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build zap logger: %w", err)
	}
	return FromCore(zl.Core()), func() { _ = zl.Sync() }, nil
}

func FromCore(core zapcore.Core) *slog.Logger {
	return slog.New(zapslog.NewHandler(core, &zapslog.HandlerOptions{AddSource: true}))
}

// Setup installs the logger as the slog default.
func Setup(cfg config.LogConfig) (func(), error) {
	l, sync, err := New(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return sync, nil
}
