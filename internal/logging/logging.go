// Package logging builds the process-wide structured logger: zap with
// JSON encoding, ISO8601 timestamps, and an optional additional file
// output path alongside stdout/stderr.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger level, development mode and optional file output.
type Config struct {
	Level       string
	Development bool
	FilePath    string // optional; empty means stdout/stderr only
}

// New builds a zap.Logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("logging: invalid log level %q: %w", cfg.Level, err)
		}
	}

	outputPaths := []string{"stdout"}
	errorPaths := []string{"stderr"}
	if cfg.FilePath != "" {
		outputPaths = append(outputPaths, cfg.FilePath)
		errorPaths = append(errorPaths, cfg.FilePath)
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: cfg.Development,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stack",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputPaths,
		ErrorOutputPaths: errorPaths,
	}

	return zapCfg.Build()
}
