// Package mlog builds the process logger. The logger is passed to every
// component through its options; there is no package-level logger.
package mlog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects level, encoding and destination.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default is info.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Production selects the JSON encoder. Otherwise output is console text.
	Production bool `yaml:"production"`

	// File, if set, receives log output instead of stderr.
	File string `yaml:"file"`
}

// NewLogger builds a logger from lc.
func NewLogger(lc *LogConfig) (*zap.Logger, error) {
	level := lc.Level
	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var cfg zap.Config
	if lc.Production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = lvl

	if lc.File != "" {
		cfg.OutputPaths = []string{lc.File}
		cfg.ErrorOutputPaths = []string{lc.File}
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return cfg.Build()
}
