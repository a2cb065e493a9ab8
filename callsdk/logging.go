/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package callsdk holds the pieces shared by every package of the SDK: the
// typed error taxonomy and logger construction.
package callsdk

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig holds the configuration for the SDK logger
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string

	// Format is "json" for production output or "console" for
	// human-readable development output. Default: console.
	Format string
}

// DefaultLogConfig returns a LogConfig with sensible defaults
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  "info",
		Format: "console",
	}
}

// NewLogger builds a zap logger from the given configuration.
func NewLogger(config *LogConfig) (*zap.Logger, error) {
	if config == nil {
		config = DefaultLogConfig()
	}

	level, err := zapcore.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	var zc zap.Config
	switch strings.ToLower(config.Format) {
	case "json":
		zc = zap.NewProductionConfig()
	case "", "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", config.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
