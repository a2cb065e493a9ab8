/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package callsdk

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("with default config", func(t *testing.T) {
		logger, err := NewLogger(nil)
		if err != nil {
			t.Fatalf("NewLogger returned error: %v", err)
		}
		if !logger.Core().Enabled(zapcore.InfoLevel) {
			t.Error("Expected info level to be enabled")
		}
		if logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("Expected debug level to be disabled by default")
		}
	})

	t.Run("with json format and debug level", func(t *testing.T) {
		logger, err := NewLogger(&LogConfig{Level: "DEBUG", Format: "json"})
		if err != nil {
			t.Fatalf("NewLogger returned error: %v", err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("Expected debug level to be enabled")
		}
	})

	t.Run("with invalid level", func(t *testing.T) {
		if _, err := NewLogger(&LogConfig{Level: "loud"}); err == nil {
			t.Error("Expected error for invalid level")
		}
	})

	t.Run("with invalid format", func(t *testing.T) {
		if _, err := NewLogger(&LogConfig{Level: "info", Format: "xml"}); err == nil {
			t.Error("Expected error for invalid format")
		}
	})
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("Expected non-nil logger")
	}
}
