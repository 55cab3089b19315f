package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		enabled  slog.Level
		disabled *slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug, nil},
		{"warn level", "warn", slog.LevelWarn, levelPtr(slog.LevelInfo)},
		{"warning alias", "WARNING", slog.LevelWarn, levelPtr(slog.LevelInfo)},
		{"error level", "error", slog.LevelError, levelPtr(slog.LevelWarn)},
		{"default info", "", slog.LevelInfo, levelPtr(slog.LevelDebug)},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enabled) {
				t.Fatalf("expected level %s to be enabled", tt.enabled)
			}
			if tt.disabled != nil && logger.Enabled(ctx, *tt.disabled) {
				t.Fatalf("expected level %s to be disabled", *tt.disabled)
			}
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	logger.Info("test message", "key", "value")

	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger == Default() {
		t.Error("Default() returned the same instance twice")
	}
}

func TestJSONFormatWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json").With("component", "reminders")
	logger.Info("reminders: sweep finished", "sent", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "reminders" {
		t.Fatalf("expected component field, got %v", entry["component"])
	}
	if entry["msg"] != "reminders: sweep finished" {
		t.Fatalf("unexpected msg %v", entry["msg"])
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")
	logger.Debug("hello", "k", "v")

	out := buf.String()
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "k=v") {
		t.Fatalf("expected text handler output, got %q", out)
	}
}

func levelPtr(l slog.Level) *slog.Level { return &l }
