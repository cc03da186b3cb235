package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_DefaultsToInfoLevel(t *testing.T) {
	log := New()

	if log == nil {
		t.Fatal("expected logger to be created")
	}
	if log.GetLevel() != slog.LevelInfo {
		t.Errorf("expected default level to be Info, got %v", log.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // Default
		{"", slog.LevelInfo},        // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSlogLogger_ImplementsInterface(t *testing.T) {
	var _ Logger = (*SlogLogger)(nil)
}

func TestSlogLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Level: slog.LevelDebug, Output: &buf})

	log.Warn("member subscription failed", "key", "comp-1")

	output := buf.String()
	if !strings.Contains(output, "WARN") || !strings.Contains(output, "key=comp-1") {
		t.Errorf("unexpected text output: %s", output)
	}
}

func TestSlogLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Level: slog.LevelInfo, Format: "json", Output: &buf})

	log.Info("vote cast", "category", "best-picture")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output, got %s: %v", buf.String(), err)
	}
	if record["msg"] != "vote cast" || record["category"] != "best-picture" {
		t.Errorf("unexpected record %v", record)
	}
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Level: slog.LevelWarn, Output: &buf})

	log.Debug("debug message")
	log.Info("info message")
	if buf.Len() > 0 {
		t.Errorf("expected debug/info to be filtered at WARN level, got: %s", buf.String())
	}

	log.SetLevel(slog.LevelDebug)
	log.Debug("debug message")
	if !strings.Contains(buf.String(), "debug message") {
		t.Error("expected debug message after lowering the level")
	}
}

func TestSlogLogger_WithSharesState(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithOptions(Options{Level: slog.LevelInfo, Output: &buf})
	child := parent.With("view", "home")

	parent.SetLevel(slog.LevelError)
	child.Info("should be filtered")
	if buf.Len() > 0 {
		t.Errorf("expected child to follow parent level, got %s", buf.String())
	}

	parent.EnableHTTPLogging()
	if !child.IsHTTPLoggingEnabled() {
		t.Error("expected child to share HTTP logging toggle")
	}

	child.Error("boom")
	if !strings.Contains(buf.String(), "view=home") {
		t.Errorf("expected child attributes, got %s", buf.String())
	}
}

func TestSlogLogger_HTTPLogging(t *testing.T) {
	log := New()

	if log.IsHTTPLoggingEnabled() {
		t.Error("expected HTTP logging to be disabled by default")
	}
	log.EnableHTTPLogging()
	if !log.IsHTTPLoggingEnabled() {
		t.Error("expected HTTP logging to be enabled")
	}
	log.DisableHTTPLogging()
	if log.IsHTTPLoggingEnabled() {
		t.Error("expected HTTP logging to be disabled")
	}
}

func TestNewDiscard(t *testing.T) {
	log := NewDiscard()
	log.Error("dropped")
	if log.GetLevel() <= slog.LevelError {
		t.Errorf("expected discard logger above error level, got %v", log.GetLevel())
	}
}
