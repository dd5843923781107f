package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger_WritesToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("workflow advanced", "project_id", "p1", "phase", "pm-prd-generate")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}
	if entry["msg"] != "workflow advanced" {
		t.Errorf("msg = %v, want %q", entry["msg"], "workflow advanced")
	}
	if entry["phase"] != "pm-prd-generate" {
		t.Errorf("phase = %v, want %q", entry["phase"], "pm-prd-generate")
	}
}

func TestNewLogger_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("state directory was not created: %v", err)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.Close()

	f, err := os.Open(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	if lines != 2 {
		t.Errorf("expected 2 log lines at WARN level, got %d", lines)
	}
}

func TestLogger_ChildAttributes(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithProject("p1").WithAgent("pm").WithPhase("questions-generate")
	child.Info("phase started")
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log entry is not valid JSON: %v", err)
	}
	if entry["project_id"] != "p1" {
		t.Errorf("project_id = %v, want p1", entry["project_id"])
	}
	if entry["agent"] != "pm" {
		t.Errorf("agent = %v, want pm", entry["agent"])
	}
	if entry["phase"] != "questions-generate" {
		t.Errorf("phase = %v, want questions-generate", entry["phase"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"Info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	// Should not panic and should be safe with no file backing.
	logger.Info("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger returned error: %v", err)
	}
}
