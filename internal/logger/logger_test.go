package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) (string, func()) {
	dir, err := os.MkdirTemp("", "logger_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	return dir, func() { os.RemoveAll(dir) }
}

// ========================================
// Logger tests
// ========================================

func TestNew_CreatesLevelFiles(t *testing.T) {
	dir, cleanup := setupLogDir(t)
	defer cleanup()

	logDir := filepath.Join(dir, "nested", "logs")
	if _, err := New(logDir); err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, name := range []string{"info.log", "warning.log", "error.log"} {
		if _, err := os.Stat(filepath.Join(logDir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}

func TestLogger_WritesPerLevel(t *testing.T) {
	dir, cleanup := setupLogDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Info("cycle %d done", 3)
	l.Warning("camera %s reconnecting", "north")
	l.Error("write failed")

	tests := []struct {
		file     string
		expected string
	}{
		{"info.log", "cycle 3 done"},
		{"warning.log", "camera north reconnecting"},
		{"error.log", "write failed"},
	}

	for _, tt := range tests {
		data, err := os.ReadFile(filepath.Join(dir, tt.file))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", tt.file, err)
		}
		if !strings.Contains(string(data), tt.expected) {
			t.Errorf("Expected %q in %s, got %q", tt.expected, tt.file, string(data))
		}
	}
}

func TestCleanLogs(t *testing.T) {
	dir, cleanup := setupLogDir(t)
	defer cleanup()

	l, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Warning("to be cleared")

	if err := l.CleanLogs("warning.log"); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "warning.log"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("Expected empty warning.log, got %d bytes", info.Size())
	}
}

func TestCleanLogs_StaysInLogDir(t *testing.T) {
	dir, cleanup := setupLogDir(t)
	defer cleanup()

	l, err := New(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	outside := filepath.Join(dir, "keep.txt")
	os.WriteFile(outside, []byte("data"), 0644)

	if err := l.CleanLogs("../keep.txt"); err == nil {
		t.Error("Expected error for a file outside the log directory")
	}
	data, _ := os.ReadFile(outside)
	if string(data) != "data" {
		t.Error("Expected file outside the log directory untouched")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("ignored")
	if err := l.CleanLogs("info.log"); err != nil {
		t.Errorf("Expected no-op clean, got %v", err)
	}
}
