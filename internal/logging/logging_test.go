package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()

	if filepath.Base(path) != "run.log" {
		t.Errorf("DefaultLogPath should end with run.log, got: %s", path)
	}
	if !strings.Contains(path, ".docingest") {
		t.Errorf("DefaultLogPath should live under .docingest, got: %s", path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("unexpected rotation limits: %d MB, %d files", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if !cfg.Console {
		t.Error("expected console output to be enabled")
	}
	if DebugConfig().Level != "debug" {
		t.Error("expected debug level in DebugConfig")
	}
}

func TestSetup_WritesJSONToFileAndTextToConsole(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	var console bytes.Buffer

	logger, cleanup, err := Setup(Config{
		Level:    "debug",
		FilePath: logPath,
		MaxFiles: 3,
		Console:  true,
		Stderr:   &console,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Info("records_loaded", "count", 3)
	cleanup()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"records_loaded"`) {
		t.Errorf("expected JSON record in file, got: %s", content)
	}
	if !strings.Contains(console.String(), "msg=records_loaded count=3") {
		t.Errorf("expected text record on console, got: %s", console.String())
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	var console bytes.Buffer
	logger, cleanup, err := Setup(Config{Level: "warn", Console: true, Stderr: &console})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(console.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(console.String(), "shown") {
		t.Error("warn record should be written")
	}
}

func TestSetup_NoOutputs(t *testing.T) {
	logger, cleanup, err := Setup(Config{})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	logger.Error("discarded")
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"INFO", "INFO"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
	}

	for _, tt := range tests {
		if got := LevelFromString(tt.input).String(); got != tt.expected {
			t.Errorf("LevelFromString(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "rotate.log")

	w, err := newRotatingWriter(logPath, 1024, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	data := bytes.Repeat([]byte("x"), 800)
	for i := 0; i < 2; i++ {
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(logPath); err != nil {
		t.Error("main log file should exist")
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Error("rotated file .1 should exist")
	}
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "maxfiles.log")

	w, err := newRotatingWriter(logPath, 100, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	data := bytes.Repeat([]byte("y"), 80)
	for i := 0; i < 6; i++ {
		_, _ = w.Write(data)
	}

	for _, suffix := range []string{".1", ".2"} {
		if _, err := os.Stat(logPath + suffix); err != nil {
			t.Errorf("rotated file %s should exist", suffix)
		}
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("rotated file .3 should not exist (beyond maxFiles)")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "closed.log"), 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close should be a no-op, got: %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("write after close should fail")
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")

	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = fmt.Fprintf(w, "writer %d line %d\n", id, j)
			}
		}(i)
	}
	wg.Wait()
	_ = w.Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if got := strings.Count(string(content), "\n"); got != 100 {
		t.Errorf("expected 100 lines, got %d", got)
	}
}
