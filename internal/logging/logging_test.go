package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "shouting"}); err == nil {
		t.Fatalf("expected error for invalid log level")
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	logger, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug enabled at the default level, want info")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info disabled at the default level")
	}
}

func TestNewWritesToFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odin.log")
	logger, err := New(Config{FilePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("file output check")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "file output check") {
		t.Fatalf("log file does not contain the logged message")
	}
}
