package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"surveysync/internal/config"
)

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveysync.log")

	closer := Setup(config.LogConfig{File: path, MaxSizeMB: 1, MaxBackups: 1})
	t.Cleanup(func() {
		closer.Close()
		log.SetOutput(os.Stderr)
	})

	log.Printf("[Test] hello rotation")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "[Test] hello rotation") {
		t.Errorf("log file = %q", data)
	}
}

func TestSetupWithoutFile(t *testing.T) {
	closer := Setup(config.LogConfig{})
	if err := closer.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
