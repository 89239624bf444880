package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsUserConfigChange(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "conclave")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("defaults:\n  mode: compete\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(configPath, []byte("defaults:\n  mode: merge\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case changed := <-w.Changes():
		if changed != configPath {
			t.Errorf("changed = %q, want %q", changed, configPath)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification within 5s")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "conclave")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("defaults:\n  mode: compete\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	otherPath := filepath.Join(configDir, "scratch.txt")
	if err := os.WriteFile(otherPath, []byte("not config"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case changed := <-w.Changes():
		t.Errorf("unexpected notification for %q", changed)
	case <-time.After(200 * time.Millisecond):
	}
}
