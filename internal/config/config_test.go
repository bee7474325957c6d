package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config should not error: %v", err)
	}
	if cfg.Rag.SyncSchedule != "@every 15m" {
		t.Errorf("sync schedule = %q", cfg.Rag.SyncSchedule)
	}
	if cfg.Canvas.ZoomSensitivity != 0.001 {
		t.Errorf("zoom sensitivity = %v", cfg.Canvas.ZoomSensitivity)
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database path not expanded: %q", cfg.Storage.DatabasePath)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "rag:\n  sync_schedule: \"@every 1h\"\nstorage:\n  database_path: custom.db\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Rag.SyncSchedule != "@every 1h" {
		t.Errorf("sync schedule = %q", cfg.Rag.SyncSchedule)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "custom.db") {
		t.Errorf("database path = %q", cfg.Storage.DatabasePath)
	}
	// unspecified values still defaulted
	if cfg.Rag.InboxCorpus != "inbox" {
		t.Errorf("inbox corpus = %q", cfg.Rag.InboxCorpus)
	}
}

func TestLoadBadYAMLFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err == nil {
		t.Error("expected the parse error to be reported")
	}
	// the error is advisory: a full default config comes back with it
	if cfg == nil {
		t.Fatal("broken config must still yield a usable configuration")
	}
	if cfg.Rag.SyncSchedule != "@every 15m" {
		t.Errorf("sync schedule = %q, want the default", cfg.Rag.SyncSchedule)
	}
	if cfg.Canvas.ZoomSensitivity != 0.001 {
		t.Errorf("zoom sensitivity = %v, want the default", cfg.Canvas.ZoomSensitivity)
	}
}
