// Package config provides configuration loading for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"weave/internal/ai"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Storage StorageConfig `yaml:"storage"`
	AI      ai.Config     `yaml:"ai"`
	Rag     RagConfig     `yaml:"rag"`
	Canvas  CanvasConfig  `yaml:"canvas"`
}

// StorageConfig holds paths for the database, media files and the index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	DataDir        string `yaml:"data_dir"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// RagConfig holds retrieval and sync settings.
type RagConfig struct {
	SyncSchedule string `yaml:"sync_schedule"` // cron spec, e.g. "@every 15m"
	InboxCorpus  string `yaml:"inbox_corpus"`  // corpus fed by the inbox watcher
	InboxEnabled bool   `yaml:"inbox_enabled"`
}

// CanvasConfig holds interaction tuning.
type CanvasConfig struct {
	ZoomSensitivity float64 `yaml:"zoom_sensitivity"`
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "weave.yaml"
	}
	return filepath.Join(home, ".weave", "config.yaml")
}

// Load reads and parses the config file at path, expands paths, and
// applies defaults. A missing file yields the default configuration
// rather than an error so first launch needs no setup. An unreadable or
// unparseable file also yields the defaults, alongside the error, so
// startup can warn and keep going instead of refusing to launch.
func Load(path string) (*Config, error) {
	var cfg Config
	var loadErr error

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			cfg = Config{}
			loadErr = fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		loadErr = fmt.Errorf("failed to read config: %w", err)
	}

	ApplyDefaults(&cfg)

	base := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, base)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, base)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, base)

	return &cfg, loadErr
}

// ApplyDefaults fills zero values with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "weave.db"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "corpus.bleve"
	}
	if cfg.Rag.SyncSchedule == "" {
		cfg.Rag.SyncSchedule = "@every 15m"
	}
	if cfg.Rag.InboxCorpus == "" {
		cfg.Rag.InboxCorpus = "inbox"
	}
	if cfg.Canvas.ZoomSensitivity == 0 {
		cfg.Canvas.ZoomSensitivity = 0.001
	}
}

// expandPath makes a path absolute: ~ expands to the home directory and
// relative paths resolve against the config file's directory.
func expandPath(path, base string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
