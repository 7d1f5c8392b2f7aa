// Package config loads the optional .retest.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/msageha/retest/internal/model"
)

// FileName is the configuration file looked up from the working directory.
const FileName = ".retest.yaml"

// ErrNotFound indicates that no config file exists up the directory tree.
var ErrNotFound = errors.New("config file not found")

// Default returns the built-in configuration used when no file exists.
func Default() model.Config {
	cfg := model.Config{}
	applyDefaults(&cfg)
	return cfg
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve start dir: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Load reads and validates a config file, filling defaults for absent fields.
func Load(path string) (model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Config{}, fmt.Errorf("read %s: %w", FileName, err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse %s: %w", FileName, err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return model.Config{}, fmt.Errorf("validate %s: %w", FileName, err)
	}
	return cfg, nil
}

// LoadOrDefault finds and loads the nearest config file; a missing file is
// not an error and yields the defaults.
func LoadOrDefault(startDir string) (model.Config, error) {
	path, err := Find(startDir)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return model.Config{}, err
	}
	return Load(path)
}

func applyDefaults(cfg *model.Config) {
	if cfg.Run.TimeoutSec <= 0 {
		cfg.Run.TimeoutSec = 60
	}
	if cfg.Run.Workers <= 0 {
		cfg.Run.Workers = 4
	}
	if cfg.Run.ExcerptLines <= 0 {
		cfg.Run.ExcerptLines = 20
	}
	if cfg.Watch.DebounceMs <= 0 {
		cfg.Watch.DebounceMs = 500
	}
	if len(cfg.Watch.Ignore) == 0 {
		cfg.Watch.Ignore = []string{
			".git", "node_modules", "vendor", "target",
			"__pycache__", ".venv", "dist", "build",
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func validate(cfg model.Config) error {
	for _, d := range cfg.Ecosystems.Disabled {
		if !model.Ecosystem(d).IsRunnable() {
			return fmt.Errorf("unknown ecosystem %q in ecosystems.disabled", d)
		}
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging level %q", cfg.Logging.Level)
	}
	return nil
}
