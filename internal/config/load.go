package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/molee/internal/debug"
	"github.com/Faultbox/molee/internal/terrain"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	t := c.Terrain
	if t.Input == "" && (t.Width <= 0 || t.Height <= 0) {
		return fmt.Errorf("%w: terrain size %dx%d", ErrInvalid, t.Width, t.Height)
	}
	if t.Strategy != "" {
		if _, ok := terrain.ParseStrategy(t.Strategy); !ok {
			return fmt.Errorf("%w: unknown strategy %q", ErrInvalid, t.Strategy)
		}
	}
	if _, ok := terrain.ParseSimplifyMode(t.Simplify); !ok {
		return fmt.Errorf("%w: unknown simplify mode %q", ErrInvalid, t.Simplify)
	}
	if t.MinClusterSize < 0 {
		return fmt.Errorf("%w: min_cluster_size %d", ErrInvalid, t.MinClusterSize)
	}
	if _, err := debug.ParseFormat(c.Debug.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Debug.ExportImages && c.Debug.OutputDir == "" {
		return fmt.Errorf("%w: export_images needs output_dir", ErrInvalid)
	}
	return nil
}

// EnvConfigPath names the environment variable that points at a config file.
// It is consulted after -config and before the search path.
const EnvConfigPath = "MOLEE_CONFIG"

// findConfigFile returns $MOLEE_CONFIG, or the first of ./config.yaml and
// ConfigDir()/config.yaml that exists. An explicit path is returned even when
// missing so the load error names it.
func findConfigFile() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	for _, dir := range []string{".", ConfigDir()} {
		path := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user molee config directory, falling back to the
// system temp directory when no user config location is known.
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil || !filepath.IsAbs(base) {
		base = os.TempDir()
	}
	return filepath.Join(base, "molee")
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
