// Package config provides configuration file parsing for ngic.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside Dir().
const FileName = "config.yaml"

// Dir returns the ngic config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/ngic if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "ngic"), nil
}

// Config holds user defaults. Zero values mean "not set"; command-line flags
// always win over the file.
type Config struct {
	Quality   int    `yaml:"quality"`
	Format    string `yaml:"format"`
	Workers   int    `yaml:"workers"`
	OutputDir string `yaml:"output_dir"`
	Speed     *int   `yaml:"speed"`
	Lossless  bool   `yaml:"lossless"`
	DBPath    string `yaml:"db"`
	History   *bool  `yaml:"history"`
	LogLevel  string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Quality: 85,
		Workers: runtime.NumCPU(),
	}
}

// HistoryEnabled reports whether conversions should be recorded.
func (c *Config) HistoryEnabled() bool {
	return c.History == nil || *c.History
}

// Load reads the config file at path on top of Default(). A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadDefault loads Dir()/config.yaml.
func LoadDefault() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return Load(filepath.Join(dir, FileName))
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Speed != nil && (*c.Speed < 0 || *c.Speed > 10) {
		return fmt.Errorf("speed must be between 0 and 10, got %d", *c.Speed)
	}
	switch strings.ToLower(c.Format) {
	case "", "webp", "avif", "jpeg", "jpg", "png":
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	return nil
}
