package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
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

// Validate rejects settings the viewer cannot run with.
func (c *Config) Validate() error {
	if c.Viewer.MaxFileSizeMB <= 0 {
		return fmt.Errorf("viewer.max_file_size_mb must be positive, got %d", c.Viewer.MaxFileSizeMB)
	}
	if c.Ingest.TargetSize <= 0 {
		return fmt.Errorf("ingest.target_size must be positive, got %g", c.Ingest.TargetSize)
	}
	if c.Ingest.MinReasonableSize > c.Ingest.MaxReasonableSize {
		return fmt.Errorf("ingest.min_reasonable_size %g exceeds max_reasonable_size %g",
			c.Ingest.MinReasonableSize, c.Ingest.MaxReasonableSize)
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"kernel.load_timeout", c.Kernel.LoadTimeout},
		{"kernel.binary_timeout", c.Kernel.BinaryTimeout},
		{"kernel.raw_timeout", c.Kernel.RawTimeout},
	} {
		if d.v < 0 {
			return fmt.Errorf("%s must not be negative, got %v", d.name, d.v)
		}
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "cadview")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "cadview")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "cadview")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "cadview")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
