// Package config handles viewer configuration loading and management.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Viewer   ViewerConfig   `yaml:"viewer"`
	Kernel   KernelConfig   `yaml:"kernel"`
	Ingest   IngestConfig   `yaml:"ingest"`
	DWG      DWGConfig      `yaml:"dwg"`
	Graphics GraphicsConfig `yaml:"graphics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ViewerConfig holds session-level settings.
type ViewerConfig struct {
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
	Title         string `yaml:"title"`
}

// MaxFileSize returns the upload ceiling in bytes.
func (v ViewerConfig) MaxFileSize() int64 {
	return int64(v.MaxFileSizeMB) << 20
}

// KernelConfig locates and tunes the geometry kernel.
type KernelConfig struct {
	WASMPath          string        `yaml:"wasm_path"` // empty runs without a kernel
	LoadTimeout       time.Duration `yaml:"load_timeout"`
	BinaryTimeout     time.Duration `yaml:"binary_timeout"`
	RawTimeout        time.Duration `yaml:"raw_timeout"`
	LinearDeflection  float64       `yaml:"linear_deflection"`
	AngularDeflection float64       `yaml:"angular_deflection"`
}

// IngestConfig tunes the ingestion pipelines.
type IngestConfig struct {
	ProgressInterval  time.Duration `yaml:"progress_interval"`
	TargetSize        float32       `yaml:"target_size"`
	MinReasonableSize float32       `yaml:"min_reasonable_size"`
	MaxReasonableSize float32       `yaml:"max_reasonable_size"`
}

// DWGConfig selects DWG to DXF converters. The HTTP endpoint, when set, is
// tried before local commands.
type DWGConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Commands []string      `yaml:"commands"`
	Timeout  time.Duration `yaml:"timeout"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Viewer: ViewerConfig{
			MaxFileSizeMB: 200,
			Title:         "cadview",
		},
		Kernel: KernelConfig{
			LoadTimeout:   15 * time.Second,
			BinaryTimeout: 30 * time.Second,
			RawTimeout:    60 * time.Second,
		},
		Ingest: IngestConfig{
			ProgressInterval:  50 * time.Millisecond,
			TargetSize:        10,
			MinReasonableSize: 0.01,
			MaxReasonableSize: 1000,
		},
		DWG: DWGConfig{
			Timeout: 2 * time.Minute,
		},
		Graphics: GraphicsConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
