// Package pprof profiles the detection tools themselves. File mode
// snapshots profiles periodically while an episode or benchmark runs;
// HTTP mode serves the standard pprof endpoints for on-demand collection
// from long benchmarks.
package pprof

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ModeType selects how profiles leave the process.
type ModeType string

const (
	// ModeFile writes profile data to files at regular intervals.
	ModeFile ModeType = "file"
	// ModeHTTP exposes pprof endpoints via HTTP for on-demand collection.
	ModeHTTP ModeType = "http"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

var allProfileTypes = []ProfileType{
	ProfileCPU, ProfileHeap, ProfileGoroutine, ProfileBlock, ProfileMutex, ProfileAllocs,
}

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return slices.Clone(allProfileTypes)
}

// DefaultProfileTypes returns the profile types collected when the flag
// is left empty. Goroutine profiles matter here because every process in
// a job is a goroutine parked in a polling loop.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap, ProfileGoroutine}
}

// ParseProfileTypes parses a comma-separated flag value into profile types.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if s == "" {
		return DefaultProfileTypes(), nil
	}

	var types []ProfileType
	for _, p := range strings.Split(s, ",") {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(p)))
		if !slices.Contains(allProfileTypes, pt) {
			return nil, fmt.Errorf("unknown profile type: %q", p)
		}
		types = append(types, pt)
	}
	return types, nil
}

// Config holds the self-profiling configuration.
type Config struct {
	Enabled   bool          `mapstructure:"enabled"`
	Mode      ModeType      `mapstructure:"mode"`
	Profiles  []ProfileType `mapstructure:"profiles"`
	OutputDir string        `mapstructure:"output_dir"`

	FileConfig *FileConfig `mapstructure:"file"`
	HTTPConfig *HTTPConfig `mapstructure:"http"`
}

// FileConfig tunes the periodic snapshot loop of file mode.
type FileConfig struct {
	// Interval is the time between profile snapshots.
	Interval time.Duration `mapstructure:"interval"`

	// CPUDuration is how long each CPU capture runs. It must fit inside
	// Interval so captures never overlap.
	CPUDuration time.Duration `mapstructure:"cpu_duration"`

	// MaxFiles caps the snapshot files kept per profile type.
	MaxFiles int `mapstructure:"max_files"`

	// AutoRotate removes the oldest snapshots once MaxFiles is reached.
	AutoRotate bool `mapstructure:"auto_rotate"`
}

// HTTPConfig tunes the pprof endpoint server of HTTP mode.
type HTTPConfig struct {
	// Addr is the listen address.
	Addr string `mapstructure:"addr"`

	// Path is the URL prefix for the pprof endpoints.
	Path string `mapstructure:"path"`

	// DefaultSeconds is the CPU capture length when a request has no
	// seconds parameter.
	DefaultSeconds int `mapstructure:"default_seconds"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Mode:      ModeFile,
		Profiles:  DefaultProfileTypes(),
		OutputDir: "./pprof",
		FileConfig: &FileConfig{
			Interval:    30 * time.Second,
			CPUDuration: 10 * time.Second,
			MaxFiles:    10,
			AutoRotate:  true,
		},
		HTTPConfig: &HTTPConfig{
			Addr:           ":6060",
			Path:           "/debug/pprof",
			DefaultSeconds: 30,
		},
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Mode != ModeFile && c.Mode != ModeHTTP {
		return fmt.Errorf("invalid pprof mode: %q (valid: file, http)", c.Mode)
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile type must be specified")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}

	switch c.Mode {
	case ModeFile:
		if fc := c.FileConfig; fc != nil {
			return fc.validate()
		}
	case ModeHTTP:
		if hc := c.HTTPConfig; hc != nil && hc.Addr == "" {
			return fmt.Errorf("HTTP address is required")
		}
	}
	return nil
}

func (fc *FileConfig) validate() error {
	if fc.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1 second")
	}
	if fc.CPUDuration < time.Second {
		return fmt.Errorf("CPU duration must be at least 1 second")
	}
	if fc.CPUDuration >= fc.Interval {
		return fmt.Errorf("CPU duration must be less than interval")
	}
	return nil
}

// HasProfile checks if a profile type is enabled.
func (c *Config) HasProfile(pt ProfileType) bool {
	return slices.Contains(c.Profiles, pt)
}
