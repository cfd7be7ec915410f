package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds the global configuration for a render run
type Config struct {
	// Input settings
	InputFile     string // .osm.pbf extract
	RelationsFile string // text file with one relation ID per line
	WaysFile      string // text file with one way ID per line

	// Output settings
	OutputFile string // SVG output path (empty = stdout)
	StyleFile  string // path to style YAML file for document stroke settings

	// Rendering settings
	Scale     float64 // output pixels per projected meter
	Precision int     // decimal places for emitted coordinates

	// Processing settings
	Workers       int
	NodeIndexFile string // path for the mmap node store (empty = in-memory)
	WayCacheSize  int    // entries in the assembled-way LRU cache

	// Logging and metrics
	Verbose         bool
	LogFile         string        // path to log file (empty = no file logging)
	MetricsInterval time.Duration // interval for system metrics logging (0 = disabled)
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scale:           0.01, // ~1px per 100m at the equator
		Precision:       2,
		Workers:         runtime.NumCPU(),
		WayCacheSize:    16384,
		Verbose:         false,
		LogFile:         "",
		MetricsInterval: 0,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.RelationsFile == "" && c.WaysFile == "" {
		return fmt.Errorf("at least one of --relations or --ways is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Scale <= 0 {
		return fmt.Errorf("scale must be positive")
	}
	if c.Precision < 0 || c.Precision > 10 {
		return fmt.Errorf("precision must be between 0 and 10")
	}
	if c.WayCacheSize < 1 {
		return fmt.Errorf("way cache size must be at least 1")
	}
	return nil
}
