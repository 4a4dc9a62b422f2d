// Package config loads the figma-droid YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kataras/figma-droid/pkg/adb"
	"github.com/kataras/figma-droid/pkg/artifact"
	"github.com/kataras/figma-droid/pkg/diff"
	"github.com/kataras/figma-droid/pkg/figma"
	"github.com/kataras/figma-droid/pkg/report"
)

// DefaultFile is the configuration file read when no path is given.
const DefaultFile = "config.yaml"

// Config is the top-level configuration.
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Figma  FigmaConfig  `yaml:"figma"`
	Diff   DiffConfig   `yaml:"diff"`
}

// DeviceConfig selects the Android device.
type DeviceConfig struct {
	Name    string `yaml:"name"` // serial; empty auto-selects the only attached device
	ADBPath string `yaml:"adb_path"`
}

// FigmaConfig controls the reference image source.
type FigmaConfig struct {
	Token   string        `yaml:"token"` // FIGMA_TOKEN is used when empty
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DiffConfig holds the comparison defaults.
type DiffConfig struct {
	OutputDir string      `yaml:"output_dir"`
	GridCols  int         `yaml:"grid_cols"`
	GridRows  int         `yaml:"grid_rows"`
	TopCells  int         `yaml:"top_cells"`
	Zones     []diff.Band `yaml:"zones"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	cfg.defaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

// Load is LoadFile that treats a missing file as an empty one. An empty
// path means DefaultFile.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	cfg, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) defaults() {
	if c.Device.ADBPath == "" {
		c.Device.ADBPath = adb.DefaultPath
	}
	if c.Figma.BaseURL == "" {
		c.Figma.BaseURL = figma.DefaultBaseURL
	}
	if c.Figma.Timeout <= 0 {
		c.Figma.Timeout = figma.DefaultTimeout
	}
	if c.Diff.OutputDir == "" {
		c.Diff.OutputDir = artifact.DefaultDir
	}
	if c.Diff.GridCols <= 0 {
		c.Diff.GridCols = 6
	}
	if c.Diff.GridRows <= 0 {
		c.Diff.GridRows = 10
	}
	if c.Diff.TopCells <= 0 {
		c.Diff.TopCells = report.DefaultTopCells
	}
	if len(c.Diff.Zones) == 0 {
		c.Diff.Zones = diff.DefaultZones()
	}
}

// Validate checks the values defaults cannot repair.
func (c *Config) Validate() error {
	if err := diff.ValidateZones(c.Diff.Zones); err != nil {
		return fmt.Errorf("diff.zones: %w", err)
	}
	return nil
}

// ADBOptions returns the device selection options.
func (c *Config) ADBOptions() adb.Options {
	return adb.Options{Serial: c.Device.Name, ADBPath: c.Device.ADBPath}
}

// FigmaClient builds a reference image client from the Figma section.
func (c *Config) FigmaClient() *figma.Client {
	return figma.NewClient(c.Figma.Token, figma.WithBaseURL(c.Figma.BaseURL), figma.WithTimeout(c.Figma.Timeout))
}
