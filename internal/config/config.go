package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents configuration data for the reachability checker.
type Config struct {
	ListenAddr      string  `yaml:"listen_addr"`
	DataDirectory   string  `yaml:"data_directory"`
	CatalogPath     string  `yaml:"catalog_path"`
	WatchCatalog    bool    `yaml:"watch_catalog"`
	IntervalMinutes int     `yaml:"interval_minutes"`
	HistoryLimit    int     `yaml:"history_limit"`
	Storage         Storage `yaml:"storage"`
	Probe           Probe   `yaml:"probe"`
}

// Storage selects where finished runs are kept.
type Storage struct {
	Driver string `yaml:"driver"`
}

// Probe tunes the reachability probes.
type Probe struct {
	TimeoutMS   int     `yaml:"timeout_ms"`
	Concurrency int     `yaml:"concurrency"`
	LaunchRate  float64 `yaml:"launch_rate"`
}

// Timeout returns the per-probe deadline.
func (p Probe) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// Interval returns the periodic run interval, zero when disabled.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":8080",
		DataDirectory: filepath.Join(".dist", "data"),
		HistoryLimit:  200,
		Storage:       Storage{Driver: "json"},
		Probe: Probe{
			TimeoutMS:   5000,
			Concurrency: 64,
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalise() error {
	defaults := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = defaults.ListenAddr
	}
	if c.DataDirectory == "" {
		c.DataDirectory = defaults.DataDirectory
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaults.HistoryLimit
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaults.Storage.Driver
	}
	if c.Probe.TimeoutMS == 0 {
		c.Probe.TimeoutMS = defaults.Probe.TimeoutMS
	}

	if c.IntervalMinutes < 0 {
		return errors.New("interval_minutes must not be negative")
	}
	switch c.Storage.Driver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("storage driver %q is not supported", c.Storage.Driver)
	}
	if c.Probe.TimeoutMS < 0 {
		return errors.New("probe timeout_ms must be positive")
	}
	if c.Probe.Concurrency < 1 {
		return fmt.Errorf("probe concurrency must be at least 1, got %d", c.Probe.Concurrency)
	}
	if c.Probe.LaunchRate < 0 {
		return errors.New("probe launch_rate must not be negative")
	}
	if c.WatchCatalog && c.CatalogPath == "" {
		return errors.New("watch_catalog requires catalog_path")
	}
	return nil
}
