// Package config handles engine configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/afonot/suricata/internal/log"
)

// Config is the top-level static configuration. Maps to the root of the
// YAML config file.
type Config struct {
	Detect         DetectConfig `mapstructure:"detect"`
	Log            log.Config   `mapstructure:"log"`
	RuleFiles      []string     `mapstructure:"rule_files"`
	Classification string       `mapstructure:"classification_file"`
}

// DetectConfig carries the settings consumed by the detect engine build.
type DetectConfig struct {
	// Prefilter selection mode: "mpm" (fast-pattern only) or "auto"
	// (fall back to any prefilter-capable keyword).
	Prefilter string `mapstructure:"prefilter"`

	// StrictKeywords enables strict parsing globally ("all") or for a
	// comma list of keyword names.
	StrictKeywords string `mapstructure:"strict_keywords"`

	// RejectCapability is true when the process holds raw-packet
	// injection capability; reject rules are refused without it.
	RejectCapability bool `mapstructure:"reject_capability"`

	// Features declared for the `requires` keyword, e.g. "output::file-store".
	Features []string `mapstructure:"features"`

	// Version reported to `requires: version >= X` checks.
	Version string `mapstructure:"version"`
}

// PrefilterAuto reports whether prefilter auto-selection is enabled.
func (c *DetectConfig) PrefilterAuto() bool {
	return strings.EqualFold(c.Prefilter, "auto")
}

// HasFeature reports whether a `requires` feature is declared.
func (c *DetectConfig) HasFeature(name string) bool {
	for _, f := range c.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Load reads and decodes the config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("detect.prefilter", "mpm")
	v.SetDefault("detect.version", "8.0.0")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Detect: DetectConfig{
			Prefilter: "mpm",
			Version:   "8.0.0",
		},
		Log: log.Config{Level: "info"},
	}
}
