package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Classtype describes one classification entry: the short name rules use
// in `classtype:` plus a description and default priority.
type Classtype struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Priority    int    `yaml:"priority"`
}

// ClassificationConfig maps classtype names to their entries.
type ClassificationConfig struct {
	Classifications []Classtype `yaml:"classifications"`

	byName map[string]*Classtype
}

// LoadClassification reads a classification YAML file.
func LoadClassification(path string) (*ClassificationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classification file %s: %w", path, err)
	}
	return ParseClassification(data)
}

// ParseClassification decodes classification YAML data.
func ParseClassification(data []byte) (*ClassificationConfig, error) {
	var cfg ClassificationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid classification config: %w", err)
	}
	cfg.byName = make(map[string]*Classtype, len(cfg.Classifications))
	for i := range cfg.Classifications {
		ct := &cfg.Classifications[i]
		if ct.Priority == 0 {
			ct.Priority = 3
		}
		cfg.byName[ct.Name] = ct
	}
	return &cfg, nil
}

// Lookup returns the entry for a classtype name, or nil.
func (c *ClassificationConfig) Lookup(name string) *Classtype {
	if c == nil {
		return nil
	}
	return c.byName[name]
}
