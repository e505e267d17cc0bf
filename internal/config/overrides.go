package config

import (
	"fmt"
	"os"

	"harvester/internal/core/behavior"
	"harvester/internal/core/device"
	"harvester/internal/core/strategy"
	"harvester/internal/core/validate"

	"gopkg.in/yaml.v3"
)

// Overrides is the optional YAML file that replaces the built-in policy
// data wholesale: validation rules, device catalog, strategy set and
// behavior pacing. Absent sections keep their defaults.
type Overrides struct {
	Validation *validate.Rules     `yaml:"validation"`
	Devices    []device.Profile    `yaml:"devices"`
	Strategies []strategy.Strategy `yaml:"strategies"`
	Behavior   *behavior.Config    `yaml:"behavior"`
}

func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	return &o, nil
}
