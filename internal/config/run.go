package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RunFile describes a multi-region settlement run.
type RunFile struct {
	RunID       string      `yaml:"run_id" validate:"required"`
	Description string      `yaml:"description"`
	Regions     []RegionRun `yaml:"regions" validate:"required,min=1,dive"`
}

// RegionRun is one region of a run. RulesDatabase, when set, names the fare
// rules database on the configured cluster; otherwise the latest import for
// Key is used.
type RegionRun struct {
	Key           string `yaml:"key" validate:"required"`
	Itineraries   string `yaml:"itineraries" validate:"required"`
	Output        string `yaml:"output" validate:"required"`
	RulesDatabase string `yaml:"rules_database"`
}

// LoadRunFile reads and validates a YAML run file.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validator.New().Struct(rf); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	seen := map[string]bool{}
	for _, r := range rf.Regions {
		if seen[r.Key] {
			return nil, fmt.Errorf("validate %s: region %q listed twice", path, r.Key)
		}
		seen[r.Key] = true
	}
	return &rf, nil
}

// Regions returns the region runs of the configuration: the run file's when
// one is configured, else a single run built from the environment.
func (c *Config) Regions() (string, []RegionRun, error) {
	if c.RunConfigPath == "" {
		return "", []RegionRun{{Key: c.Region, Itineraries: c.ItinerariesPath, Output: c.OutputPath}}, nil
	}
	rf, err := LoadRunFile(c.RunConfigPath)
	if err != nil {
		return "", nil, err
	}
	return rf.RunID, rf.Regions, nil
}
