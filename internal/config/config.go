// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"pii-anonymizer/internal/anonymizer"
	"pii-anonymizer/internal/classifier"
	"pii-anonymizer/internal/detector"
	"pii-anonymizer/internal/generator"
	"pii-anonymizer/internal/paths"

	"gopkg.in/yaml.v3"
)

// Detection strategies
const (
	StrategyPattern = "pattern"
	StrategyModel   = "model"
)

// Config represents the application configuration
type Config struct {
	// Default settings
	Defaults struct {
		Mode     string `yaml:"mode"`
		MaskChar string `yaml:"mask_char"`
		Debug    bool   `yaml:"debug"`
		NoColor  bool   `yaml:"no_color"`
		// Observability is one of off, metrics or debug
		Observability string `yaml:"observability"`
	} `yaml:"defaults"`

	// Storage locations for the mapping ledger and master key
	Storage struct {
		LedgerPath string `yaml:"ledger_path"`
		KeyPath    string `yaml:"key_path"`
	} `yaml:"storage"`

	Detection struct {
		Strategy   string              `yaml:"strategy"`
		MinLengths map[string]int      `yaml:"min_lengths"`
		Patterns   map[string][]string `yaml:"patterns"`
	} `yaml:"detection"`

	// Token classification model settings, used by the model strategy
	Model struct {
		Dir           string `yaml:"dir"`
		SeqLen        int    `yaml:"seq_len"`
		SharedLibrary string `yaml:"shared_library"`
		LowerCase     bool   `yaml:"lower_case"`
	} `yaml:"model"`

	Generator struct {
		YearMin int `yaml:"year_min"`
		YearMax int `yaml:"year_max"`
	} `yaml:"generator"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.Defaults.Mode = "replace"
	config.Defaults.MaskChar = "█"
	config.Defaults.Observability = "metrics"
	config.Storage.LedgerPath = paths.GetLedgerFile()
	config.Storage.KeyPath = paths.GetKeyFile()
	config.Detection.Strategy = StrategyPattern
	config.Model.SeqLen = classifier.DefaultSeqLen
	config.Model.LowerCase = true
	config.Generator.YearMin = generator.DefaultYearMin
	config.Generator.YearMax = generator.DefaultYearMax
	return config
}

// LoadConfig loads configuration from a file; an empty path yields the defaults
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	cleanPath := filepath.Clean(configPath)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	defaultLowerCase := config.Model.LowerCase

	if err := checkRootMapping(data); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// yaml leaves an absent bool false
	if !containsField(data, "model", "lower_case") {
		config.Model.LowerCase = defaultLowerCase
	}

	applyPathDefaults(config)

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads configFile (or searches standard locations when it
// is empty) and falls back to the defaults when loading fails. The error, if
// any, is returned alongside so callers can warn about it.
func LoadConfigOrDefault(configFile string) (*Config, error) {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

// FindConfigFile looks for a configuration file in the current directory, the
// XDG config directory and the home directory, in that order. It returns ""
// when none exists.
func FindConfigFile() string {
	candidates := []string{
		".pii-anonymizer.yaml",
		".pii-anonymizer.yml",
		paths.GetConfigFile(),
		paths.GetHomeConfigFile(),
	}
	for _, candidate := range candidates {
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

// ValidateConfig checks a configuration for consistency
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if _, err := anonymizer.ParseMode(config.Defaults.Mode); err != nil {
		return fmt.Errorf("defaults.mode: %w", err)
	}
	if utf8.RuneCountInString(config.Defaults.MaskChar) != 1 {
		return fmt.Errorf("defaults.mask_char must be a single character, got %q", config.Defaults.MaskChar)
	}
	switch strings.ToLower(config.Defaults.Observability) {
	case "", "off", "metrics", "debug":
	default:
		return fmt.Errorf("defaults.observability: unknown level %q", config.Defaults.Observability)
	}

	switch config.Detection.Strategy {
	case StrategyPattern:
	case StrategyModel:
		if config.Model.Dir == "" {
			return fmt.Errorf("detection.strategy %q requires model.dir", StrategyModel)
		}
	default:
		return fmt.Errorf("detection.strategy: unknown strategy %q (expected %s or %s)",
			config.Detection.Strategy, StrategyPattern, StrategyModel)
	}

	if _, err := config.MinLengths(); err != nil {
		return err
	}
	if _, err := config.ExtraPatterns(); err != nil {
		return err
	}

	if config.Model.SeqLen < 8 {
		return fmt.Errorf("model.seq_len must be at least 8, got %d", config.Model.SeqLen)
	}
	if config.Generator.YearMin > config.Generator.YearMax {
		return fmt.Errorf("generator.year_min %d is after generator.year_max %d",
			config.Generator.YearMin, config.Generator.YearMax)
	}
	if config.Storage.LedgerPath == "" || config.Storage.KeyPath == "" {
		return fmt.Errorf("storage.ledger_path and storage.key_path must be set")
	}
	return nil
}

// MinLengths resolves detection.min_lengths onto categories.
func (c *Config) MinLengths() (map[detector.Category]int, error) {
	out := make(map[detector.Category]int, len(c.Detection.MinLengths))
	for name, n := range c.Detection.MinLengths {
		category, err := detector.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("detection.min_lengths: %w", err)
		}
		if n < 1 {
			return nil, fmt.Errorf("detection.min_lengths.%s must be positive, got %d", name, n)
		}
		out[category] = n
	}
	return out, nil
}

// ExtraPatterns resolves detection.patterns onto categories, compiling each
// expression once to reject invalid ones early.
func (c *Config) ExtraPatterns() (map[detector.Category][]string, error) {
	out := make(map[detector.Category][]string, len(c.Detection.Patterns))
	for name, exprs := range c.Detection.Patterns {
		category, err := detector.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("detection.patterns: %w", err)
		}
		for _, expr := range exprs {
			if _, err := regexp.Compile(expr); err != nil {
				return nil, fmt.Errorf("detection.patterns.%s: invalid expression %q: %w", name, expr, err)
			}
		}
		out[category] = append(out[category], exprs...)
	}
	return out, nil
}

// applyPathDefaults fills empty storage paths and expands "~".
func applyPathDefaults(config *Config) {
	if config.Storage.LedgerPath == "" {
		config.Storage.LedgerPath = paths.GetLedgerFile()
	}
	if config.Storage.KeyPath == "" {
		config.Storage.KeyPath = paths.GetKeyFile()
	}
	config.Storage.LedgerPath = paths.ExpandHome(config.Storage.LedgerPath)
	config.Storage.KeyPath = paths.ExpandHome(config.Storage.KeyPath)
	config.Model.Dir = paths.ExpandHome(config.Model.Dir)
	config.Model.SharedLibrary = paths.ExpandHome(config.Model.SharedLibrary)
}

// checkRootMapping rejects documents whose top level is not a mapping.
// An empty document is accepted and leaves the defaults in place.
func checkRootMapping(data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil
	}
	top := root.Content[0]
	if top.Kind == yaml.ScalarNode && top.Tag == "!!null" {
		return nil
	}
	if top.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: top level must be a mapping of sections", top.Line)
	}
	return nil
}

// containsField checks if a nested field exists in the YAML data
func containsField(data []byte, path ...string) bool {
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return false
	}

	current := yamlData
	for i, key := range path {
		if i == len(path)-1 {
			_, exists := current[key]
			return exists
		}
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return false
		}
		current = next
	}
	return false
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
