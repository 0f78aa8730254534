// Package config loads .gts-typecheck.yaml project settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/gts-typecheck/pkg/typecheck"
)

// FileName is the config file Discover looks for.
const FileName = ".gts-typecheck.yaml"

type (
	// Config holds project-level check settings. Command-line flags
	// override it.
	Config struct {
		Path                 string   `yaml:"-"`
		ImplicitImports      []string `yaml:"implicit_imports,omitempty"`
		TrustOnDemandImports bool     `yaml:"trust_on_demand_imports,omitempty"`
		Workers              int      `yaml:"workers,omitempty"`
		Rules                []string `yaml:"rules,omitempty"`
		Ignore               []string `yaml:"ignore,omitempty"`
		Baseline             string   `yaml:"baseline,omitempty"`
		Log                  Log      `yaml:"log,omitempty"`
	}

	Log struct {
		Level  string `yaml:"level,omitempty"`
		Format string `yaml:"format,omitempty"`
	}
)

// Default returns the settings used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.Init()
	return cfg
}

// Load reads and validates the config file at path. Unknown keys are an
// error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path
	if abs, absErr := filepath.Abs(path); absErr == nil {
		cfg.Path = abs
	}
	cfg.Init()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Discover looks for FileName in dir and its parents and loads the first
// one found. Without a config file it returns Default().
func Discover(dir string) (*Config, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(current); statErr == nil && !info.IsDir() {
		current = filepath.Dir(current)
	}

	for {
		candidate := filepath.Join(current, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return Default(), nil
		}
		current = parent
	}
}

// Init fills defaults and resolves the baseline path against the config
// file's directory.
func (c *Config) Init() {
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.Log.Format) == "" {
		c.Log.Format = "text"
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Baseline != "" && c.Path != "" && !filepath.IsAbs(c.Baseline) {
		c.Baseline = filepath.Join(filepath.Dir(c.Path), c.Baseline)
	}
}

// Validate validates config
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	for _, name := range c.ImplicitImports {
		if strings.TrimSpace(name) == "" {
			return errors.New("implicit import cannot be empty")
		}
	}
	return nil
}

// CheckOptions returns the resolver options described by the config.
func (c *Config) CheckOptions() typecheck.Options {
	return typecheck.Options{
		ImplicitImports:      append([]string(nil), c.ImplicitImports...),
		TrustOnDemandImports: c.TrustOnDemandImports,
		Workers:              c.Workers,
	}
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
