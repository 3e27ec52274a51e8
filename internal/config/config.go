// Package config loads the optional pagesmith server configuration file.
// Secrets never live here, they are environment-only.
package config

import (
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/pagesmith/internal/conventions"
)

// Config is the validated server configuration.
type Config struct {
	ListenAddr      string
	Owner           string
	Branch          string
	GenerationURL   string
	GenerationModel string
	ConfirmGrace    time.Duration
}

// YAMLRepository loads server configuration from YAML files.
type YAMLRepository struct {
	fs fs.FS
}

// NewYAMLRepository creates a new YAML config repository.
func NewYAMLRepository(filesystem fs.FS) *YAMLRepository {
	return &YAMLRepository{fs: filesystem}
}

// GetConfig loads the configuration from a YAML file and returns a validated
// domain model.
func (r *YAMLRepository) GetConfig(path string) (Config, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg configYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg.toModel()
}

// configYAML represents the YAML structure of the configuration file.
type configYAML struct {
	ListenAddr string `yaml:"listen_addr"`
	Owner      string `yaml:"owner"`
	Branch     string `yaml:"branch"`
	Generation struct {
		URL   string `yaml:"url"`
		Model string `yaml:"model"`
	} `yaml:"generation"`
	ConfirmGrace string `yaml:"confirm_grace"`
}

func (c configYAML) validate() error {
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.Generation.URL == "" {
		return fmt.Errorf("generation.url is required")
	}
	return nil
}

func (c configYAML) toModel() (Config, error) {
	cfg := Config{
		ListenAddr:      c.ListenAddr,
		Owner:           c.Owner,
		Branch:          c.Branch,
		GenerationURL:   c.Generation.URL,
		GenerationModel: c.Generation.Model,
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Branch == "" {
		cfg.Branch = conventions.DefaultBranch
	}

	cfg.ConfirmGrace = conventions.DefaultConfirmGrace
	if c.ConfirmGrace != "" {
		grace, err := time.ParseDuration(c.ConfirmGrace)
		if err != nil {
			return Config{}, fmt.Errorf("invalid confirm_grace: %w", err)
		}
		if grace < 0 {
			return Config{}, fmt.Errorf("confirm_grace can't be negative")
		}
		cfg.ConfirmGrace = grace
	}

	return cfg, nil
}
