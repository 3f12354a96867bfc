package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models codestreak.yml.
type Config struct {
	Judge struct {
		BaseURL        string `yaml:"base_url"`
		HistoryLimit   int    `yaml:"history_limit"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"judge"`
	Pipeline struct {
		MaxPerRun int `yaml:"max_per_run"`
		PacingMS  int `yaml:"pacing_ms"`
	} `yaml:"pipeline"`
	Auth struct {
		AdminPassword string `yaml:"admin_password"`
	} `yaml:"auth"`
}

const (
	defaultJudgeBaseURL = "https://alfa-leetcode-api.onrender.com"
	defaultHistoryLimit = 1000
	defaultTimeoutSecs  = 15
	defaultMaxPerRun    = 120
	defaultPacingMS     = 2000
)

// Load reads and validates config from workspace, applying defaults for
// unset fields. A missing file yields the default config.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Judge.BaseURL == "" {
		return fmt.Errorf("config.judge.base_url is required")
	}
	if c.Judge.HistoryLimit <= 0 {
		return fmt.Errorf("config.judge.history_limit must be positive")
	}
	if c.Pipeline.MaxPerRun <= 0 {
		return fmt.Errorf("config.pipeline.max_per_run must be positive")
	}
	if c.Pipeline.PacingMS < 0 {
		return fmt.Errorf("config.pipeline.pacing_ms must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "codestreak.yml")
}

// Default returns the built-in defaults.
func Default() *Config {
	var cfg Config
	cfg.Judge.BaseURL = defaultJudgeBaseURL
	cfg.Judge.HistoryLimit = defaultHistoryLimit
	cfg.Judge.TimeoutSeconds = defaultTimeoutSecs
	cfg.Pipeline.MaxPerRun = defaultMaxPerRun
	cfg.Pipeline.PacingMS = defaultPacingMS
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes, filling in
// defaults for fields the file leaves unset.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}
