package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a configuration from the given YAML file path.
// After parsing, it fills in defaults for everything left empty.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the first
// one found. Search order: ./scriptcheck.yaml, ~/.scriptcheck/config.yaml.
// When none exists the built-in defaults are returned.
func LoadDefault() (*Config, error) {
	candidates := []string{"scriptcheck.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".scriptcheck", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return Default(), nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv; it is injected so callers and tests never mutate the process
// environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvExecutorURL); ok && strings.TrimSpace(v) != "" {
		cfg.Executor.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		cfg.Log.Level = strings.TrimSpace(v)
	}
}

// applyDefaults fills empty fields and expands ~ in paths.
func applyDefaults(cfg *Config) {
	e := &cfg.Executor
	if e.BaseURL == "" {
		e.BaseURL = DefaultBaseURL
	}
	e.BaseURL = strings.TrimRight(e.BaseURL, "/")
	if e.RequestTimeout == "" {
		e.RequestTimeout = DefaultRequestTimeout
	}
	if e.MaxRetries == nil {
		n := DefaultMaxRetries
		e.MaxRetries = &n
	}
	if e.RetryDelay == "" {
		e.RetryDelay = DefaultRetryDelay
	}

	if cfg.Analysis.Language == "" {
		cfg.Analysis.Language = DefaultLanguage
	}

	h := &cfg.History
	if h.Enabled == nil {
		enabled := true
		h.Enabled = &enabled
	}
	if h.DBPath == "" {
		h.DBPath = filepath.Join("~", ".scriptcheck", "history.db")
	}
	if h.ArtifactsDir == "" {
		h.ArtifactsDir = filepath.Join("~", ".scriptcheck", "runs")
	}
	h.DBPath = expandHome(h.DBPath)
	h.ArtifactsDir = expandHome(h.ArtifactsDir)

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
