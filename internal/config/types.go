package config

import "time"

// Config is the top-level configuration structure parsed from YAML.
type Config struct {
	Executor Executor `yaml:"executor"`
	Analysis Analysis `yaml:"analysis"`
	History  History  `yaml:"history"`
	Log      Log      `yaml:"log"`
}

// Executor configures the remote script executor.
type Executor struct {
	BaseURL        string `yaml:"base_url"`
	RequestTimeout string `yaml:"request_timeout"`
	MaxRetries     *int   `yaml:"max_retries"`
	RetryDelay     string `yaml:"retry_delay"`
}

// Analysis configures the output analyzer.
type Analysis struct {
	Language           string   `yaml:"language"`
	ExtraStartPatterns []string `yaml:"extra_start_patterns"`
}

// History configures run persistence.
type History struct {
	Enabled      *bool  `yaml:"enabled"`
	DBPath       string `yaml:"db_path"`
	ArtifactsDir string `yaml:"artifacts_dir"`
}

// Log configures the console logger.
type Log struct {
	Level string `yaml:"level"`
}

// Defaults applied when a field is left empty.
const (
	DefaultBaseURL        = "http://localhost:5000"
	DefaultRequestTimeout = "60s"
	DefaultMaxRetries     = 2
	DefaultRetryDelay     = "1s"
	DefaultLanguage       = "autohotkey"
	DefaultLogLevel       = "info"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvExecutorURL = "SCRIPTCHECK_EXECUTOR_URL"
	EnvLogLevel    = "SCRIPTCHECK_LOG_LEVEL"
)

// RequestTimeoutDuration returns the parsed executor request timeout.
func (e Executor) RequestTimeoutDuration() time.Duration {
	return parseDuration(e.RequestTimeout, 60*time.Second)
}

// RetryDelayDuration returns the parsed delay between executor retries.
func (e Executor) RetryDelayDuration() time.Duration {
	return parseDuration(e.RetryDelay, time.Second)
}

// Retries returns the configured retry count.
func (e Executor) Retries() int {
	if e.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *e.MaxRetries
}

// HistoryEnabled reports whether runs should be persisted.
func (h History) HistoryEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
