package config

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/lucasnoah/scriptcheck/internal/logger"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	e := cfg.Executor

	if e.BaseURL == "" {
		errs = append(errs, ValidationError{Field: "executor.base_url", Message: "is required"})
	} else if u, err := url.Parse(e.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "executor.base_url",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", e.BaseURL),
		})
	}

	validateDuration("executor.request_timeout", e.RequestTimeout, &errs)
	validateDuration("executor.retry_delay", e.RetryDelay, &errs)

	if e.MaxRetries != nil && *e.MaxRetries < 0 {
		errs = append(errs, ValidationError{Field: "executor.max_retries", Message: "must not be negative"})
	}

	for i, expr := range cfg.Analysis.ExtraStartPatterns {
		if _, err := regexp.Compile("(?i)" + expr); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("analysis.extra_start_patterns[%d]", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Log.Level != "" && !logger.ValidLevel(cfg.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unrecognized level %q", cfg.Log.Level),
		})
	}

	return errs
}

func validateDuration(field, value string, errs *[]ValidationError) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid duration %q", value)})
		return
	}
	if d <= 0 {
		*errs = append(*errs, ValidationError{Field: field, Message: "must be positive"})
	}
}
