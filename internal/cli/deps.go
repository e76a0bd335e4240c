package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
	"github.com/lucasnoah/scriptcheck/internal/artifact"
	"github.com/lucasnoah/scriptcheck/internal/config"
	"github.com/lucasnoah/scriptcheck/internal/db"
	"github.com/lucasnoah/scriptcheck/internal/executor"
	"github.com/lucasnoah/scriptcheck/internal/logger"
)

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// resolveConfig loads the config file, applies environment overrides once and
// then the --log-level flag.
func resolveConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	config.ApplyEnv(cfg, lookupEnv)
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *logger.ConsoleLogger {
	return logger.NewConsoleLogger(cmd.ErrOrStderr(), cfg.Log.Level)
}

// newAnalyzer builds the analyzer from the built-in patterns plus any extra
// start patterns in the config.
func newAnalyzer(cfg *config.Config) (*analysis.Analyzer, error) {
	reg := analysis.DefaultRegistry()
	var extra []analysis.Pattern
	for i, expr := range cfg.Analysis.ExtraStartPatterns {
		p, err := analysis.NewPattern(fmt.Sprintf("extra-%d", i), analysis.RoleStart, expr)
		if err != nil {
			return nil, fmt.Errorf("analysis.extra_start_patterns[%d]: %w", i, err)
		}
		extra = append(extra, p)
	}
	if len(extra) > 0 {
		reg = reg.With(extra...)
	}
	return analysis.NewAnalyzer(analysis.WithRegistry(reg), analysis.WithLanguage(cfg.Analysis.Language)), nil
}

// openDB opens and migrates the history DB, returning it with a cleanup func.
func openDB(cfg *config.Config) (*db.DB, func(), error) {
	d, err := db.Open(cfg.History.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return d, func() { d.Close() }, nil
}

func newClient(cfg *config.Config, log logger.Logger) (*executor.Client, error) {
	return executor.NewClient(executor.Config{
		BaseURL:        cfg.Executor.BaseURL,
		RequestTimeout: cfg.Executor.RequestTimeoutDuration(),
		MaxRetries:     cfg.Executor.Retries(),
		RetryDelay:     cfg.Executor.RetryDelayDuration(),
		Logger:         log,
	})
}

// historyRecorder saves outcomes to the DB and their files to the artifact
// store. Artifact failures are logged; the DB row is the record of truth.
type historyRecorder struct {
	db     *db.DB
	store  *artifact.Store
	log    logger.Logger
	script string
}

func (h *historyRecorder) Record(source string, o analysis.Outcome) (string, error) {
	id, err := h.db.SaveRun(source, o)
	if err != nil {
		return "", err
	}
	if h.store != nil {
		if err := h.store.Save(id, artifact.Artifact{Script: h.script, Outcome: o}); err != nil {
			h.log.Warnf("save artifacts for %s: %v", id, err)
		}
	}
	return id, nil
}

// openHistory returns a recorder, or nil when history is disabled.
func openHistory(cfg *config.Config, log logger.Logger) (*historyRecorder, func(), error) {
	if !cfg.History.HistoryEnabled() {
		return nil, func() {}, nil
	}
	d, cleanup, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return &historyRecorder{db: d, store: artifact.NewStore(cfg.History.ArtifactsDir), log: log}, cleanup, nil
}

// readInput reads a file argument, or stdin when the argument is absent or "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}
