package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
	"github.com/lucasnoah/scriptcheck/internal/logger"
)

// Recorder persists analysed outcomes. Failures are logged, never returned to
// the caller of Run.
type Recorder interface {
	Record(source string, o analysis.Outcome) (string, error)
}

// Runner executes scripts and analyses their output.
type Runner struct {
	exec     Executor
	analyzer *analysis.Analyzer
	recorder Recorder
	logger   logger.Logger
	source   string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAnalyzer overrides the default analyzer.
func WithAnalyzer(a *analysis.Analyzer) RunnerOption {
	return func(r *Runner) {
		if a != nil {
			r.analyzer = a
		}
	}
}

// WithRecorder stores every outcome under the given source label.
func WithRecorder(rec Recorder, source string) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
		r.source = source
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner around exec.
func NewRunner(exec Executor, opts ...RunnerOption) *Runner {
	r := &Runner{
		exec:     exec,
		analyzer: analysis.NewAnalyzer(),
		logger:   logger.Nop(),
		source:   "run",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Analyzer returns the analyzer used for outcomes.
func (r *Runner) Analyzer() *analysis.Analyzer {
	return r.analyzer
}

// Run executes the script and returns the analysed outcome. Transport
// failures are returned as errors and never become an outcome.
func (r *Runner) Run(ctx context.Context, s Script) (*analysis.Outcome, error) {
	if s.Language == "" {
		s.Language = r.analyzer.Language()
	}

	start := time.Now()
	raw, err := r.exec.Execute(ctx, s)
	if err != nil {
		r.logger.Errorf("execute failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return nil, fmt.Errorf("execute script: %w", err)
	}

	o := r.analyzer.Analyze(raw.Output, raw.ExecutionTime)
	switch {
	case o.TimedOut:
		r.logger.Warnf("script timed out (%d bytes of output)", len(o.Output))
	case o.HasErrors:
		r.logger.Infof("script failed with %d error(s) in %.3fs", len(o.Errors), *o.ExecutionTime)
	default:
		r.logger.Infof("script succeeded in %.3fs", *o.ExecutionTime)
	}
	for _, e := range o.Errors {
		r.logger.Debugf("line %d [%s] %s", e.Line, e.Kind, e.Message)
	}

	if r.recorder != nil {
		id, err := r.recorder.Record(r.source, o)
		if err != nil {
			r.logger.Warnf("record outcome: %v", err)
		} else {
			r.logger.Debugf("recorded run %s", id)
		}
	}
	return &o, nil
}

// Validate runs the script and projects the outcome to a pass/fail result.
func (r *Runner) Validate(ctx context.Context, s Script) (analysis.Validation, error) {
	o, err := r.Run(ctx, s)
	if err != nil {
		return analysis.Validation{}, err
	}
	return o.Validation(), nil
}
