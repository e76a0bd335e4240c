package analysis

// DefaultLanguage is reported in outcomes when none is configured.
const DefaultLanguage = "autohotkey"

// Analyzer runs the segment, classify and summarize pipeline with a fixed
// registry. The zero value is not usable; use NewAnalyzer.
type Analyzer struct {
	registry *Registry
	language string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRegistry replaces the built-in recognizers.
func WithRegistry(r *Registry) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithLanguage sets the language reported in outcomes.
func WithLanguage(lang string) Option {
	return func(a *Analyzer) {
		if lang != "" {
			a.language = lang
		}
	}
}

// NewAnalyzer creates an Analyzer using the default registry unless overridden.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{registry: defaultRegistry, language: DefaultLanguage}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registry returns the recognizers the analyzer uses.
func (a *Analyzer) Registry() *Registry {
	return a.registry
}

// Language returns the language reported in outcomes.
func (a *Analyzer) Language() string {
	return a.language
}

// Analyze builds an Outcome from raw output. A nil executionTime means the
// execution timed out.
func (a *Analyzer) Analyze(output string, executionTime *float64) Outcome {
	timedOut := executionTime == nil
	errors := a.registry.Segment(output)

	o := Outcome{
		Output:   output,
		TimedOut: timedOut,
		Language: a.language,
		Errors:   errors,
	}
	if !timedOut {
		t := *executionTime
		o.ExecutionTime = &t
	}
	o.HasErrors = len(errors) > 0
	o.Success = !o.HasErrors && !timedOut
	o.Summary = Summarize(output, errors, timedOut)
	return o
}

// Analyze runs the default analyzer.
func Analyze(output string, executionTime *float64) Outcome {
	return defaultAnalyzer.Analyze(output, executionTime)
}

var defaultAnalyzer = NewAnalyzer()

// Seconds is a convenience for building a non-timeout execution time.
func Seconds(s float64) *float64 {
	return &s
}

// Timing resolves caller supplied timing into an execution time: timedOut
// wins, and a completed run with no reported duration counts as zero.
func Timing(seconds *float64, timedOut bool) *float64 {
	if timedOut {
		return nil
	}
	if seconds == nil {
		return Seconds(0)
	}
	return Seconds(*seconds)
}
