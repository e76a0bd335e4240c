// Package analysis turns raw script output into classified error records and
// a summary an agent can act on.
//
// Everything here is a pure function of its inputs: no I/O, no shared mutable
// state, identical input always yields identical output.
package analysis

import "fmt"

// Kind classifies an error block.
type Kind string

const (
	KindSyntax    Kind = "syntax"
	KindReference Kind = "reference"
	KindType      Kind = "type"
	KindRuntime   Kind = "runtime"
	KindTimeout   Kind = "timeout"
	KindWine      Kind = "wine"
)

// Kinds lists every kind in taxonomy order.
var Kinds = []Kind{KindSyntax, KindReference, KindType, KindRuntime, KindTimeout, KindWine}

// ParseKind converts a stored kind name back into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown error kind %q", s)
}

// ErrorRecord is one detected error occurrence.
type ErrorRecord struct {
	// Line is the 1-based line number of the header within the output.
	Line    int      `json:"line"`
	Message string   `json:"message"`
	Context []string `json:"context"`
	Kind    Kind     `json:"type"`
}

// Outcome is the full result of analysing one execution.
type Outcome struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	// ExecutionTime is in seconds; nil means the executor timed out.
	ExecutionTime *float64      `json:"executionTime"`
	TimedOut      bool          `json:"timedOut"`
	Language      string        `json:"language"`
	Errors        []ErrorRecord `json:"errors"`
	HasErrors     bool          `json:"hasErrors"`
	Summary       string        `json:"summary"`
}

// ValidMessage is reported when validation finds nothing wrong.
const ValidMessage = "Code is valid: no errors detected."

// Validation is the pass/fail projection of an Outcome.
type Validation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Validation projects the outcome into validation mode.
func (o Outcome) Validation() Validation {
	if o.Success {
		return Validation{Valid: true, Message: ValidMessage}
	}
	return Validation{Valid: false, Message: o.Summary}
}

// CountByKind returns how many records of each kind the outcome holds.
func (o Outcome) CountByKind() map[Kind]int {
	counts := make(map[Kind]int, len(Kinds))
	for _, e := range o.Errors {
		counts[e.Kind]++
	}
	return counts
}
