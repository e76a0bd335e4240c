package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/lucasnoah/scriptcheck/internal/analysis"
	"github.com/lucasnoah/scriptcheck/internal/logger"
)

// ErrScriptFailed is returned after printing an outcome that has errors or
// timed out, so the process exits non-zero.
var ErrScriptFailed = errors.New("script did not run cleanly")

type palette struct {
	pass, fail, warn, kind, trace, faint *color.Color
}

func newPalette(w io.Writer) palette {
	p := palette{
		pass:  color.New(color.FgGreen, color.Bold),
		fail:  color.New(color.FgRed, color.Bold),
		warn:  color.New(color.FgYellow, color.Bold),
		kind:  color.New(color.FgMagenta),
		trace: color.New(color.FgCyan),
		faint: color.New(color.Faint),
	}
	enable := logger.IsTerminal(w)
	for _, c := range []*color.Color{p.pass, p.fail, p.warn, p.kind, p.trace, p.faint} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func writeJSONOut(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func checkFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q: want text or json", format)
	}
	return nil
}

// printOutcome renders an outcome. Context lines that look like interpreter
// traces are highlighted.
func printOutcome(w io.Writer, o analysis.Outcome, reg *analysis.Registry, format string) error {
	if format == "json" {
		return writeJSONOut(w, o)
	}

	p := newPalette(w)
	switch {
	case o.TimedOut:
		fmt.Fprintf(w, "%s %s\n", p.warn.Sprint("TIMEOUT"), o.Summary)
		return nil
	case o.Success:
		fmt.Fprintf(w, "%s in %s\n", p.pass.Sprint("PASS"), formatSeconds(o.ExecutionTime))
	default:
		fmt.Fprintf(w, "%s %d error(s) in %s (%s)\n", p.fail.Sprint("FAIL"), len(o.Errors), formatSeconds(o.ExecutionTime), kindBreakdown(o))
	}

	for _, e := range o.Errors {
		fmt.Fprintf(w, "\n  line %-4d %s %s\n", e.Line, p.kind.Sprintf("[%s]", e.Kind), e.Message)
		for _, ctx := range e.Context {
			if reg.IsContinuation(ctx) {
				fmt.Fprintf(w, "            %s\n", p.trace.Sprint(ctx))
			} else {
				fmt.Fprintf(w, "            %s\n", p.faint.Sprint(ctx))
			}
		}
	}
	if o.Success {
		fmt.Fprintf(w, "\n%s\n", o.Summary)
	}
	return nil
}

func printValidation(w io.Writer, v analysis.Validation, format string) error {
	if format == "json" {
		return writeJSONOut(w, v)
	}
	p := newPalette(w)
	if v.Valid {
		fmt.Fprintf(w, "%s %s\n", p.pass.Sprint("VALID"), v.Message)
		return nil
	}
	fmt.Fprintf(w, "%s\n%s\n", p.fail.Sprint("INVALID"), v.Message)
	return nil
}

// kindBreakdown lists non-zero kind counts in taxonomy order, e.g. "2 syntax, 1 wine".
func kindBreakdown(o analysis.Outcome) string {
	counts := o.CountByKind()
	var parts []string
	for _, k := range analysis.Kinds {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	return strings.Join(parts, ", ")
}

func formatSeconds(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.3fs", *s)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
