package analysis

import (
	"fmt"
	"strings"
)

// TimeoutSummary is returned whenever the executor reported a timeout.
const TimeoutSummary = "Script execution timed out: the execution time limit was exceeded and the script was terminated. " +
	"Check for infinite loops, blocking dialogs (MsgBox, InputBox) or a missing ExitApp."

const (
	previewLimit      = 200
	summaryContextMax = 3
	noOutput          = "(no output)"
)

// Summarize renders an outcome as text suitable as agent feedback.
func Summarize(output string, errors []ErrorRecord, timedOut bool) string {
	if timedOut {
		return TimeoutSummary
	}
	if len(errors) == 0 {
		return "Script executed successfully.\n\nOutput:\n" + preview(output)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Script execution failed with %s:\n", plural(len(errors), "error"))
	for _, e := range errors {
		fmt.Fprintf(&b, "\n[%s] %s\n", e.Kind, e.Message)
		for i, line := range e.Context {
			if i == summaryContextMax {
				break
			}
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func preview(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return noOutput
	}
	runes := []rune(trimmed)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit]) + "..."
	}
	return trimmed
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
