package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// Role says what a recognizer decides about a line.
type Role int

const (
	// RoleStart marks lines that begin a new error block.
	RoleStart Role = iota
	// RoleContinuation marks lines that look like trace/context inside a block.
	RoleContinuation
)

func (r Role) String() string {
	switch r {
	case RoleStart:
		return "start"
	case RoleContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// Pattern is one textual recognizer. Re is matched against the line with
// surrounding whitespace removed.
type Pattern struct {
	Name string
	Role Role
	Re   *regexp.Regexp
}

// NewPattern compiles expr case-insensitively. Invalid expressions return an error.
func NewPattern(name string, role Role, expr string) (Pattern, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", name, err)
	}
	return Pattern{Name: name, Role: role, Re: re}, nil
}

func mustPattern(name string, role Role, expr string) Pattern {
	p, err := NewPattern(name, role, expr)
	if err != nil {
		panic(err)
	}
	return p
}

// builtinPatterns covers AutoHotkey v1 and v2 error output plus wine diagnostics.
var builtinPatterns = []Pattern{
	// v1 headers
	mustPattern("v1-error", RoleStart, `^error:`),
	mustPattern("v1-include", RoleStart, `^error in #include`),

	// structured trace markers
	mustPattern("trace-line-text", RoleStart, `^-->\s*line text:`),
	mustPattern("trace-line-number", RoleStart, `^-->\s*line#:`),

	// known messages
	mustPattern("missing-delimiter", RoleStart, `^missing (comma|bracket|parenthesis|brace|quote|"|[()\[\]{}])`),
	mustPattern("duplicate-definition", RoleStart, `^duplicate (function|label|hotkey)`),
	mustPattern("invalid-hotkey", RoleStart, `^invalid hotkey`),
	mustPattern("unexpected-eof", RoleStart, `^unexpected end of file`),
	mustPattern("nonexistent-function", RoleStart, `^call to nonexistent function`),
	mustPattern("missing-label", RoleStart, `^target label does not exist`),

	// v2 typed errors
	mustPattern("v2-typed-error", RoleStart, `^(error|typeerror|valueerror|membererror|propertyerror|methoderror|indexerror|keyerror|targeterror|oserror|zerodivisionerror|memoryerror|timeouterror|unseterror|unsetitemerror)\s*:`),

	// v2 trace
	mustPattern("v2-line", RoleStart, `^line\s+\d+\s*:`),
	mustPattern("v2-what", RoleStart, `^what:`),
	mustPattern("v2-file", RoleStart, `^file:`),
	mustPattern("v2-stack", RoleStart, `^stack:`),

	// host environment
	mustPattern("wine", RoleStart, `^wine:`),
	mustPattern("wine-err", RoleStart, `^err:`),
	mustPattern("wine-fixme", RoleStart, `^fixme:`),

	mustPattern("arrow", RoleContinuation, `^-->`),
	mustPattern("line-prefix", RoleContinuation, `^line`),
	mustPattern("trace-field", RoleContinuation, `^(what|file|stack):`),
	mustPattern("numbered", RoleContinuation, `^\d+:`),
}

// Registry is an ordered, immutable catalog of recognizers. It is safe for
// concurrent use.
type Registry struct {
	start        []Pattern
	continuation []Pattern
}

var defaultRegistry = NewRegistry(builtinPatterns...)

// DefaultRegistry returns the built-in recognizers.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// NewRegistry builds a registry from patterns, keeping their order within each role.
func NewRegistry(patterns ...Pattern) *Registry {
	r := &Registry{}
	for _, p := range patterns {
		if p.Re == nil {
			continue
		}
		switch p.Role {
		case RoleStart:
			r.start = append(r.start, p)
		case RoleContinuation:
			r.continuation = append(r.continuation, p)
		}
	}
	return r
}

// With returns a copy of r with patterns appended after the existing ones.
func (r *Registry) With(patterns ...Pattern) *Registry {
	all := make([]Pattern, 0, len(r.start)+len(r.continuation)+len(patterns))
	all = append(all, r.start...)
	all = append(all, r.continuation...)
	all = append(all, patterns...)
	return NewRegistry(all...)
}

// Patterns returns a copy of every recognizer, start patterns first.
func (r *Registry) Patterns() []Pattern {
	out := make([]Pattern, 0, len(r.start)+len(r.continuation))
	out = append(out, r.start...)
	return append(out, r.continuation...)
}

// MatchStart reports the name of the first start recognizer matching line.
func (r *Registry) MatchStart(line string) (string, bool) {
	return firstMatch(r.start, strings.TrimSpace(line))
}

// IsStart reports whether line begins a new error block.
func (r *Registry) IsStart(line string) bool {
	_, ok := r.MatchStart(line)
	return ok
}

// IsContinuation reports whether line looks like trace or context output.
func (r *Registry) IsContinuation(line string) bool {
	_, ok := firstMatch(r.continuation, strings.TrimSpace(line))
	return ok
}

func firstMatch(patterns []Pattern, trimmed string) (string, bool) {
	for _, p := range patterns {
		if p.Re.MatchString(trimmed) {
			return p.Name, true
		}
	}
	return "", false
}
