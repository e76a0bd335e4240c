// Package logger provides the levelled console logger used across scriptcheck.
//
// Output goes to a single writer (stderr in the CLI) so that stdout stays free
// for JSON results and the MCP stdio stream. Every line is prefixed with an
// [HH:MM:SS] timestamp and the level. Colour is used only when the writer is a
// terminal.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Logger is the logging interface consumed by other packages.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging is best-effort and must not panic.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

const (
	levelTrace int = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
)

var levelNames = map[string]int{
	"trace": levelTrace,
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	_, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

// ConsoleLogger writes timestamped, level-filtered lines to a writer.
type ConsoleLogger struct {
	writer      io.Writer
	level       int
	mutex       sync.Mutex
	colorOutput bool
	now         func() time.Time
}

// NewConsoleLogger creates a logger writing to w at the given minimum level.
// Unknown or empty levels fall back to info. A nil writer discards everything.
func NewConsoleLogger(w io.Writer, level string) *ConsoleLogger {
	lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		lvl = levelInfo
	}
	return &ConsoleLogger{
		writer:      w,
		level:       lvl,
		colorOutput: IsTerminal(w),
		now:         time.Now,
	}
}

// IsTerminal reports whether w is a terminal that should receive colour.
// NO_COLOR disables it.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Tracef logs at trace level.
func (l *ConsoleLogger) Tracef(format string, args ...any) {
	l.logf(levelTrace, "TRACE", format, args...)
}

// Debugf logs at debug level.
func (l *ConsoleLogger) Debugf(format string, args ...any) {
	l.logf(levelDebug, "DEBUG", format, args...)
}

// Infof logs at info level.
func (l *ConsoleLogger) Infof(format string, args ...any) {
	l.logf(levelInfo, "INFO", format, args...)
}

// Warnf logs at warn level.
func (l *ConsoleLogger) Warnf(format string, args ...any) {
	l.logf(levelWarn, "WARN", format, args...)
}

// Errorf logs at error level.
func (l *ConsoleLogger) Errorf(format string, args ...any) {
	l.logf(levelError, "ERROR", format, args...)
}

func (l *ConsoleLogger) logf(level int, name string, format string, args ...any) {
	if l == nil || l.writer == nil || level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := l.now().Format("15:04:05")

	label := name
	if l.colorOutput {
		label = levelColor(level).Sprint(name)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	fmt.Fprintf(l.writer, "[%s] [%s] %s\n", ts, label, strings.TrimRight(msg, "\n"))
}

func levelColor(level int) *color.Color {
	var c *color.Color
	switch level {
	case levelTrace:
		c = color.New(color.FgHiBlack)
	case levelDebug:
		c = color.New(color.FgCyan)
	case levelInfo:
		c = color.New(color.FgBlue)
	case levelWarn:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed)
	}
	c.EnableColor()
	return c
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

var _ Logger = (*ConsoleLogger)(nil)
