// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// levelColors paints the bracketed tag of each level.
var levelColors = map[string]*color.Color{ //nolint:gochecknoglobals
	"ERR": color.New(color.FgRed, color.Bold),
	"WRN": color.New(color.FgYellow),
	"INF": color.New(color.FgCyan),
	"VRB": color.New(color.FgHiBlack),
	"DBG": color.New(color.FgMagenta),
}

// Whether to paint is decided per Logger, not by color.NoColor.
func init() {
	for _, c := range levelColors {
		c.EnableColor()
	}
}

// Logger writes levelled messages to stderr with optional timestamps
// and level prefixes.  Prefixes are coloured when the output is a
// terminal.
type Logger struct {
	level      LogLevel
	output     io.Writer
	mu         sync.Mutex
	timestamps bool // if true, prepend a wall-clock timestamp
	colored    bool
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
	}
	l.SetOutput(os.Stderr)
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) { l.timestamps = on }

// SetOutput overrides the output writer (default: os.Stderr).  Colour
// is enabled only when w is a terminal.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.colored = false
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		l.colored = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
}

// SetColor forces colour on or off.
func (l *Logger) SetColor(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colored = on
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("INF", format, args...)
	}
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("WRN", format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.write("VRB", format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.write("DBG", format, args...)
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERR", format, args...)
}

func (l *Logger) write(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tag := "[" + level + "]"
	if l.colored {
		if c, ok := levelColors[level]; ok {
			tag = c.Sprint(tag)
		}
	}

	msg := fmt.Sprintf(format, args...)
	if l.timestamps {
		ts := time.Now().Format("15:04:05.000")
		fmt.Fprintf(l.output, "%s %s %s\n", ts, tag, msg)
	} else {
		fmt.Fprintf(l.output, "%s %s\n", tag, msg)
	}
}
