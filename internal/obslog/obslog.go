// Package obslog is a thin leveled wrapper around the standard log
// package (spec §6's --verbose flag): info-level output is suppressed
// unless verbose is set, warnings and errors always print. No
// third-party logging library appears anywhere in the example pack, so
// this mirrors the teacher's own choice not to take on a logging
// dependency.
package obslog

import (
	"log"
	"os"
)

// Logger is a verbosity-gated wrapper over a stdlib *log.Logger.
type Logger struct {
	base    *log.Logger
	verbose bool
}

// New builds a Logger writing to os.Stderr with the given verbosity.
func New(verbose bool) *Logger {
	return &Logger{base: log.New(os.Stderr, "", log.LstdFlags), verbose: verbose}
}

// Infof logs only when verbose is set.
func (l *Logger) Infof(format string, args ...any) {
	if l.verbose {
		l.base.Printf("[info] "+format, args...)
	}
}

// Warnf always logs.
func (l *Logger) Warnf(format string, args ...any) {
	l.base.Printf("[warn] "+format, args...)
}

// Errorf always logs.
func (l *Logger) Errorf(format string, args ...any) {
	l.base.Printf("[error] "+format, args...)
}

// Std returns the underlying *log.Logger, for packages (like
// aggregator.NewDaemon) that take a plain *log.Logger.
func (l *Logger) Std() *log.Logger { return l.base }
