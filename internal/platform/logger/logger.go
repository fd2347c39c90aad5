// Package logger provides structured logging for the studio server.
// Every weekly effect the simulation applies should be traceable through this.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger provides leveled logging with a component tag.
type Logger struct {
	entry *logrus.Entry
}

// Options configures the underlying logrus instance.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// NewLogger creates a logger with text output at info level.
func NewLogger() *Logger {
	return New(Options{})
}

// New creates a logger from options.
func New(opts Options) *Logger {
	base := logrus.New()
	if opts.Output != nil {
		base.SetOutput(opts.Output)
	} else {
		base.SetOutput(os.Stdout)
	}

	if strings.EqualFold(opts.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	return &Logger{entry: logrus.NewEntry(base).WithField("app", "backlot")}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return New(Options{Output: io.Discard, Level: "error"})
}

// With returns a child logger carrying an extra field.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.entry.Info(msg)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.entry.Warn(msg)
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.entry.Error(msg)
}

// Event logs a simulation event with the entity that caused it.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.entry.WithFields(logrus.Fields{
		"event": eventType,
		"actor": actorID,
	}).Info(details)
}

// Fields logs a message with structured fields at the given level.
func (l *Logger) Fields(level string, msg string, fields map[string]any) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.entry.WithFields(logrus.Fields(fields)).Log(lvl, msg)
}
