package batch

import (
	log "github.com/sirupsen/logrus"
)

// Logger defines the interface for logging within the ingestion pipeline.
// The Logger is optional - if not provided, no logging occurs.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(format string, args ...interface{})

	// Info logs an info-level message.
	Info(format string, args ...interface{})

	// Warn logs a warning-level message.
	Warn(format string, args ...interface{})

	// Error logs an error-level message.
	Error(format string, args ...interface{})
}

// NoOpLogger is a logger that discards all log messages.
// This is the default logger when none is specified.
type NoOpLogger struct{}

// Debug implements the Logger interface.
func (n *NoOpLogger) Debug(format string, args ...interface{}) {}

// Info implements the Logger interface.
func (n *NoOpLogger) Info(format string, args ...interface{}) {}

// Warn implements the Logger interface.
func (n *NoOpLogger) Warn(format string, args ...interface{}) {}

// Error implements the Logger interface.
func (n *NoOpLogger) Error(format string, args ...interface{}) {}

// LogrusLogger routes pipeline logs to a logrus logger or entry, so pipeline
// messages carry whatever fields the caller attached.
type LogrusLogger struct {
	l log.FieldLogger
}

// NewLogrusLogger wraps l. If l is nil, the logrus standard logger is used.
func NewLogrusLogger(l log.FieldLogger) *LogrusLogger {
	if l == nil {
		l = log.StandardLogger()
	}
	return &LogrusLogger{l: l}
}

// Debug implements the Logger interface.
func (g *LogrusLogger) Debug(format string, args ...interface{}) {
	g.l.Debugf(format, args...)
}

// Info implements the Logger interface.
func (g *LogrusLogger) Info(format string, args ...interface{}) {
	g.l.Infof(format, args...)
}

// Warn implements the Logger interface.
func (g *LogrusLogger) Warn(format string, args ...interface{}) {
	g.l.Warnf(format, args...)
}

// Error implements the Logger interface.
func (g *LogrusLogger) Error(format string, args ...interface{}) {
	g.l.Errorf(format, args...)
}

func loggerOrNoOp(l Logger) Logger {
	if l == nil {
		return &NoOpLogger{}
	}
	return l
}
