package btprobe

import (
	"go.uber.org/zap"
)

// Logger denotes a generic logging interface
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// NullLogger denotes a logger that does not log anything (used as default)
type NullLogger struct{}

// Debugf logs a debug level message (no-op)
func (l *NullLogger) Debugf(format string, args ...interface{}) {}

// Infof logs an info level message (no-op)
func (l *NullLogger) Infof(format string, args ...interface{}) {}

// Warnf logs a warning level message (no-op)
func (l *NullLogger) Warnf(format string, args ...interface{}) {}

// Errorf logs an error level message (no-op)
func (l *NullLogger) Errorf(format string, args ...interface{}) {}

// Fatalf logs a fatal level message (no-op)
func (l *NullLogger) Fatalf(format string, args ...interface{}) {}

// DefaultLogger denotes a standard logger based on zap
type DefaultLogger struct {
	l *zap.SugaredLogger
}

// NewDefaultLogger instantiates a new default logger, optionally with debug
// level enabled
func NewDefaultLogger(debug bool) *DefaultLogger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return &DefaultLogger{
		l: logger.Sugar(),
	}
}

// Debugf logs a debug level message
func (l *DefaultLogger) Debugf(format string, args ...interface{}) {
	l.l.Debugf(format, args...)
}

// Infof logs an info level message
func (l *DefaultLogger) Infof(format string, args ...interface{}) {
	l.l.Infof(format, args...)
}

// Warnf logs a warning level message
func (l *DefaultLogger) Warnf(format string, args ...interface{}) {
	l.l.Warnf(format, args...)
}

// Errorf logs an error level message
func (l *DefaultLogger) Errorf(format string, args ...interface{}) {
	l.l.Errorf(format, args...)
}

// Fatalf logs a fatal level message and terminates the process
func (l *DefaultLogger) Fatalf(format string, args ...interface{}) {
	l.l.Fatalf(format, args...)
}
