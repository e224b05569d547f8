package definition

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// The default logger used if the user does not provide its
// own implementation.
type DefaultLogger struct {
	entry *logrus.Entry
	base  *logrus.Logger
}

// NewDefaultLogger creates a logger writing to stderr, tagged with the
// given component name.
func NewDefaultLogger(component string) *DefaultLogger {
	return NewDefaultLoggerWithOutput(component, os.Stderr)
}

// NewDefaultLoggerWithOutput creates a logger writing to the given sink.
func NewDefaultLoggerWithOutput(component string, out io.Writer) *DefaultLogger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	base.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{
		entry: base.WithField("component", component),
		base:  base,
	}
}

// WithField returns a logger carrying an extra structured field.
func (l *DefaultLogger) WithField(key string, value interface{}) *DefaultLogger {
	return &DefaultLogger{entry: l.entry.WithField(key, value), base: l.base}
}

func (l *DefaultLogger) Info(v ...interface{}) {
	l.entry.Info(v...)
}

func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

func (l *DefaultLogger) Warn(v ...interface{}) {
	l.entry.Warn(v...)
}

func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

func (l *DefaultLogger) Error(v ...interface{}) {
	l.entry.Error(v...)
}

func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

func (l *DefaultLogger) Debug(v ...interface{}) {
	l.entry.Debug(v...)
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

// ToggleDebug switches between the info and debug levels.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	if value {
		l.base.SetLevel(logrus.DebugLevel)
	} else {
		l.base.SetLevel(logrus.InfoLevel)
	}
	return value
}
