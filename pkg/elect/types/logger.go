package types

// Logger is the logging interface consumed by every component. A default
// implementation lives in the definition package; users can plug their own.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})

	Warn(v ...interface{})
	Warnf(format string, v ...interface{})

	Error(v ...interface{})
	Errorf(format string, v ...interface{})

	Debug(v ...interface{})
	Debugf(format string, v ...interface{})

	// ToggleDebug turns debug output on or off, returning the new state.
	ToggleDebug(value bool) bool
}
