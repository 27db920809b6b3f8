package core

// Logger is the logging surface used across the action. *githubactions.Action
// satisfies it, which turns messages into workflow commands.
type Logger interface {
	Debugf(msg string, args ...any)
	Infof(msg string, args ...any)
	Warningf(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)   {}
func (nopLogger) Infof(string, ...any)    {}
func (nopLogger) Warningf(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}
