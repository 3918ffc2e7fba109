package core

import "fmt"

// Logger is the diagnostic sink used by the controller.
// *zap.SugaredLogger satisfies it on the host.
type Logger interface {
	Errorf(template string, args ...interface{})
	Debugf(template string, args ...interface{})
}

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// DebugLogger adapts a platform DebugWriter (UART, USB CDC) to Logger.
// Debug lines are only written when Verbose is set.
type DebugLogger struct {
	Write   DebugWriter
	Verbose bool
}

func (l *DebugLogger) Errorf(template string, args ...interface{}) {
	if l.Write != nil {
		l.Write("[PWM] " + fmt.Sprintf(template, args...))
	}
}

func (l *DebugLogger) Debugf(template string, args ...interface{}) {
	if l.Verbose && l.Write != nil {
		l.Write("[PWM] " + fmt.Sprintf(template, args...))
	}
}

type nopLogger struct{}

func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}
