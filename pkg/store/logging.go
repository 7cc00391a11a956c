package store

import "time"

// Operations recorded by Logger.
const (
	OpChange      = "change"
	OpQueue       = "queue"
	OpDrop        = "drop"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpRelease     = "release"
	OpActivity    = "activity"
)

// LogEvent describes one store operation.
type LogEvent struct {
	Op       string
	Path     string
	Reason   string
	Origin   string
	RefCount int
	Duration time.Duration
	Err      error
}

// Logger records store events.
type Logger interface {
	LogStore(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogStore implements Logger.
func (f LoggerFunc) LogStore(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogStore(LogEvent) {}
