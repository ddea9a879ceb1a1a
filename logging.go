package reactor

import "time"

// EventKind classifies runtime log events.
type EventKind string

const (
	EventRegister EventKind = "register"
	EventCommit   EventKind = "commit"
	EventDispatch EventKind = "dispatch"
	EventActivity EventKind = "activity"
)

// LogEvent describes one runtime occurrence for logging.
type LogEvent struct {
	Kind       EventKind
	StateType  string
	ReactionID string
	Revision   uint64
	Topics     []Topic
	Duration   time.Duration
	Err        error
}

// Logger records runtime events.
type Logger interface {
	LogRuntime(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogRuntime implements Logger.
func (f LoggerFunc) LogRuntime(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogRuntime(LogEvent) {}
