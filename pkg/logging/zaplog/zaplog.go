// Package zaplog renders reactor runtime events through a zap logger.
package zaplog

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	reactor "github.com/goliatone/go-reactor"
)

// Logger implements reactor.Logger on top of a sugared zap logger.
type Logger struct {
	log *zap.SugaredLogger
}

var _ reactor.Logger = (*Logger)(nil)

// NewLogger wraps log. A nil log falls back to zap.NewNop.
func NewLogger(log *zap.SugaredLogger) *Logger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Logger{log: log}
}

// LogRuntime implements reactor.Logger. Events carrying an error are logged
// at warn level, except failed dispatches which are logged at error level.
func (l *Logger) LogRuntime(event reactor.LogEvent) {
	kvs := []any{"kind", string(event.Kind), "state", event.StateType}
	if event.ReactionID != "" {
		kvs = append(kvs, "reaction", event.ReactionID)
	}
	if event.Revision > 0 {
		kvs = append(kvs, "revision", event.Revision)
	}
	if len(event.Topics) > 0 {
		topics := make([]string, len(event.Topics))
		for i, topic := range event.Topics {
			topics[i] = string(topic)
		}
		kvs = append(kvs, "topics", topics)
	}
	if event.Duration > 0 {
		kvs = append(kvs, "duration", event.Duration)
	}

	message := "reactor " + string(event.Kind)
	switch {
	case event.Err == nil:
		l.log.Debugw(message, kvs...)
	case event.Kind == reactor.EventDispatch:
		l.log.Errorw(message, append(kvs, "error", event.Err)...)
	default:
		l.log.Warnw(message, append(kvs, "error", event.Err)...)
	}
}

// ParseLevel converts a level name to a zap level.
func ParseLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// New builds a console zap logger writing to stdout at the named level.
// Unknown levels fall back to info.
func New(level string, options ...zap.Option) *zap.SugaredLogger {
	lvl, _ := ParseLevel(level)

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		TimeKey:          "time",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: ", ",
	})
	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(lvl))
	return zap.New(core, options...).Sugar()
}
