package zaplog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	reactor "github.com/goliatone/go-reactor"
)

func observed(t *testing.T) (*Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLogger(zap.New(core).Sugar()), logs
}

func TestLogRuntimeLevels(t *testing.T) {
	logger, logs := observed(t)

	logger.LogRuntime(reactor.LogEvent{Kind: reactor.EventCommit, StateType: "counter", Revision: 2, Topics: []reactor.Topic{"self", "count"}})
	logger.LogRuntime(reactor.LogEvent{Kind: reactor.EventActivity, StateType: "counter", Err: errors.New("sink down")})
	logger.LogRuntime(reactor.LogEvent{Kind: reactor.EventDispatch, StateType: "counter", Err: errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "reactor commit", entries[0].Message)
	assert.Equal(t, uint64(2), entries[0].ContextMap()["revision"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}

func TestNilLoggerFallsBackToNop(t *testing.T) {
	logger := NewLogger(nil)
	assert.NotPanics(t, func() {
		logger.LogRuntime(reactor.LogEvent{Kind: reactor.EventRegister, StateType: "counter"})
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" INFO ": zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
	}
	for input, want := range cases {
		got, ok := ParseLevel(input)
		require.True(t, ok, input)
		assert.Equal(t, want, got)
	}

	_, ok := ParseLevel("verbose")
	assert.False(t, ok)
}
