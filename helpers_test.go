package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type appState struct {
	Counter int  `json:"counter"`
	Enabled bool `json:"enabled"`
}

func (s appState) Derive(changes Changes) (any, error) {
	next := s
	for topic, value := range changes {
		switch topic {
		case TopicSelf:
		case "counter":
			counter, ok := value.(int)
			if !ok {
				return nil, fmt.Errorf("counter: want int, got %T", value)
			}
			next.Counter = counter
		case "enabled":
			enabled, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("enabled: want bool, got %T", value)
			}
			next.Enabled = enabled
		default:
			return nil, fmt.Errorf("unknown field %q", topic)
		}
	}
	return next, nil
}

func (s appState) Fields() map[string]any {
	return map[string]any{"counter": s.Counter, "enabled": s.Enabled}
}

type profileState struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func (s profileState) Derive(changes Changes) (any, error) {
	return DeriveJSON(s, changes)
}

func (s profileState) Validate() error {
	if s.Age < 0 {
		return errors.New("age must not be negative")
	}
	return nil
}

// driftState derives into a different type.
type driftState struct {
	N int
}

func (driftState) Derive(Changes) (any, error) {
	return appState{}, nil
}

type recorder[S any] struct {
	mu    sync.Mutex
	calls []S
}

func (r *recorder[S]) effect(_ context.Context, snapshot S) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, snapshot)
	return nil
}

func (r *recorder[S]) snapshots() []S {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]S(nil), r.calls...)
}

func newAppRuntime(t *testing.T, initial appState, opts ...Option) (*Runtime, *Container[appState]) {
	t.Helper()
	rt := New(opts...)
	c, err := RegisterState(rt, initial)
	require.NoError(t, err)
	return rt, c
}

func multiplyCounter(factor int) Action[appState] {
	return func(_ context.Context, state StateReader[appState], update Updater[appState], _ ServiceProvider) error {
		return update.Set("counter", state.Read().Counter*factor)
	}
}

// returnsWithin runs fn on its own goroutine and fails the test when it has
// not returned after a few seconds.
func returnsWithin(t *testing.T, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("call blocked")
		return nil
	}
}
