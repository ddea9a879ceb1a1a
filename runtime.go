package reactor

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-reactor/pkg/activity"
)

// Runtime owns the containers, one per state type, and the reaction
// registry. Pass it explicitly to whoever registers state or dispatches.
type Runtime struct {
	cfg      runtimeConfig
	registry *Registry
	emitter  *activity.Emitter

	mu         sync.RWMutex
	containers map[reflect.Type]any
	stores     map[reflect.Type]struct{}
}

// New constructs an empty Runtime.
func New(opts ...Option) *Runtime {
	cfg := applyOptions(opts)
	return &Runtime{
		cfg:        cfg,
		registry:   newRegistry(),
		emitter:    activity.NewEmitter(cfg.activityHooks, cfg.activityConfig()),
		containers: map[reflect.Type]any{},
		stores:     map[reflect.Type]struct{}{},
	}
}

// Registry exposes the reaction registry for inspection.
func (rt *Runtime) Registry() *Registry {
	return rt.registry
}

// States returns the names of registered state types, sorted.
func (rt *Runtime) States() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	names := make([]string, 0, len(rt.containers))
	for key := range rt.containers {
		names = append(names, stateName(key))
	}
	sort.Strings(names)
	return names
}

// RegisterState creates the container for S seeded with initial. A second
// registration for the same S fails with ErrDuplicateRegistration.
func RegisterState[S Deriver](rt *Runtime, initial S) (*Container[S], error) {
	key := stateKey[S]()

	rt.mu.Lock()
	if _, exists := rt.containers[key]; exists {
		rt.mu.Unlock()
		return nil, fmt.Errorf("%w: state %s", ErrDuplicateRegistration, stateName(key))
	}
	c := newContainer(rt, initial)
	rt.containers[key] = c
	rt.mu.Unlock()

	rt.logEvent(LogEvent{Kind: EventRegister, StateType: c.name})
	rt.emit(context.Background(), activity.BuildStateRegisteredEvent(context.Background(), activity.StateEventInput{
		StateType: c.name,
	}), c.name)
	return c, nil
}

// Lookup returns the container registered for S.
func Lookup[S Deriver](rt *Runtime) (*Container[S], error) {
	key := stateKey[S]()
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	c, ok := rt.containers[key].(*Container[S])
	if !ok {
		return nil, unregistered(stateName(key))
	}
	return c, nil
}

// Dispatch resolves the container for S and runs action against it.
func Dispatch[S Deriver](ctx context.Context, rt *Runtime, action Action[S]) error {
	c, err := Lookup[S](rt)
	if err != nil {
		return err
	}
	return c.Dispatch(ctx, action)
}

func (rt *Runtime) services() ServiceProvider {
	return rt.cfg.services
}

func (rt *Runtime) logEvent(event LogEvent) {
	rt.cfg.loggerOrNoop().LogRuntime(event)
}

func (rt *Runtime) observeCommit(ctx context.Context, stateType string, revision uint64, topics []Topic) {
	if rt.cfg.metrics != nil {
		rt.cfg.metrics.ObserveCommit(stateType, len(topics))
	}
	rt.emit(ctx, activity.BuildStateUpdatedEvent(ctx, activity.StateEventInput{
		StateType: stateType,
		Revision:  revision,
		Topics:    topicStrings(topics),
	}), stateType)
}

func (rt *Runtime) observeNotification(stateType, kind string) {
	if rt.cfg.metrics != nil {
		rt.cfg.metrics.ObserveNotification(stateType, kind)
	}
}

func (rt *Runtime) observeDispatch(stateType string, duration time.Duration, err error) {
	if rt.cfg.metrics != nil {
		rt.cfg.metrics.ObserveDispatch(stateType, duration, err)
	}
}

// emit reports activity failures to the logger; they never fail a merge.
func (rt *Runtime) emit(ctx context.Context, event activity.Event, stateType string) {
	if !rt.emitter.Enabled() {
		return
	}
	if err := rt.emitter.Emit(ctx, event); err != nil {
		rt.logEvent(LogEvent{Kind: EventActivity, StateType: stateType, Err: err})
	}
}
