package reactor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const (
	kindValue  = "value"
	kindEffect = "effect"
)

// ReactionOption configures a reaction at registration.
type ReactionOption func(*reactionConfig)

type reactionConfig struct {
	topics []Topic
	name   string
	guard  func(snapshot any) (bool, error)
}

func applyReactionOptions(opts []ReactionOption) reactionConfig {
	cfg := reactionConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.topics = normalizeTopics(cfg.topics)
	return cfg
}

// OnTopics subscribes the reaction to topics. Without it a reaction only
// listens to TopicSelf.
func OnTopics(topics ...Topic) ReactionOption {
	return func(cfg *reactionConfig) {
		cfg.topics = append(cfg.topics, topics...)
	}
}

// Named labels the reaction in logs and errors. The ID stays a UUID.
func Named(name string) ReactionOption {
	return func(cfg *reactionConfig) {
		cfg.name = name
	}
}

// When skips notifications for which guard returns false.
func When(guard func(snapshot any) (bool, error)) ReactionOption {
	return func(cfg *reactionConfig) {
		cfg.guard = guard
	}
}

type reactionBase struct {
	id      string
	name    string
	topics  []Topic
	guard   func(snapshot any) (bool, error)
	dispose func()
}

func newReactionBase(cfg reactionConfig) reactionBase {
	return reactionBase{
		id:     uuid.NewString(),
		name:   cfg.name,
		topics: cfg.topics,
		guard:  cfg.guard,
	}
}

// ID returns the reaction's unique identifier.
func (b *reactionBase) ID() string {
	return b.id
}

// Name returns the label given with Named, or the ID.
func (b *reactionBase) Name() string {
	if b.name != "" {
		return b.name
	}
	return b.id
}

// Topics returns a copy of the subscribed topics.
func (b *reactionBase) Topics() []Topic {
	return append([]Topic(nil), b.topics...)
}

// Dispose removes the reaction from the registry. Later merges no longer
// reach it. Calling Dispose more than once is a no-op.
func (b *reactionBase) Dispose() {
	if b.dispose != nil {
		b.dispose()
	}
}

func (b *reactionBase) admit(snapshot any) (bool, error) {
	if b.guard == nil {
		return true, nil
	}
	ok, err := b.guard(snapshot)
	if err != nil {
		return false, fmt.Errorf("reactor: guard for %s: %w", b.Name(), err)
	}
	return ok, nil
}

// ValueReaction caches a projection of the snapshot and notifies its
// listeners whenever the projected value changes.
type ValueReaction[S Deriver, T any] struct {
	reactionBase

	project func(S) (T, error)
	equal   func(a, b T) bool

	mu          sync.RWMutex
	value       T
	initialized bool
	listeners   []valueListener[T]
}

type valueListener[T any] struct {
	id string
	fn func(T)
}

// Value returns the most recently computed projection.
func (r *ValueReaction[S, T]) Value() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Listen registers fn to be called with every new value. Listeners run
// during the merge's fan-out: mutating the reaction's state type from fn
// fails with ErrReentrantMutation. The returned function removes the
// listener.
func (r *ValueReaction[S, T]) Listen(fn func(T)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	id := uuid.NewString()
	r.mu.Lock()
	r.listeners = append(r.listeners, valueListener[T]{id: id, fn: fn})
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, l := range r.listeners {
			if l.id == id {
				r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

func (r *ValueReaction[S, T]) kind() string {
	return kindValue
}

func (r *ValueReaction[S, T]) notify(_ context.Context, snapshot S) error {
	ok, err := r.admit(snapshot)
	if err != nil || !ok {
		return err
	}
	next, err := r.project(snapshot)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.initialized && r.equal(r.value, next) {
		r.mu.Unlock()
		return nil
	}
	r.value = next
	r.initialized = true
	listeners := append([]valueListener[T](nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l.fn(next)
	}
	return nil
}

// Effect is run by an EffectReaction. A returned error propagates to the
// caller of the merge that triggered it. Mutating or registering reactions on
// the effect's own state type from the effect fails with
// ErrReentrantMutation. ctx should be used for further mutations of other
// state types so cycles spanning several containers are reported.
type Effect[S Deriver] func(ctx context.Context, snapshot S) error

// EffectReaction runs its effect on every notification for its topics.
type EffectReaction[S Deriver] struct {
	reactionBase

	effect Effect[S]
}

func (r *EffectReaction[S]) kind() string {
	return kindEffect
}

func (r *EffectReaction[S]) notify(ctx context.Context, snapshot S) error {
	ok, err := r.admit(snapshot)
	if err != nil || !ok {
		return err
	}
	return r.effect(ctx, snapshot)
}

// RegisterValueReaction subscribes projection to S. Listeners fire only when
// the projected value changes under ==. The current snapshot is projected
// once before the function returns.
func RegisterValueReaction[S Deriver, T comparable](rt *Runtime, projection func(S) T, opts ...ReactionOption) (*ValueReaction[S, T], error) {
	return RegisterValueReactionFunc(rt, projection, func(a, b T) bool { return a == b }, opts...)
}

// RegisterValueReactionFunc is RegisterValueReaction with a custom equality.
func RegisterValueReactionFunc[S Deriver, T any](rt *Runtime, projection func(S) T, equal func(a, b T) bool, opts ...ReactionOption) (*ValueReaction[S, T], error) {
	if projection == nil {
		return nil, fmt.Errorf("reactor: projection is nil")
	}
	return registerValueReaction(rt, func(s S) (T, error) { return projection(s), nil }, equal, opts...)
}

func registerValueReaction[S Deriver, T any](rt *Runtime, projection func(S) (T, error), equal func(a, b T) bool, opts ...ReactionOption) (*ValueReaction[S, T], error) {
	if equal == nil {
		return nil, fmt.Errorf("reactor: equality function is nil")
	}
	r := &ValueReaction[S, T]{
		reactionBase: newReactionBase(applyReactionOptions(opts)),
		project:      projection,
		equal:        equal,
	}
	if err := register[S](rt, r, &r.reactionBase); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterEffectReaction subscribes effect to S. The effect runs once with
// the current snapshot before the function returns.
func RegisterEffectReaction[S Deriver](rt *Runtime, effect Effect[S], opts ...ReactionOption) (*EffectReaction[S], error) {
	if effect == nil {
		return nil, fmt.Errorf("reactor: effect is nil")
	}
	r := &EffectReaction[S]{
		reactionBase: newReactionBase(applyReactionOptions(opts)),
		effect:       effect,
	}
	if err := register[S](rt, r, &r.reactionBase); err != nil {
		return nil, err
	}
	return r, nil
}

// register adds r to the table of S and delivers the current snapshot. On
// any failure nothing stays registered.
func register[S Deriver](rt *Runtime, r reaction[S], base *reactionBase) error {
	c, err := Lookup[S](rt)
	if err != nil {
		return err
	}

	if c.applyMu.heldByCaller() {
		return fmt.Errorf("%w: register on %s during its own notification", ErrReentrantMutation, c.name)
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	table := ensureTable[S](rt.registry, c.key)
	table.add(r)
	base.dispose = func() { table.remove(r.ID()) }

	ctx := withMarker(context.Background(), fanoutKey{}, c.key)
	revision := c.Revision()
	rt.observeNotification(c.name, r.kind())
	if err := r.notify(ctx, c.Read()); err != nil {
		table.remove(r.ID())
		err = wrapReactionError(r.ID(), c.name, revision, err)
		rt.logEvent(LogEvent{Kind: EventRegister, StateType: c.name, ReactionID: r.ID(), Revision: revision, Topics: r.Topics(), Err: err})
		return err
	}
	rt.logEvent(LogEvent{Kind: EventRegister, StateType: c.name, ReactionID: r.ID(), Revision: revision, Topics: r.Topics()})
	return nil
}
