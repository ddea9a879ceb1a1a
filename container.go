package reactor

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Container owns the current snapshot of one state type.
type Container[S Deriver] struct {
	rt   *Runtime
	key  reflect.Type
	name string

	// applyMu serializes merges and their fan-out so reactions observe
	// commits in order.
	applyMu ownedMutex
	// dispatchMu serializes actions.
	dispatchMu ownedMutex

	mu       sync.RWMutex
	current  S
	revision uint64
}

func newContainer[S Deriver](rt *Runtime, initial S) *Container[S] {
	key := stateKey[S]()
	return &Container[S]{
		rt:      rt,
		key:     key,
		name:    stateName(key),
		current: initial,
	}
}

// Read returns the current snapshot. It never blocks on fan-out.
func (c *Container[S]) Read() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Revision returns the number of merges committed so far.
func (c *Container[S]) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// StateType returns the name of the snapshot type.
func (c *Container[S]) StateType() string {
	return c.name
}

// Apply derives a new snapshot from changes, commits it and notifies every
// reaction subscribed to self or to one of the changed topics. When Derive
// fails or returns a value of another type the snapshot is left untouched and
// nothing is emitted. Reaction failures are returned after the commit.
func (c *Container[S]) Apply(ctx context.Context, changes Changes) error {
	ctx = ensureContext(ctx)
	if c.notifying(ctx) {
		return fmt.Errorf("%w: apply on %s during its own notification", ErrReentrantMutation, c.name)
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	derived, err := c.Read().Derive(changes)
	if err != nil {
		return fmt.Errorf("reactor: derive %s: %w", c.name, err)
	}
	next, ok := derived.(S)
	if !ok {
		return fmt.Errorf("%w: %s derived %T", ErrTypeMismatch, c.name, derived)
	}
	return c.commit(ctx, next, emittedTopics(changes))
}

// Set applies a single topic change.
func (c *Container[S]) Set(ctx context.Context, topic Topic, value any) error {
	return c.Apply(ctx, Changes{topic: value})
}

// Replace commits snapshot as a whole. The emitted topics are self plus the
// snapshot's field names when it implements Fielder.
func (c *Container[S]) Replace(ctx context.Context, snapshot S) error {
	ctx = ensureContext(ctx)
	if c.notifying(ctx) {
		return fmt.Errorf("%w: replace on %s during its own notification", ErrReentrantMutation, c.name)
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	changes := Changes{}
	if fielder, ok := any(snapshot).(Fielder); ok {
		for name := range fielder.Fields() {
			changes[Topic(name)] = nil
		}
	}
	return c.commit(ctx, snapshot, emittedTopics(changes))
}

// notifying reports whether the caller is running inside a fan-out or an
// initial delivery of this container. Callbacks that dropped the context they
// were given are recognised by the goroutine holding applyMu.
func (c *Container[S]) notifying(ctx context.Context) bool {
	return inFanout(ctx, c.key) || c.applyMu.heldByCaller()
}

// commit must be called with applyMu held.
func (c *Container[S]) commit(ctx context.Context, next S, topics []Topic) error {
	c.mu.Lock()
	c.current = next
	c.revision++
	revision := c.revision
	c.mu.Unlock()

	c.rt.observeCommit(ctx, c.name, revision, topics)

	start := time.Now()
	err := c.fanout(withMarker(ctx, fanoutKey{}, c.key), next, revision, topics)
	c.rt.logEvent(LogEvent{
		Kind:      EventCommit,
		StateType: c.name,
		Revision:  revision,
		Topics:    topics,
		Duration:  time.Since(start),
		Err:       err,
	})
	return err
}

func (c *Container[S]) fanout(ctx context.Context, snapshot S, revision uint64, topics []Topic) error {
	table := lookupTable[S](c.rt.registry, c.key)
	if table == nil {
		return nil
	}
	for _, r := range table.matching(topics) {
		c.rt.observeNotification(c.name, r.kind())
		if err := r.notify(ctx, snapshot); err != nil {
			return wrapReactionError(r.ID(), c.name, revision, err)
		}
	}
	return nil
}

// Dispatch runs action against this container. Actions for the same state
// type run one at a time. The action's error is returned unchanged.
func (c *Container[S]) Dispatch(ctx context.Context, action Action[S]) error {
	if action == nil {
		return ErrNilAction
	}
	ctx = ensureContext(ctx)
	if c.notifying(ctx) || inDispatch(ctx, c.key) || c.dispatchMu.heldByCaller() {
		return fmt.Errorf("%w: dispatch on %s from within its own action", ErrReentrantMutation, c.name)
	}

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	ctx = withMarker(ctx, dispatchKey{}, c.key)
	start := time.Now()
	err := action(ctx, c, updater[S]{ctx: ctx, container: c}, c.rt.services())
	duration := time.Since(start)

	c.rt.observeDispatch(c.name, duration, err)
	c.rt.logEvent(LogEvent{
		Kind:      EventDispatch,
		StateType: c.name,
		Revision:  c.Revision(),
		Duration:  duration,
		Err:       err,
	})
	return err
}
