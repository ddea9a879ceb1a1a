package reactor

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
)

// chain is an immutable list of state types carried on a context.
type chain struct {
	key  reflect.Type
	next *chain
}

func (c *chain) contains(key reflect.Type) bool {
	for node := c; node != nil; node = node.next {
		if node.key == key {
			return true
		}
	}
	return false
}

type fanoutKey struct{}

type dispatchKey struct{}

func withMarker(ctx context.Context, marker any, key reflect.Type) context.Context {
	parent, _ := ctx.Value(marker).(*chain)
	return context.WithValue(ctx, marker, &chain{key: key, next: parent})
}

func hasMarker(ctx context.Context, marker any, key reflect.Type) bool {
	current, _ := ctx.Value(marker).(*chain)
	return current.contains(key)
}

// inFanout reports whether ctx descends from a notification fan-out of key.
func inFanout(ctx context.Context, key reflect.Type) bool {
	return hasMarker(ctx, fanoutKey{}, key)
}

func inDispatch(ctx context.Context, key reflect.Type) bool {
	return hasMarker(ctx, dispatchKey{}, key)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// goid returns the id of the calling goroutine.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// "goroutine 123 [running]:\n"
	var id uint64
	_, _ = fmt.Sscanf(string(buf[:n]), "goroutine %d ", &id)
	return id
}

// ownedMutex is a mutex that remembers which goroutine holds it, so a
// holder calling back into the container is rejected instead of blocking on
// itself. Callbacks that hand work to another goroutine and wait for it are
// not detected.
type ownedMutex struct {
	mu    sync.Mutex
	owner atomic.Uint64
}

func (m *ownedMutex) Lock() {
	m.mu.Lock()
	m.owner.Store(goid())
}

func (m *ownedMutex) Unlock() {
	m.owner.Store(0)
	m.mu.Unlock()
}

// heldByCaller reports whether the calling goroutine holds m.
func (m *ownedMutex) heldByCaller() bool {
	owner := m.owner.Load()
	return owner != 0 && owner == goid()
}
