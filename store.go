package reactor

import (
	"fmt"
	"reflect"
)

// Store bundles a state type with the reactions it declares.
type Store[S Deriver] interface {
	InitialState() S
	DeclareReactions(rt *Runtime) error
}

// RegisterStore registers the store's initial state and then runs its
// DeclareReactions hook. Registering the same store type twice fails with
// ErrDuplicateRegistration. When the hook fails the state stays registered
// and the error is returned.
func RegisterStore[S Deriver](rt *Runtime, store Store[S]) (*Container[S], error) {
	if store == nil {
		return nil, fmt.Errorf("reactor: store is nil")
	}
	storeKey := reflect.TypeOf(store)

	rt.mu.Lock()
	if _, exists := rt.stores[storeKey]; exists {
		rt.mu.Unlock()
		return nil, fmt.Errorf("%w: store %s", ErrDuplicateRegistration, storeKey)
	}
	rt.stores[storeKey] = struct{}{}
	rt.mu.Unlock()

	c, err := RegisterState(rt, store.InitialState())
	if err != nil {
		rt.mu.Lock()
		delete(rt.stores, storeKey)
		rt.mu.Unlock()
		return nil, err
	}
	if err := store.DeclareReactions(rt); err != nil {
		return c, fmt.Errorf("reactor: declare reactions for %s: %w", storeKey, err)
	}
	return c, nil
}
