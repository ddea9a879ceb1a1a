package eval

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Function is a helper callable from expressions.
type Function func(args ...any) (any, error)

// AnyArity disables the argument count check for a function.
const AnyArity = -1

var (
	ErrFunctionNotFound = errors.New("eval: function not registered")
	ErrArity            = errors.New("eval: wrong number of arguments")
)

type registeredFunction struct {
	name  string
	arity int
	fn    Function
}

// FunctionRegistry holds helpers shared by the expression engines. Lookups
// ignore case.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]registeredFunction
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]registeredFunction{}}
}

// Register adds a variadic helper.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	return r.RegisterArity(name, AnyArity, fn)
}

// RegisterArity adds a helper that must be called with exactly arity
// arguments.
func (r *FunctionRegistry) RegisterArity(name string, arity int, fn Function) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return fmt.Errorf("eval: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("eval: function %q is nil", name)
	case arity < AnyArity:
		return fmt.Errorf("eval: function %q has invalid arity %d", name, arity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]registeredFunction{}
	}
	key := strings.ToLower(name)
	if existing, ok := r.functions[key]; ok {
		return fmt.Errorf("eval: function %q already registered as %q", name, existing.name)
	}
	r.functions[key] = registeredFunction{name: name, arity: arity, fn: fn}
	return nil
}

// Merge copies every helper of other that r does not define yet.
func (r *FunctionRegistry) Merge(other *FunctionRegistry) {
	if r == nil || other == nil || r == other {
		return
	}
	other.mu.RLock()
	incoming := maps.Clone(other.functions)
	other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]registeredFunction{}
	}
	for key, entry := range incoming {
		if _, ok := r.functions[key]; !ok {
			r.functions[key] = entry
		}
	}
}

// Clone returns an independent registry with the same helpers. Evaluators
// clone at construction so later registrations do not leak into compiled
// programs.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{functions: maps.Clone(r.functions)}
}

// Call runs the helper registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %q (no registry)", ErrFunctionNotFound, name)
	}
	r.mu.RLock()
	entry, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	if entry.arity != AnyArity && len(args) != entry.arity {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, entry.name, entry.arity, len(args))
	}
	return entry.fn(args...)
}

// Names returns the registered names, lowercased and sorted. Engines bind
// helpers under these names.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}
