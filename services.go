package reactor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrServiceUnavailable is returned when no provider can supply a service.
var ErrServiceUnavailable = errors.New("reactor: service unavailable")

// ServiceProvider looks up collaborators for actions. The runtime hands it
// to actions unchanged and never inspects what it returns.
type ServiceProvider interface {
	Provide(ctx context.Context, service reflect.Type, options ...any) (any, error)
}

// ServiceProviderFunc adapts a function to ServiceProvider.
type ServiceProviderFunc func(ctx context.Context, service reflect.Type, options ...any) (any, error)

// Provide implements ServiceProvider.
func (f ServiceProviderFunc) Provide(ctx context.Context, service reflect.Type, options ...any) (any, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, service)
	}
	return f(ctx, service, options...)
}

// Services is a static ServiceProvider keyed by type.
type Services map[reflect.Type]any

// Provide implements ServiceProvider. Options are ignored.
func (s Services) Provide(_ context.Context, service reflect.Type, _ ...any) (any, error) {
	value, ok := s[service]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, service)
	}
	return value, nil
}

// ProvideService stores value under T in s.
func ProvideService[T any](s Services, value T) {
	s[reflect.TypeFor[T]()] = value
}

// Service resolves T from provider.
func Service[T any](ctx context.Context, provider ServiceProvider, options ...any) (T, error) {
	var zero T
	key := reflect.TypeFor[T]()
	if provider == nil {
		return zero, fmt.Errorf("%w: %s", ErrServiceUnavailable, key)
	}
	value, err := provider.Provide(ensureContext(ctx), key, options...)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s provided as %T", ErrServiceUnavailable, key, value)
	}
	return typed, nil
}
