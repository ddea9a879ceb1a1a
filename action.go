package reactor

import "context"

// StateReader gives an action read access to the current snapshot.
type StateReader[S Deriver] interface {
	Read() S
	Revision() uint64
}

// Updater is the handle an action merges through. Each call commits and
// fans out on its own; build one Changes map to get a single notification
// round.
type Updater[S Deriver] interface {
	Apply(changes Changes) error
	Set(topic Topic, value any) error
	Replace(snapshot S) error
}

// Action is a unit of work dispatched against the container of S. It may be
// invoked any number of times and may block on external work.
type Action[S Deriver] func(ctx context.Context, state StateReader[S], update Updater[S], services ServiceProvider) error

type updater[S Deriver] struct {
	ctx       context.Context
	container *Container[S]
}

func (u updater[S]) Apply(changes Changes) error {
	return u.container.Apply(u.ctx, changes)
}

func (u updater[S]) Set(topic Topic, value any) error {
	return u.container.Set(u.ctx, topic, value)
}

func (u updater[S]) Replace(snapshot S) error {
	return u.container.Replace(u.ctx, snapshot)
}
