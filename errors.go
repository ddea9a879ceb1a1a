package reactor

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateRegistration is returned when a state or store type is
	// registered twice.
	ErrDuplicateRegistration = errors.New("reactor: duplicate registration")
	// ErrUnregisteredState is returned when a reaction or dispatch references
	// a state type without a container.
	ErrUnregisteredState = errors.New("reactor: state not registered")
	// ErrTypeMismatch is returned when Derive produces a value that is not of
	// the container's snapshot type.
	ErrTypeMismatch = errors.New("reactor: derived snapshot type mismatch")
	// ErrReentrantMutation is returned when a container is mutated from its
	// own notification fan-out, or dispatched from within its own action.
	ErrReentrantMutation = errors.New("reactor: re-entrant mutation")
	// ErrNilAction is returned by Dispatch for a nil action.
	ErrNilAction = errors.New("reactor: action is nil")
)

// ReactionError wraps a failure raised by a reaction during fan-out or
// initial delivery.
type ReactionError struct {
	ReactionID string
	StateType  string
	Revision   uint64
	Err        error
}

func (e *ReactionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("reactor: reaction %s on %s revision=%d: %v", e.ReactionID, e.StateType, e.Revision, e.Err)
}

func (e *ReactionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapReactionError(reactionID, stateType string, revision uint64, err error) error {
	if err == nil {
		return nil
	}
	var reactionErr *ReactionError
	if errors.As(err, &reactionErr) && reactionErr.ReactionID == reactionID {
		return err
	}
	return &ReactionError{
		ReactionID: reactionID,
		StateType:  stateType,
		Revision:   revision,
		Err:        err,
	}
}

func unregistered(name string) error {
	return fmt.Errorf("%w: %s", ErrUnregisteredState, name)
}
