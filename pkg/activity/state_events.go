package activity

import (
	"context"
	"strconv"
	"strings"
	"time"
)

const (
	VerbStateRegistered = "state.registered"
	VerbStateUpdated    = "state.updated"
)

// StateEventInput describes the fields shared by state lifecycle events.
type StateEventInput struct {
	StateType  string
	Revision   uint64
	Topics     []string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildStateRegisteredEvent describes the creation of a state container.
func BuildStateRegisteredEvent(ctx context.Context, input StateEventInput) Event {
	return buildStateEvent(ctx, VerbStateRegistered, input)
}

// BuildStateUpdatedEvent describes one committed merge.
func BuildStateUpdatedEvent(ctx context.Context, input StateEventInput) Event {
	return buildStateEvent(ctx, VerbStateUpdated, input)
}

func buildStateEvent(ctx context.Context, verb string, input StateEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["revision"] = input.Revision
	if len(input.Topics) > 0 {
		metadata["topics"] = append([]string{}, input.Topics...)
	}

	stateType := strings.TrimSpace(input.StateType)
	event := Event{
		Verb:       verb,
		ObjectType: stateType,
		ObjectID:   stateType + "@" + strconv.FormatUint(input.Revision, 10),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
	if actor, ok := ActorFromContext(ctx); ok {
		event.ActorID = strings.TrimSpace(actor.ActorID)
		event.UserID = strings.TrimSpace(actor.UserID)
		event.TenantID = strings.TrimSpace(actor.TenantID)
	}
	return event
}
