// Package usersink forwards state activity events to a go-users ActivitySink.
package usersink

import (
	"context"
	"slices"
	"strings"

	"github.com/goliatone/go-reactor/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook records state events on a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs limits forwarding to the listed verbs. Empty forwards every
	// event.
	Verbs []string
	// SystemActor is recorded for merges that carried no actor.
	SystemActor uuid.UUID
}

// Notify forwards event as an ActivityRecord. The state type is copied into
// the record data under "state_type". Identifiers that are not UUIDs are
// recorded as uuid.Nil.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if event.Verb == "" || event.ObjectType == "" || event.ObjectID == "" {
		return nil
	}
	if len(h.Verbs) > 0 && !slices.Contains(h.Verbs, event.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	actor := parseUUID(event.ActorID)
	if actor == uuid.Nil {
		actor = h.SystemActor
	}
	data := event.Metadata
	if data == nil {
		data = map[string]any{}
	}
	data["state_type"] = event.ObjectType

	return h.Sink.Log(ctx, usertypes.ActivityRecord{
		ActorID:    actor,
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	})
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
