package reactor

import (
	"fmt"
	"maps"

	"github.com/goliatone/go-reactor/internal/hydrate"
)

// MapSnapshot is a snapshot backed by a field map, for state whose shape is
// only known at runtime. Treat it as read-only; Derive always copies.
type MapSnapshot map[string]any

// NewMapSnapshot copies fields into a MapSnapshot.
func NewMapSnapshot(fields map[string]any) MapSnapshot {
	out := make(MapSnapshot, len(fields))
	maps.Copy(out, fields)
	return out
}

// Derive returns a copy with changes applied. TopicSelf is not a field and
// is ignored.
func (m MapSnapshot) Derive(changes Changes) (any, error) {
	next := make(MapSnapshot, len(m)+len(changes))
	maps.Copy(next, m)
	for topic, value := range changes {
		if topic == TopicSelf {
			continue
		}
		next[string(topic)] = value
	}
	return next, nil
}

// Fields returns a copy of the field map.
func (m MapSnapshot) Fields() map[string]any {
	out := make(map[string]any, len(m))
	maps.Copy(out, m)
	return out
}

// Get returns the value stored under key.
func (m MapSnapshot) Get(key string) (any, bool) {
	value, ok := m[key]
	return value, ok
}

// DeriveJSON implements Derive for struct snapshots by overlaying changes on
// the JSON encoding of current, keyed by JSON field name. Topics that name
// no field are rejected, and a Validate() error method on S is honoured.
// Only exported, JSON-encoded fields survive the round trip.
func DeriveJSON[S any](current S, changes Changes) (S, error) {
	var zero S
	fields, err := hydrate.Encode(current)
	if err != nil {
		return zero, fmt.Errorf("reactor: encode %T: %w", current, err)
	}
	if fields == nil {
		return zero, fmt.Errorf("reactor: %T does not encode to an object", current)
	}
	for topic, value := range changes {
		if topic == TopicSelf {
			continue
		}
		fields[string(topic)] = value
	}

	decoder := hydrate.NewDecoder(
		hydrate.WithDisallowUnknownFields[S](),
		hydrate.WithPostHook[S](validateSnapshot[S]),
	)
	return decoder.Decode(hydrate.Context{StateType: fmt.Sprintf("%T", current)}, fields)
}

// FieldsJSON implements Fields for struct snapshots using JSON field names.
// Numbers come back as float64.
func FieldsJSON[S any](current S) map[string]any {
	fields, err := hydrate.Encode(current)
	if err != nil {
		return nil
	}
	return fields
}

func validateSnapshot[S any](_ hydrate.Context, value *S) error {
	if v, ok := any(*value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}
