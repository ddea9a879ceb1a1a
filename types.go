package reactor

import (
	"reflect"
	"sort"
)

// Topic names one field or logical grouping of fields of a snapshot.
type Topic string

// TopicSelf is emitted by every successful merge.
const TopicSelf Topic = "self"

// Changes maps topics (field names) to their new values.
type Changes map[Topic]any

// Deriver is implemented by snapshot types. Derive returns a new snapshot
// with the named fields replaced and every other field copied unchanged. The
// receiver must not be modified. Returning a value of a different type than
// the receiver fails the merge with ErrTypeMismatch.
type Deriver interface {
	Derive(changes Changes) (any, error)
}

// Fielder exposes a snapshot as a flat variable map. Expression reactions
// evaluate against it, and Replace uses its keys as the emitted topics.
type Fielder interface {
	Fields() map[string]any
}

// emittedTopics returns self followed by the remaining keys sorted by name.
func emittedTopics(changes Changes) []Topic {
	topics := make([]Topic, 0, len(changes)+1)
	topics = append(topics, TopicSelf)
	keys := make([]Topic, 0, len(changes))
	for topic := range changes {
		if topic == TopicSelf {
			continue
		}
		keys = append(keys, topic)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return append(topics, keys...)
}

func normalizeTopics(topics []Topic) []Topic {
	if len(topics) == 0 {
		return []Topic{TopicSelf}
	}
	seen := make(map[Topic]struct{}, len(topics))
	out := make([]Topic, 0, len(topics))
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}
	if len(out) == 0 {
		return []Topic{TopicSelf}
	}
	return out
}

func topicStrings(topics []Topic) []string {
	out := make([]string, len(topics))
	for i, topic := range topics {
		out[i] = string(topic)
	}
	return out
}

func stateKey[S any]() reflect.Type {
	return reflect.TypeFor[S]()
}

func stateName(key reflect.Type) string {
	if key == nil {
		return "<nil>"
	}
	return key.String()
}
