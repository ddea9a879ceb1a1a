package reactor

import (
	"context"
	"reflect"
	"sync"
)

// Registry maps each state type to its topic table. Tables are typed per
// state, so fan-out never needs a runtime type test on the snapshot.
type Registry struct {
	mu     sync.RWMutex
	tables map[reflect.Type]any
}

func newRegistry() *Registry {
	return &Registry{tables: map[reflect.Type]any{}}
}

// lookupTable returns nil when nothing subscribed to the state type yet.
func lookupTable[S Deriver](r *Registry, key reflect.Type) *topicTable[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, _ := r.tables[key].(*topicTable[S])
	return table
}

func ensureTable[S Deriver](r *Registry, key reflect.Type) *topicTable[S] {
	if table := lookupTable[S](r, key); table != nil {
		return table
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if table, ok := r.tables[key].(*topicTable[S]); ok {
		return table
	}
	table := &topicTable[S]{byTopic: map[Topic][]reaction[S]{}}
	r.tables[key] = table
	return table
}

// Subscriptions reports how many reactions are registered per topic for the
// given state type name.
func (r *Registry) Subscriptions(stateType string) map[Topic]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key, table := range r.tables {
		if stateName(key) != stateType {
			continue
		}
		if counter, ok := table.(interface{ counts() map[Topic]int }); ok {
			return counter.counts()
		}
	}
	return nil
}

// reaction is the capability the registry needs from a subscriber.
type reaction[S Deriver] interface {
	ID() string
	Topics() []Topic
	kind() string
	notify(ctx context.Context, snapshot S) error
}

type topicTable[S Deriver] struct {
	mu      sync.RWMutex
	byTopic map[Topic][]reaction[S]
}

func (t *topicTable[S]) add(r reaction[S]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, topic := range r.Topics() {
		t.byTopic[topic] = append(t.byTopic[topic], r)
	}
}

func (t *topicTable[S]) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := false
	for topic, list := range t.byTopic {
		kept := list[:0:0]
		for _, r := range list {
			if r.ID() == id {
				removed = true
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(t.byTopic, topic)
			continue
		}
		t.byTopic[topic] = kept
	}
	return removed
}

// matching returns each reaction subscribed to any of topics exactly once,
// ordered by the first topic it matched and then by registration order.
func (t *topicTable[S]) matching(topics []Topic) []reaction[S] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := map[string]struct{}{}
	var out []reaction[S]
	for _, topic := range topics {
		for _, r := range t.byTopic[topic] {
			if _, ok := seen[r.ID()]; ok {
				continue
			}
			seen[r.ID()] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func (t *topicTable[S]) counts() map[Topic]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[Topic]int, len(t.byTopic))
	for topic, list := range t.byTopic {
		out[topic] = len(list)
	}
	return out
}
