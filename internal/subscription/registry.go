package subscription

import (
	"sync"

	"github.com/gyaneshwarpardhi/pprelay/internal/metrics"
)

// Registry is the in-memory set of subscribed chat IDs.
// It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[int64]struct{})}
}

// Subscribe adds id. Subscribing twice is a no-op.
func (r *Registry) Subscribe(id int64) {
	r.mu.Lock()
	r.ids[id] = struct{}{}
	n := len(r.ids)
	r.mu.Unlock()
	metrics.Subscribers.Set(float64(n))
}

// Unsubscribe removes id. Removing an absent id is a no-op.
func (r *Registry) Unsubscribe(id int64) {
	r.mu.Lock()
	delete(r.ids, id)
	n := len(r.ids)
	r.mu.Unlock()
	metrics.Subscribers.Set(float64(n))
}

// Contains reports whether id is subscribed.
func (r *Registry) Contains(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// ForEach calls fn for every subscriber in unspecified order. It iterates a
// snapshot, so fn may subscribe or unsubscribe.
func (r *Registry) ForEach(fn func(id int64)) {
	for _, id := range r.Snapshot() {
		fn(id)
	}
}

// Snapshot returns the current subscribers.
func (r *Registry) Snapshot() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	return out
}
