package memory

import (
	"context"
	"sync"
	"time"
)

// Marker remembers keys for a TTL. It is the in-process counterpart of the
// Redis SET NX marker used to send each overdue notice once.
type Marker struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewMarker creates an empty marker.
func NewMarker() *Marker {
	return &Marker{keys: make(map[string]time.Time), now: time.Now}
}

// MarkOnce records key for ttl and reports whether this call set it first.
func (m *Marker) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	for k, exp := range m.keys {
		if !now.Before(exp) {
			delete(m.keys, k)
		}
	}
	m.keys[key] = now.Add(ttl)
	return true, nil
}

// Unmark forgets key.
func (m *Marker) Unmark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
