package store

import (
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/globe-tracker/model"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventCatalogReplaced EventType = iota
)

// Event is emitted to subscribers when the catalog changes.
type Event struct {
	Type      EventType
	Version   uint64
	Count     int
	FetchedAt time.Time
}

// ElementStore is an in-memory, thread-safe holder for the current
// element-set catalog, keyed by object name. The external data source
// replaces the catalog wholesale on its own cadence; subscribers (the
// refresh service) are notified so they can trigger a rebuild.
type ElementStore struct {
	mu sync.RWMutex

	elements  map[string]model.ElementSet
	version   uint64
	fetchedAt time.Time

	subs []func(Event)
}

// NewElementStore constructs an empty store.
func NewElementStore() *ElementStore {
	return &ElementStore{
		elements: make(map[string]model.ElementSet),
	}
}

// Replace swaps in a new catalog, bumps the version, and notifies
// subscribers. Element sets are stored by name; later duplicates win.
func (s *ElementStore) Replace(sets []model.ElementSet) {
	now := time.Now().UTC()

	s.mu.Lock()
	elements := make(map[string]model.ElementSet, len(sets))
	for _, es := range sets {
		elements[es.Name] = es
	}
	s.elements = elements
	s.version++
	s.fetchedAt = now
	event := Event{
		Type:      EventCatalogReplaced,
		Version:   s.version,
		Count:     len(elements),
		FetchedAt: now,
	}
	subs := append([]func(Event){}, s.subs...)
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
}

// Get returns the element set for the given name, if present.
func (s *ElementStore) Get(name string) (model.ElementSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	es, ok := s.elements[name]
	return es, ok
}

// List returns a snapshot of the catalog, sorted by name.
func (s *ElementStore) List() []model.ElementSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]model.ElementSet, 0, len(s.elements))
	for _, es := range s.elements {
		res = append(res, es)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Len returns the number of element sets currently held.
func (s *ElementStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// Version returns the catalog version, starting at zero for an empty store
// and incremented on every Replace.
func (s *ElementStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// FetchedAt returns when the current catalog was installed.
func (s *ElementStore) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function.
func (s *ElementStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < 0 || idx >= len(s.subs) {
			return
		}
		s.subs = append(s.subs[:idx], s.subs[idx+1:]...)
		idx = -1
	}
}
