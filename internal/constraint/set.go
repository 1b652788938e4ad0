package constraint

import (
	"fmt"
	"sync"

	"github.com/lawnchairsociety/tilefilter/internal/threestate"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// Listener receives the keys of the constraints that changed
type Listener func(keys []Key)

// Set is the observable owner of the current constraint values.
// Readers take snapshots; writers go through Mutate or Batch.
type Set struct {
	mu        sync.RWMutex
	values    *Values
	listeners map[int]Listener
	nextID    int
}

// NewSet creates a set of default constraints for the catalog
func NewSet(catalog world.Catalog) *Set {
	return &Set{
		values:    NewValues(catalog),
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a deep copy of the current values.
func (s *Set) Snapshot() *Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Clone()
}

// AreAllDefault returns true if every constraint is in its default state
func (s *Set) AreAllDefault() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.AreAllDefault()
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Set) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Mutate applies fn to the values and notifies listeners with key.
// Listeners are not notified when fn fails.
func (s *Set) Mutate(key Key, fn func(v *Values) error) error {
	return s.Batch([]Key{key}, fn)
}

// Batch applies fn to the values and notifies listeners once with all keys.
func (s *Set) Batch(keys []Key, fn func(v *Values) error) error {
	s.mu.Lock()
	working := s.values.Clone()
	if err := fn(working); err != nil {
		s.mu.Unlock()
		return err
	}
	s.values = working
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if len(keys) > 0 {
		for _, fn := range listeners {
			fn(keys)
		}
	}
	return nil
}

// Touch notifies listeners that key changed without modifying anything.
func (s *Set) Touch(keys ...Key) {
	s.mu.RLock()
	listeners := s.snapshotListeners()
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(keys)
	}
}

// Reset restores every constraint to its default, rebuilding containers from
// the catalog. Listeners are not notified.
func (s *Set) Reset(catalog world.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = NewValues(catalog)
}

// Rebind rebuilds the containers for a new catalog, keeping the state of
// entries whose names still exist. Other values are untouched.
func (s *Set) Rebind(catalog world.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.Roads = rebind(s.values.Roads, catalog.Roads)
	s.values.Rivers = rebind(s.values.Rivers, catalog.Rivers)
	s.values.Stones = rebind(s.values.Stones, catalog.Stones)
}

func rebind(old *threestate.Container, names []string) *threestate.Container {
	c := threestate.NewContainer(names)
	c.Mode = old.Mode
	c.OffPartialNoSelect = old.OffPartialNoSelect
	c.OrderedFiltering = old.OrderedFiltering
	for _, entry := range old.Entries() {
		// Entries missing from the new catalog are dropped
		_ = c.SetState(entry.Name, entry.State)
	}
	return c
}

func (s *Set) snapshotListeners() []Listener {
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	return listeners
}

// Container returns the three-state container of a categorical key.
func (v *Values) Container(key Key) (*threestate.Container, error) {
	switch key {
	case Roads:
		return v.Roads, nil
	case Rivers:
		return v.Rivers, nil
	case Stones:
		return v.Stones, nil
	default:
		return nil, fmt.Errorf("constraint %q is not categorical", key)
	}
}
