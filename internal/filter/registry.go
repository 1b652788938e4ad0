package filter

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/lawnchairsociety/tilefilter/internal/constraint"
)

type registration struct {
	predicate Predicate
	heaviness Heaviness
}

// Registry owns one predicate per constraint key, each tagged with a heaviness.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
	byKey   map[constraint.Key]int

	// byType is built lazily from entries on the first HeavinessOf call
	// and dropped whenever a predicate is registered.
	byType map[reflect.Type]Heaviness
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[constraint.Key]int)}
}

// DefaultRegistry returns a registry holding every predicate with its
// standard heaviness, in registration order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, reg := range []registration{
		{biomeFilter{}, Light},
		{hillinessFilter{}, Light},
		{roadsFilter{}, Light},
		{riversFilter{}, Light},
		{movementDifficultyFilter{}, Heavy},
		{forageabilityFilter{}, Medium},
		{foragedFoodFilter{}, Light},
		{stonesFilter{}, Heavy},
		{newCoastalFilter(), Light},
		{newCoastalLakeFilter(), Light},
		{elevationFilter{}, Heavy},
		{timeZoneFilter{}, Medium},
		{coastRotationFilter{}, Heavy},
		{newAverageTemperatureFilter(), Light},
		{newMinTemperatureFilter(), Medium},
		{newMaxTemperatureFilter(), Medium},
		{growingPeriodFilter{}, Heavy},
		{rainfallFilter{}, Medium},
		{newAnimalsCanGrazeNowFilter(), Heavy},
		{newHasCaveFilter(), Light},
		{mostLeastFilter{}, Light},
		{worldFeatureFilter{}, Medium},
	} {
		if err := r.Register(reg.predicate, reg.heaviness); err != nil {
			panic(err) // the table above is static
		}
	}
	return r
}

// Register adds a predicate. Keys must be unique and heaviness known.
func (r *Registry) Register(p Predicate, h Heaviness) error {
	if h < Light || h > Heavy {
		return fmt.Errorf("predicate %q has invalid heaviness %s", p.Key(), h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[p.Key()]; exists {
		return fmt.Errorf("predicate %q already registered", p.Key())
	}
	r.byKey[p.Key()] = len(r.entries)
	r.entries = append(r.entries, registration{p, h})
	r.byType = nil
	return nil
}

// Lookup returns the predicate registered for key
func (r *Registry) Lookup(key constraint.Key) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byKey[key]
	if !ok {
		return nil, false
	}
	return r.entries[i].predicate, true
}

// Heaviness returns the heaviness registered for key, or Unknown.
func (r *Registry) Heaviness(key constraint.Key) Heaviness {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.byKey[key]; ok {
		return r.entries[i].heaviness
	}
	return Unknown
}

// HeavinessOf returns the heaviness of the predicate's implementation type,
// or Unknown when no predicate of that type is registered.
func (r *Registry) HeavinessOf(p Predicate) Heaviness {
	t := reflect.TypeOf(p)

	r.mu.RLock()
	cache := r.byType
	r.mu.RUnlock()

	if cache == nil {
		r.mu.Lock()
		if r.byType == nil {
			r.byType = make(map[reflect.Type]Heaviness, len(r.entries))
			for _, e := range r.entries {
				r.byType[reflect.TypeOf(e.predicate)] = e.heaviness
			}
		}
		cache = r.byType
		r.mu.Unlock()
	}

	if h, ok := cache[t]; ok {
		return h
	}
	return Unknown
}

// Ordered returns all predicates: Light first, then Medium, then Heavy.
// Registration order is kept within a class.
func (r *Registry) Ordered() []Predicate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := make([]Predicate, 0, len(r.entries))
	for _, h := range []Heaviness{Light, Medium, Heavy} {
		for _, e := range r.entries {
			if e.heaviness == h {
				ordered = append(ordered, e.predicate)
			}
		}
	}
	return ordered
}

// Keys returns the registered keys in registration order
func (r *Registry) Keys() []constraint.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]constraint.Key, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.predicate.Key()
	}
	return keys
}

// Len returns the number of registered predicates
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
