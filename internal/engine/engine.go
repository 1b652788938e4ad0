package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/diag"
	"github.com/lawnchairsociety/tilefilter/internal/filter"
	"github.com/lawnchairsociety/tilefilter/internal/logger"
	"github.com/lawnchairsociety/tilefilter/internal/longevent"
	"github.com/lawnchairsociety/tilefilter/internal/tileset"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// State is the phase of the filter state machine
type State int

const (
	StateIdle State = iota
	StatePreChecking
	StateRunning
	StateCompleted
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreChecking:
		return "prechecking"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ErrNoWorld is returned by operations that need a loaded world.
var ErrNoWorld = errors.New("no world loaded")

// Deps are the collaborators an engine works with.
type Deps struct {
	World       world.DataSource // optional, see LoadWorld
	Registry    *filter.Registry // defaults to filter.DefaultRegistry()
	Constraints *constraint.Set  // defaults to a set for the world catalog
	Options     *config.Options  // defaults to config.DefaultFilterOptions()
	Queue       *longevent.Queue // runs deferred work; nil runs it inline
	Sink        diag.Sink        // receives diagnostics in addition to the report log
	Seed        int64            // random tile selection seed, 0 means time based
}

// Engine owns the viable and matching tile sets of one world.
type Engine struct {
	registry    *filter.Registry
	constraints *constraint.Set
	options     *config.Options
	queue       *longevent.Queue
	report      *diag.Log
	sink        diag.Sink
	log         *slog.Logger

	// runMu serializes prefilter and filter passes
	runMu sync.Mutex

	mu          sync.RWMutex
	world       world.DataSource
	state       State
	prefiltered bool
	viable      []int
	withRoad    []int
	withRiver   []int
	matching    []int
	last        *Report

	randMu sync.Mutex
	rand   *rand.Rand

	listenMu          sync.RWMutex
	filterListeners   map[int]func(*Report)
	prefilterListener map[int]func(viable int)
	nextListener      int

	unsubscribe []func()
}

// New creates an engine and subscribes it to constraint and option changes.
func New(deps Deps) *Engine {
	catalog := world.Catalog{}
	if deps.World != nil {
		catalog = deps.World.Catalog()
	}
	if deps.Registry == nil {
		deps.Registry = filter.DefaultRegistry()
	}
	if deps.Constraints == nil {
		deps.Constraints = constraint.NewSet(catalog)
	}
	if deps.Options == nil {
		deps.Options = config.NewOptions(config.DefaultFilterOptions())
	}
	seed := deps.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	report := diag.NewLog()
	e := &Engine{
		registry:          deps.Registry,
		constraints:       deps.Constraints,
		options:           deps.Options,
		queue:             deps.Queue,
		report:            report,
		sink:              diag.Multi(report, deps.Sink),
		log:               logger.Component("engine"),
		world:             deps.World,
		rand:              rand.New(rand.NewSource(seed)),
		filterListeners:   make(map[int]func(*Report)),
		prefilterListener: make(map[int]func(int)),
	}

	e.unsubscribe = append(e.unsubscribe,
		e.constraints.Subscribe(e.onConstraintChanged),
		e.options.Subscribe(e.onOptionChanged),
	)
	return e
}

// Close detaches the engine from its constraint set and options.
func (e *Engine) Close() {
	for _, fn := range e.unsubscribe {
		fn()
	}
	e.unsubscribe = nil
}

// Constraints returns the constraint set the engine reads
func (e *Engine) Constraints() *constraint.Set { return e.constraints }

// Options returns the option set the engine reads
func (e *Engine) Options() *config.Options { return e.options }

// Registry returns the predicate registry
func (e *Engine) Registry() *filter.Registry { return e.registry }

// Report returns the diagnostics log of the current world.
func (e *Engine) Report() *diag.Log { return e.report }

// World returns the loaded world, or nil.
func (e *Engine) World() world.DataSource {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.world
}

// State returns the current phase of the state machine
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// LastRun returns the report of the most recent filter pass, or nil.
func (e *Engine) LastRun() *Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Matching returns a copy of the current matching tiles
func (e *Engine) Matching() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return tileset.Clone(e.matching)
}

// Viable returns a copy of the viable tiles
func (e *Engine) Viable() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return tileset.Clone(e.viable)
}

// TilesWithRoad returns the viable tiles carrying at least one road.
func (e *Engine) TilesWithRoad() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return tileset.Clone(e.withRoad)
}

// TilesWithRiver returns the viable tiles carrying at least one river.
func (e *Engine) TilesWithRiver() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return tileset.Clone(e.withRiver)
}

// Prefiltered reports whether the viable set is current for the loaded world.
func (e *Engine) Prefiltered() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prefiltered
}

// LoadWorld replaces the world, clears the report and the result sets, and
// queues a prefilter pass. Constraints are reset or rebound to the new catalog
// depending on ResetAllFieldsOnNewGeneratedWorld.
func (e *Engine) LoadWorld(w world.DataSource) (*longevent.Task, error) {
	if w == nil {
		return nil, ErrNoWorld
	}

	e.runMu.Lock()
	e.mu.Lock()
	e.world = w
	e.prefiltered = false
	e.viable, e.withRoad, e.withRiver, e.matching = nil, nil, nil, nil
	e.last = nil
	e.mu.Unlock()
	e.runMu.Unlock()

	e.report.Clear()

	opts := e.options.Values()
	if opts.ResetAllFieldsOnNewGeneratedWorld {
		e.constraints.Reset(w.Catalog())
		e.applyOffPartialNoSelect(opts.ViewPartialOffNoSelect)
	} else {
		e.constraints.Rebind(w.Catalog())
	}

	e.log.Info("world loaded", "name", w.Info().Name, "tiles", w.TileCount())
	return e.Prefilter()
}

// ClearMatchingTiles empties the matching set.
func (e *Engine) ClearMatchingTiles() {
	e.mu.Lock()
	e.matching = nil
	e.mu.Unlock()
	e.sink.Emit(diag.Warning("filtered tiles cleared"))
}

// ResetConstraints restores every constraint to its default for the loaded
// world's catalog and clears the matching set.
func (e *Engine) ResetConstraints() error {
	w := e.World()
	if w == nil {
		return ErrNoWorld
	}
	e.constraints.Reset(w.Catalog())
	if value := e.options.Values().ViewPartialOffNoSelect; value {
		e.applyOffPartialNoSelect(value)
	}
	e.ClearMatchingTiles()
	return nil
}

// OnFiltered registers fn to receive every completed filter pass, including
// failed ones. It returns a function that removes the listener.
func (e *Engine) OnFiltered(fn func(*Report)) func() {
	e.listenMu.Lock()
	id := e.nextListener
	e.nextListener++
	e.filterListeners[id] = fn
	e.listenMu.Unlock()

	return func() {
		e.listenMu.Lock()
		delete(e.filterListeners, id)
		e.listenMu.Unlock()
	}
}

// OnPrefilterDone registers fn to receive the viable count after each
// prefilter pass. It returns a function that removes the listener.
func (e *Engine) OnPrefilterDone(fn func(viable int)) func() {
	e.listenMu.Lock()
	id := e.nextListener
	e.nextListener++
	e.prefilterListener[id] = fn
	e.listenMu.Unlock()

	return func() {
		e.listenMu.Lock()
		delete(e.prefilterListener, id)
		e.listenMu.Unlock()
	}
}

func (e *Engine) publishFiltered(r *Report) {
	e.listenMu.RLock()
	listeners := make([]func(*Report), 0, len(e.filterListeners))
	for id := 0; id < e.nextListener; id++ {
		if fn, ok := e.filterListeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	e.listenMu.RUnlock()

	for _, fn := range listeners {
		fn(r)
	}
}

func (e *Engine) publishPrefiltered(viable int) {
	e.listenMu.RLock()
	listeners := make([]func(int), 0, len(e.prefilterListener))
	for id := 0; id < e.nextListener; id++ {
		if fn, ok := e.prefilterListener[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	e.listenMu.RUnlock()

	for _, fn := range listeners {
		fn(viable)
	}
}

// onConstraintChanged filters right away when live filtering is on.
// Keys without a predicate are logged and ignored.
func (e *Engine) onConstraintChanged(keys []constraint.Key) {
	relevant := false
	for _, key := range keys {
		if _, ok := e.registry.Lookup(key); !ok {
			e.log.Warn("change notification for unknown constraint", "key", key)
			continue
		}
		relevant = true
	}
	if !relevant || !e.options.Values().AllowLiveFiltering || !e.Prefiltered() {
		return
	}
	// Errors are reported through the sink
	_, _ = e.FilterNow()
}

func (e *Engine) onOptionChanged(key config.OptionKey, value bool) {
	switch key {
	case config.AllowImpassableHilliness:
		if e.World() == nil {
			return
		}
		if _, err := e.Prefilter(); err != nil {
			e.log.Error("failed to queue prefilter", "error", err)
		}
	case config.ViewPartialOffNoSelect:
		e.applyOffPartialNoSelect(value)
	}
}

func (e *Engine) applyOffPartialNoSelect(value bool) {
	keys := []constraint.Key{constraint.Roads, constraint.Rivers, constraint.Stones}
	err := e.constraints.Batch(keys, func(v *constraint.Values) error {
		for _, key := range keys {
			c, err := v.Container(key)
			if err != nil {
				return err
			}
			c.OffPartialNoSelect = value
		}
		return nil
	})
	if err != nil {
		e.log.Error("failed to apply off partial no select", "error", err)
	}
}

// enqueue runs fn as a long event. Without a queue fn runs inline and the
// returned task is nil.
func (e *Engine) enqueue(name string, fn func() error) (*longevent.Task, error) {
	if e.queue == nil {
		return nil, fn()
	}
	task, err := e.queue.Enqueue(name, fn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to queue %s: %w", name, err)
	}
	return task, nil
}
