package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/diag"
	"github.com/lawnchairsociety/tilefilter/internal/longevent"
	"github.com/lawnchairsociety/tilefilter/internal/threestate"
	"github.com/lawnchairsociety/tilefilter/internal/tileset"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// CoverageCheckThreshold is the world coverage from which an unconstrained
// biome and terrain choice is refused.
const CoverageCheckThreshold = 0.5

// PreCheck rejects requests before any predicate runs.
func PreCheck(w world.DataSource, v *constraint.Values, opts config.FilterOptions) error {
	if v.AreAllDefault() {
		return &UserConstraintError{Subject: "filters", Reason: "all filters are in their default state"}
	}

	if v.HasCave == threestate.Required && v.Hilliness != world.HillinessUndefined && !v.Hilliness.SupportsCaves() {
		return &UserConstraintError{
			Key:     constraint.HasCave,
			Subject: "caves",
			Reason:  fmt.Sprintf("caves need %s terrain or rougher, %s was chosen", world.MinCaveHilliness, v.Hilliness),
		}
	}

	coverage := w.Info().Coverage
	if !opts.DisablePreFilterCheck && coverage >= CoverageCheckThreshold &&
		v.Biome == "" && v.Hilliness == world.HillinessUndefined {
		return &PreconditionPerformanceError{Coverage: coverage}
	}
	return nil
}

// Filter starts a pass. With live filtering on it runs on the caller's
// goroutine and its report is returned. Otherwise it is queued as a long event
// and the returned task finishes after OnFiltered listeners have run.
func (e *Engine) Filter() (*Report, *longevent.Task, error) {
	if e.options.Values().AllowLiveFiltering {
		r, err := e.FilterNow()
		return r, nil, err
	}

	task, err := e.enqueue("filter", func() error {
		_, err := e.FilterNow()
		return err
	})
	if task == nil && e.queue == nil {
		return e.LastRun(), nil, err
	}
	return nil, task, err
}

// FilterNow runs a complete pass on the caller's goroutine. The returned
// report is also published to OnFiltered listeners, even when err is set.
func (e *Engine) FilterNow() (*Report, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	w := e.World()
	if w == nil {
		return nil, ErrNoWorld
	}

	v := e.constraints.Snapshot()
	opts := e.options.Values()
	r := newReport(w)

	e.setState(StatePreChecking)
	e.sink.Emit(diag.Title("Filter"))

	err := e.run(w, v, opts, r)
	r.finish(err)
	if err != nil {
		e.reportFailure(err)
	} else {
		e.sink.Emit(diag.Message{
			Level:   diag.LevelSuccess,
			Text:    fmt.Sprintf("found %s matching tiles in %s", diag.Count(r.Matched), r.Elapsed.Round(time.Millisecond)),
			Count:   r.Matched,
			Elapsed: r.Elapsed,
		})
	}

	e.mu.Lock()
	e.last = r
	e.state = StateCompleted
	e.mu.Unlock()

	e.publishFiltered(r)
	e.setState(StateIdle)
	return r, err
}

func (e *Engine) run(w world.DataSource, v *constraint.Values, opts config.FilterOptions, r *Report) error {
	viable := e.Viable()
	r.Viable = len(viable)
	if len(viable) == 0 {
		return &EmptyResultError{Reason: "no viable tile to filter"}
	}

	if err := PreCheck(w, v, opts); err != nil {
		return err
	}

	e.ClearMatchingTiles()
	e.setState(StateRunning)

	n := w.TileCount()
	var result []int
	active := 0
	for _, p := range e.registry.Ordered() {
		if !p.Active(v) {
			continue
		}

		candidates := result
		if active == 0 {
			candidates = viable
		}

		start := time.Now()
		matched, err := p.Filter(w, candidates, v)
		step := Step{
			Key:        p.Key(),
			Subject:    p.Subject(),
			Heaviness:  e.registry.HeavinessOf(p).String(),
			Candidates: len(candidates),
			Matched:    len(matched),
			Elapsed:    time.Since(start),
		}
		r.Steps = append(r.Steps, step)

		if err != nil {
			return err
		}
		if len(matched) == 0 {
			return &EmptyResultError{Key: p.Key(), Subject: p.Subject(), Previous: active}
		}
		if len(matched) == len(viable) {
			warning := fmt.Sprintf("%s: all %s viable tiles match, this filter has no effect", p.Subject(), diag.Count(len(viable)))
			r.Warnings = append(r.Warnings, warning)
			e.sink.Emit(diag.Message{Level: diag.LevelWarning, Text: warning, Predicate: p.Subject(), Count: len(matched)})
		}

		if active == 0 {
			result = tileset.Union(n, nil, matched)
		} else {
			result = tileset.Intersect(n, matched, result)
		}
		active++

		e.sink.Emit(diag.Message{
			Level:     diag.LevelInfo,
			Text:      fmt.Sprintf("%s: %s matching tiles", p.Subject(), diag.Count(len(result))),
			Predicate: p.Subject(),
			Count:     len(result),
			Elapsed:   step.Elapsed,
		})
	}

	if active == 0 {
		return &UserConstraintError{Subject: "filters", Reason: "no filter is active"}
	}

	if !opts.AllowInvalidTilesForNewSettlement {
		before := len(result)
		result = tileset.Select(result, w.IsValidTileForNewSettlement)
		r.Removed = before - len(result)
		if r.Removed > 0 {
			e.sink.Emit(diag.Info(fmt.Sprintf("removed %s tiles unfit for a new settlement", diag.Count(r.Removed))))
		}
	}

	if len(result) == 0 {
		return &EmptyResultError{Previous: active, Reason: "no tile matches the given filters"}
	}

	e.mu.Lock()
	e.matching = result
	e.mu.Unlock()
	r.Matched = len(result)
	return nil
}

func (e *Engine) reportFailure(err error) {
	m := diag.Error(err.Error())

	var empty *EmptyResultError
	var user *UserConstraintError
	switch {
	case errors.As(err, &empty):
		m.Predicate = empty.Subject
	case errors.As(err, &user):
		m.Predicate = user.Subject
	}
	e.sink.Emit(m)
	e.log.Info("filter pass failed", "error", err)
}
