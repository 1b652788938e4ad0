package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/diag"
	"github.com/lawnchairsociety/tilefilter/internal/longevent"
	"github.com/lawnchairsociety/tilefilter/internal/threestate"
	"github.com/lawnchairsociety/tilefilter/internal/tileset"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

var testBiomes = []world.Biome{
	{Name: "Forest", CanBuildBase: true, Implemented: true, CanAutoChoose: true, SettleWeight: 1},
	{Name: "Ocean"},
	{Name: "Unfinished", CanBuildBase: true},
	{Name: "Ice", CanBuildBase: true, Implemented: true, SettleWeight: 1},
}

var testCatalog = world.Catalog{
	Roads:  []string{"DirtRoad", "StoneRoad"},
	Rivers: []string{"Creek"},
	Stones: []string{"Granite"},
}

// scenarioWorld has 10 tiles, 6 of them viable (0-5). Tiles 1, 2 and 3 are
// flat; tiles 2, 3 and 4 carry a road.
func scenarioWorld(t *testing.T, occupied ...int) *world.World {
	t.Helper()

	tiles := make([]world.Tile, 10)
	for i := range tiles {
		tiles[i] = world.Tile{
			Biome:         "Forest",
			Hilliness:     world.HillinessSmallHills,
			Elevation:     float64(i * 100),
			CoastRotation: world.NoCoastRotation,
		}
	}
	for _, id := range []int{1, 2, 3, 7} {
		tiles[id].Hilliness = world.HillinessFlat
	}
	for _, id := range []int{2, 3, 4, 6} {
		tiles[id].Roads = world.NewNameSet("DirtRoad")
	}
	tiles[5].Rivers = world.NewNameSet("Creek")
	tiles[6].Biome = "Ocean"
	tiles[7].Biome = "Ocean"
	tiles[8].Hilliness = world.HillinessImpassable
	tiles[9].Biome = "Unfinished"

	w, err := world.New(world.Info{Name: "scenario", Coverage: 0.3}, testCatalog, testBiomes, tiles, occupied)
	if err != nil {
		t.Fatalf("world.New() error: %v", err)
	}
	return w
}

func newEngine(t *testing.T, w world.DataSource, opts config.FilterOptions) *Engine {
	t.Helper()
	e := New(Deps{World: w, Options: config.NewOptions(opts), Seed: 42})
	t.Cleanup(e.Close)
	if _, err := e.PrefilterNow(); err != nil {
		t.Fatalf("PrefilterNow() error: %v", err)
	}
	return e
}

func mutate(t *testing.T, e *Engine, key constraint.Key, fn func(v *constraint.Values)) {
	t.Helper()
	err := e.Constraints().Mutate(key, func(v *constraint.Values) error {
		fn(v)
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate(%s) error: %v", key, err)
	}
}

func flatWithRoad(t *testing.T, e *Engine) {
	t.Helper()
	mutate(t, e, constraint.Hilliness, func(v *constraint.Values) { v.Hilliness = world.HillinessFlat })
	mutate(t, e, constraint.Roads, func(v *constraint.Values) {
		v.Roads.Mode = threestate.ModeOr
		_ = v.Roads.SetState("DirtRoad", threestate.Required)
	})
}

func TestPrefilter(t *testing.T) {
	w := scenarioWorld(t)
	e := newEngine(t, w, config.DefaultFilterOptions())

	if got, want := e.Viable(), []int{0, 1, 2, 3, 4, 5}; !tileset.Equal(got, want) {
		t.Errorf("Viable() = %v, want %v", got, want)
	}
	if got, want := e.TilesWithRoad(), []int{2, 3, 4}; !tileset.Equal(got, want) {
		t.Errorf("TilesWithRoad() = %v, want %v", got, want)
	}
	if got, want := e.TilesWithRiver(), []int{5}; !tileset.Equal(got, want) {
		t.Errorf("TilesWithRiver() = %v, want %v", got, want)
	}
	if !strings.Contains(e.Report().Text(), "6 valid tiles, 4 removed") {
		t.Errorf("report missing prefilter summary:\n%s", e.Report().Text())
	}
}

func TestPrefilterAfterImpassableToggle(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())

	var counts []int
	e.OnPrefilterDone(func(viable int) { counts = append(counts, viable) })

	if err := e.Options().Set(config.AllowImpassableHilliness, true); err != nil {
		t.Fatal(err)
	}
	if got, want := e.Viable(), []int{0, 1, 2, 3, 4, 5, 8}; !tileset.Equal(got, want) {
		t.Errorf("Viable() = %v, want %v", got, want)
	}
	if len(counts) != 1 || counts[0] != 7 {
		t.Errorf("prefilter notifications = %v, want [7]", counts)
	}
}

func TestPrefilterClearsStaleMatches(t *testing.T) {
	opts := config.DefaultFilterOptions()
	opts.AllowImpassableHilliness = true
	opts.AllowInvalidTilesForNewSettlement = true
	e := newEngine(t, scenarioWorld(t), opts)

	mutate(t, e, constraint.Hilliness, func(v *constraint.Values) {
		v.Hilliness = world.HillinessImpassable
	})
	if _, err := e.FilterNow(); err != nil {
		t.Fatalf("FilterNow() error: %v", err)
	}
	if got, want := e.Matching(), []int{8}; !tileset.Equal(got, want) {
		t.Fatalf("Matching() = %v, want %v", got, want)
	}

	if err := e.Options().Set(config.AllowImpassableHilliness, false); err != nil {
		t.Fatal(err)
	}
	viable := e.Viable()
	if got, want := viable, []int{0, 1, 2, 3, 4, 5}; !tileset.Equal(got, want) {
		t.Errorf("Viable() = %v, want %v", got, want)
	}
	if stale := tileset.Difference(10, e.Matching(), viable); len(stale) != 0 {
		t.Errorf("Matching() holds tiles %v that are not viable", stale)
	}
}

func TestScenarioFlatWithRoad(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())
	flatWithRoad(t, e)

	r, err := e.FilterNow()
	if err != nil {
		t.Fatalf("FilterNow() error: %v", err)
	}
	if got, want := e.Matching(), []int{2, 3}; !tileset.Equal(got, want) {
		t.Errorf("Matching() = %v, want %v", got, want)
	}
	if r.Viable != 6 || r.Matched != 2 || len(r.Steps) != 2 {
		t.Errorf("report = viable %d matched %d steps %d, want 6 2 2", r.Viable, r.Matched, len(r.Steps))
	}
	if r.Steps[0].Key != constraint.Hilliness || r.Steps[1].Key != constraint.Roads {
		t.Errorf("step order = %s, %s", r.Steps[0].Key, r.Steps[1].Key)
	}
	if e.State() != StateIdle {
		t.Errorf("State() = %s, want idle", e.State())
	}
	if !r.Succeeded() || !strings.Contains(r.Summary(), "2 of 6 viable tiles match") {
		t.Errorf("Summary() = %q", r.Summary())
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())
	flatWithRoad(t, e)

	if _, err := e.FilterNow(); err != nil {
		t.Fatal(err)
	}
	first := e.Matching()
	if _, err := e.FilterNow(); err != nil {
		t.Fatal(err)
	}
	if second := e.Matching(); !tileset.Equal(first, second) {
		t.Errorf("second run = %v, first run = %v", second, first)
	}
}

func TestMonotonicNarrowing(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())
	flatWithRoad(t, e)
	mutate(t, e, constraint.Elevation, func(v *constraint.Values) { v.Elevation = constraint.Between(0.0, 250.0) })

	r, err := e.FilterNow()
	if err != nil {
		t.Fatalf("FilterNow() error: %v", err)
	}

	prev := r.Viable
	for _, step := range r.Steps {
		if step.Candidates != prev {
			t.Errorf("%s ran over %d candidates, want %d", step.Key, step.Candidates, prev)
		}
		if step.Matched > prev {
			t.Errorf("%s grew the result from %d to %d", step.Key, prev, step.Matched)
		}
		prev = step.Matched
	}

	viable := tileset.NewMembership(10, e.Viable())
	for _, id := range e.Matching() {
		if !viable.Has(id) {
			t.Errorf("tile %d matched but is not viable", id)
		}
	}
	if got, want := e.Matching(), []int{2}; !tileset.Equal(got, want) {
		t.Errorf("Matching() = %v, want %v", got, want)
	}
}

func TestEmptyViableWorld(t *testing.T) {
	tiles := []world.Tile{{Biome: "Ocean"}, {Biome: "Ocean"}}
	w, err := world.New(world.Info{Name: "sea"}, testCatalog, testBiomes, tiles, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, w, config.DefaultFilterOptions())
	mutate(t, e, constraint.Biome, func(v *constraint.Values) { v.Biome = "Forest" })

	r, err := e.FilterNow()
	var empty *EmptyResultError
	if !errors.As(err, &empty) {
		t.Fatalf("FilterNow() error = %v, want *EmptyResultError", err)
	}
	if empty.Subject != "" {
		t.Errorf("Subject = %q, want none", empty.Subject)
	}
	if len(r.Steps) != 0 {
		t.Errorf("%d predicates ran, want none", len(r.Steps))
	}
}

func TestEmptyResultNamesPredicate(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())
	mutate(t, e, constraint.Hilliness, func(v *constraint.Values) { v.Hilliness = world.HillinessFlat })
	mutate(t, e, constraint.Elevation, func(v *constraint.Values) { v.Elevation = constraint.Between(900.0, 1000.0) })

	_, err := e.FilterNow()
	var empty *EmptyResultError
	if !errors.As(err, &empty) {
		t.Fatalf("FilterNow() error = %v, want *EmptyResultError", err)
	}
	if empty.Key != constraint.Elevation || empty.Previous != 1 {
		t.Errorf("empty result = %s after %d filters, want elevation after 1", empty.Key, empty.Previous)
	}
	if !strings.Contains(err.Error(), "in conjunction with 1 previous filters") {
		t.Errorf("Error() = %q", err.Error())
	}
	if len(e.Matching()) != 0 {
		t.Errorf("Matching() = %v, want empty", e.Matching())
	}
	if e.State() != StateIdle {
		t.Errorf("State() = %s, want idle", e.State())
	}
}

func TestInvertedRange(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())
	mutate(t, e, constraint.Elevation, func(v *constraint.Values) { v.Elevation = constraint.Between(500.0, 100.0) })

	r, err := e.FilterNow()
	var userErr *UserConstraintError
	if !errors.As(err, &userErr) {
		t.Fatalf("FilterNow() error = %v, want *UserConstraintError", err)
	}
	if r.Error == "" || r.Succeeded() {
		t.Error("report should carry the error")
	}
	if len(e.Matching()) != 0 {
		t.Errorf("Matching() = %v, want empty", e.Matching())
	}

	var found bool
	for _, m := range e.Report().Messages() {
		if m.Level == diag.LevelError && m.Predicate == "elevation" {
			found = true
		}
	}
	if !found {
		t.Error("report should name the failing predicate")
	}
}

func TestPreCheck(t *testing.T) {
	small := scenarioWorld(t)
	large, err := world.New(world.Info{Name: "large", Coverage: 0.5}, testCatalog, testBiomes, []world.Tile{{Biome: "Forest"}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		world   world.DataSource
		opts    config.FilterOptions
		apply   func(v *constraint.Values)
		wantErr any
	}{
		{"all default", small, config.FilterOptions{}, func(v *constraint.Values) {}, &UserConstraintError{}},
		{"cave on flat", small, config.FilterOptions{}, func(v *constraint.Values) {
			v.HasCave = threestate.Required
			v.Hilliness = world.HillinessFlat
		}, &UserConstraintError{}},
		{"cave on any terrain", small, config.FilterOptions{}, func(v *constraint.Values) { v.HasCave = threestate.Required }, nil},
		{"cave on large hills", small, config.FilterOptions{}, func(v *constraint.Values) {
			v.HasCave = threestate.Required
			v.Hilliness = world.HillinessLargeHills
		}, nil},
		{"large world unconstrained", large, config.FilterOptions{}, func(v *constraint.Values) {
			v.Elevation = constraint.Between(0.0, 10.0)
		}, &PreconditionPerformanceError{}},
		{"large world check disabled", large, config.FilterOptions{DisablePreFilterCheck: true}, func(v *constraint.Values) {
			v.Elevation = constraint.Between(0.0, 10.0)
		}, nil},
		{"large world with biome", large, config.FilterOptions{}, func(v *constraint.Values) { v.Biome = "Forest" }, nil},
		{"large world with terrain", large, config.FilterOptions{}, func(v *constraint.Values) { v.Hilliness = world.HillinessFlat }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := constraint.NewValues(tt.world.Catalog())
			tt.apply(v)
			err := PreCheck(tt.world, v, tt.opts)

			switch tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Errorf("PreCheck() = %v, want nil", err)
				}
			case *UserConstraintError:
				var target *UserConstraintError
				if !errors.As(err, &target) {
					t.Errorf("PreCheck() = %v, want *UserConstraintError", err)
				}
			case *PreconditionPerformanceError:
				var target *PreconditionPerformanceError
				if !errors.As(err, &target) {
					t.Errorf("PreCheck() = %v, want *PreconditionPerformanceError", err)
				}
			}
		})
	}
}

func TestPreCheckFailureKeepsResult(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())
	flatWithRoad(t, e)
	if _, err := e.FilterNow(); err != nil {
		t.Fatal(err)
	}

	mutate(t, e, constraint.HasCave, func(v *constraint.Values) { v.HasCave = threestate.Required })
	if _, err := e.FilterNow(); err == nil {
		t.Fatal("cave on flat terrain should fail the precheck")
	}
	if got, want := e.Matching(), []int{2, 3}; !tileset.Equal(got, want) {
		t.Errorf("Matching() = %v, want %v", got, want)
	}
}

func TestNoEffectWarning(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())
	mutate(t, e, constraint.Biome, func(v *constraint.Values) { v.Biome = "Forest" })

	r, err := e.FilterNow()
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "biomes") {
		t.Errorf("Warnings = %v, want one biome warning", r.Warnings)
	}
}

func TestSettleabilityPass(t *testing.T) {
	w := scenarioWorld(t, 3)

	e := newEngine(t, w, config.DefaultFilterOptions())
	flatWithRoad(t, e)
	r, err := e.FilterNow()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := e.Matching(), []int{2}; !tileset.Equal(got, want) {
		t.Errorf("Matching() = %v, want %v", got, want)
	}
	if r.Removed != 1 {
		t.Errorf("Removed = %d, want 1", r.Removed)
	}

	allowed := newEngine(t, w, config.FilterOptions{AllowInvalidTilesForNewSettlement: true})
	flatWithRoad(t, allowed)
	if _, err := allowed.FilterNow(); err != nil {
		t.Fatal(err)
	}
	if got, want := allowed.Matching(), []int{2, 3}; !tileset.Equal(got, want) {
		t.Errorf("Matching() with invalid tiles allowed = %v, want %v", got, want)
	}
}

func TestLiveFiltering(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.FilterOptions{AllowLiveFiltering: true})

	var reports int
	e.OnFiltered(func(*Report) { reports++ })

	e.Constraints().Touch("not_a_constraint")
	if reports != 0 || e.LastRun() != nil {
		t.Error("unknown constraint keys should not trigger a pass")
	}

	flatWithRoad(t, e)
	if reports != 2 {
		t.Errorf("passes = %d, want one per change", reports)
	}
	if got, want := e.Matching(), []int{2, 3}; !tileset.Equal(got, want) {
		t.Errorf("Matching() = %v, want %v", got, want)
	}

	r, task, err := e.Filter()
	if err != nil || task != nil || r == nil {
		t.Errorf("Filter() = %v, %v, %v, want an immediate report", r, task, err)
	}
}

func TestDeferredFiltering(t *testing.T) {
	queue := longevent.NewQueue()
	queue.Start()
	defer queue.Stop()

	e := New(Deps{World: scenarioWorld(t), Queue: queue, Seed: 1})
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task, err := e.Prefilter()
	if err != nil {
		t.Fatal(err)
	}
	if err := task.Wait(ctx); err != nil {
		t.Fatalf("prefilter task error: %v", err)
	}

	// Without live filtering, changes alone never run a pass
	flatWithRoad(t, e)
	if e.LastRun() != nil {
		t.Fatal("constraint change ran a pass with live filtering off")
	}

	published := make(chan *Report, 1)
	e.OnFiltered(func(r *Report) { published <- r })

	r, task, err := e.Filter()
	if err != nil || r != nil || task == nil {
		t.Fatalf("Filter() = %v, %v, %v, want a queued task", r, task, err)
	}
	if err := task.Wait(ctx); err != nil {
		t.Fatalf("filter task error: %v", err)
	}

	select {
	case r := <-published:
		if r.Matched != 2 {
			t.Errorf("published Matched = %d, want 2", r.Matched)
		}
	default:
		t.Error("OnFiltered listener was not called before the task finished")
	}
}

func TestLoadWorld(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.FilterOptions{ResetAllFieldsOnNewGeneratedWorld: true, ViewPartialOffNoSelect: true})
	flatWithRoad(t, e)
	if _, err := e.FilterNow(); err != nil {
		t.Fatal(err)
	}

	if _, err := e.LoadWorld(scenarioWorld(t)); err != nil {
		t.Fatalf("LoadWorld() error: %v", err)
	}
	if len(e.Matching()) != 0 || e.LastRun() != nil {
		t.Error("LoadWorld() should clear the previous result")
	}
	if !e.Constraints().AreAllDefault() {
		t.Error("constraints should be reset")
	}
	if !e.Constraints().Snapshot().Roads.OffPartialNoSelect {
		t.Error("reset containers should take the view partial off no select default")
	}
	if !e.Prefiltered() || len(e.Viable()) != 6 {
		t.Errorf("Viable() = %v after inline prefilter", e.Viable())
	}
	if strings.Contains(e.Report().Text(), "Filter") {
		t.Error("report should be cleared on a new world")
	}

	if _, err := e.LoadWorld(nil); !errors.Is(err, ErrNoWorld) {
		t.Errorf("LoadWorld(nil) = %v, want ErrNoWorld", err)
	}
}

func TestLoadWorldKeepsConstraints(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())
	flatWithRoad(t, e)

	if _, err := e.LoadWorld(scenarioWorld(t)); err != nil {
		t.Fatal(err)
	}
	v := e.Constraints().Snapshot()
	if v.Hilliness != world.HillinessFlat {
		t.Errorf("Hilliness = %s, want flat", v.Hilliness)
	}
	if s, _ := v.Roads.State("DirtRoad"); s != threestate.Required {
		t.Errorf("DirtRoad = %s, want required", s)
	}
}

func TestClearMatchingTiles(t *testing.T) {
	e := newEngine(t, scenarioWorld(t), config.DefaultFilterOptions())
	flatWithRoad(t, e)
	if _, err := e.FilterNow(); err != nil {
		t.Fatal(err)
	}

	e.ClearMatchingTiles()
	if len(e.Matching()) != 0 {
		t.Errorf("Matching() = %v, want empty", e.Matching())
	}
	msgs := e.Report().Messages()
	last := msgs[len(msgs)-1]
	if last.Level != diag.LevelWarning || last.Text != "filtered tiles cleared" {
		t.Errorf("last message = %+v", last)
	}
}

func TestResetConstraints(t *testing.T) {
	opts := config.DefaultFilterOptions()
	opts.ViewPartialOffNoSelect = true
	e := newEngine(t, scenarioWorld(t), opts)
	flatWithRoad(t, e)
	if _, err := e.FilterNow(); err != nil {
		t.Fatal(err)
	}

	if err := e.ResetConstraints(); err != nil {
		t.Fatalf("ResetConstraints() error: %v", err)
	}
	if !e.Constraints().AreAllDefault() {
		t.Error("constraints not reset")
	}
	if !e.Constraints().Snapshot().Roads.OffPartialNoSelect {
		t.Error("roads OffPartialNoSelect = false, want option value")
	}
	if len(e.Matching()) != 0 {
		t.Errorf("Matching() = %v, want empty", e.Matching())
	}

	if err := New(Deps{}).ResetConstraints(); !errors.Is(err, ErrNoWorld) {
		t.Errorf("ResetConstraints() without world = %v, want ErrNoWorld", err)
	}
}

func TestNoWorld(t *testing.T) {
	e := New(Deps{})
	defer e.Close()

	if _, err := e.FilterNow(); !errors.Is(err, ErrNoWorld) {
		t.Errorf("FilterNow() = %v, want ErrNoWorld", err)
	}
	if _, err := e.PrefilterNow(); !errors.Is(err, ErrNoWorld) {
		t.Errorf("PrefilterNow() = %v, want ErrNoWorld", err)
	}
	if _, err := e.RandomFilteredTile(); !errors.Is(err, ErrNoWorld) {
		t.Errorf("RandomFilteredTile() = %v, want ErrNoWorld", err)
	}
}
