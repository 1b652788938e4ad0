package engine

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

func randomWorld(t *testing.T) *world.World {
	t.Helper()
	tiles := make([]world.Tile, 0, 40)
	for i := 0; i < 20; i++ {
		tiles = append(tiles, world.Tile{Biome: "Forest", Hilliness: world.HillinessFlat, CoastRotation: world.NoCoastRotation})
	}
	for i := 0; i < 20; i++ {
		tiles = append(tiles, world.Tile{Biome: "Ice", Hilliness: world.HillinessFlat, CoastRotation: world.NoCoastRotation})
	}
	w, err := world.New(world.Info{Name: "random"}, testCatalog, testBiomes, tiles, nil)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestRandomFilteredTileBeforeFilter(t *testing.T) {
	e := newEngine(t, randomWorld(t), config.DefaultFilterOptions())
	if _, err := e.RandomFilteredTile(); !errors.Is(err, ErrNothingFiltered) {
		t.Errorf("RandomFilteredTile() = %v, want ErrNothingFiltered", err)
	}
}

func TestRandomFilteredTilePicksMatch(t *testing.T) {
	e := newEngine(t, randomWorld(t), config.DefaultFilterOptions())
	mutate(t, e, constraint.Hilliness, func(v *constraint.Values) { v.Hilliness = world.HillinessFlat })
	if _, err := e.FilterNow(); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		id, err := e.RandomFilteredTile()
		if err != nil {
			t.Fatalf("RandomFilteredTile() error: %v", err)
		}
		// Ice cannot be auto-chosen, so only forest tiles (0-19) are picked
		if id < 0 || id >= 20 {
			t.Errorf("RandomFilteredTile() = %d, want a forest tile", id)
		}
	}
}

func TestRandomFilteredTileAllWeightsZero(t *testing.T) {
	e := newEngine(t, randomWorld(t), config.DefaultFilterOptions())
	mutate(t, e, constraint.Biome, func(v *constraint.Values) { v.Biome = "Ice" })
	if _, err := e.FilterNow(); err != nil {
		t.Fatal(err)
	}
	if len(e.Matching()) != 20 {
		t.Fatalf("Matching() has %d tiles, want 20", len(e.Matching()))
	}

	if _, err := e.RandomFilteredTile(); !errors.Is(err, ErrNoRandomTile) {
		t.Errorf("RandomFilteredTile() = %v, want ErrNoRandomTile", err)
	}
}

func TestSettlementWeight(t *testing.T) {
	w := scenarioWorld(t)

	tests := []struct {
		name            string
		id              int
		allowImpassable bool
		want            float64
	}{
		{"forest", 0, false, 1},
		{"ocean", 6, false, 0},
		{"unimplemented", 9, false, 0},
		{"impassable", 8, false, 0},
		{"impassable allowed", 8, true, 1},
		{"out of range", 99, false, 0},
	}
	for _, tt := range tests {
		if got := SettlementWeight(w, tt.id, tt.allowImpassable); got != tt.want {
			t.Errorf("%s: SettlementWeight() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestWeightedPick(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	if _, ok := weightedPick(rnd, []int{1, 2, 3}, func(int) float64 { return 0 }); ok {
		t.Error("zero weights should not pick")
	}

	for i := 0; i < 50; i++ {
		id, ok := weightedPick(rnd, []int{1, 2, 3}, func(id int) float64 {
			if id == 2 {
				return 5
			}
			return 0
		})
		if !ok || id != 2 {
			t.Fatalf("weightedPick() = %d, %v, want 2, true", id, ok)
		}
	}
}
