package engine

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/lawnchairsociety/tilefilter/internal/diag"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

const (
	// randomTileTries bounds the number of sampling rounds
	randomTileTries = 500
	// randomTileSample is the size of each weighted sample
	randomTileSample = 100
)

var (
	// ErrNothingFiltered is returned when a random tile is requested before any match.
	ErrNothingFiltered = errors.New("no matching tiles: filter tiles first")

	// ErrNoRandomTile is returned when every sampling round failed.
	ErrNoRandomTile = errors.New("no tile fit for a new settlement found among the matching tiles")
)

// SettlementWeight is the weight of a tile in random selection. It is zero
// for impassable tiles unless allowed, and for biomes that cannot host a base,
// are not implemented or are excluded from automatic choice.
func SettlementWeight(w world.DataSource, id int, allowImpassable bool) float64 {
	tile := w.Tile(id)
	if tile == nil {
		return 0
	}
	if tile.IsImpassable() && !allowImpassable {
		return 0
	}
	biome := w.Biome(tile.Biome)
	if biome == nil || !biome.CanBuildBase || !biome.Implemented || !biome.CanAutoChoose {
		return 0
	}
	return max(biome.SettleWeight, 0)
}

// RandomFilteredTile picks a settleable tile from the matching set by weighted
// sampling over bounded random subsets.
func (e *Engine) RandomFilteredTile() (int, error) {
	w := e.World()
	if w == nil {
		return -1, ErrNoWorld
	}
	matching := e.Matching()
	if len(matching) == 0 {
		return -1, ErrNothingFiltered
	}
	allowImpassable := e.options.Values().AllowImpassableHilliness

	e.randMu.Lock()
	defer e.randMu.Unlock()

	tries := min(len(matching), randomTileTries)
	sample := make([]int, min(len(matching), randomTileSample))
	for try := 0; try < tries; try++ {
		for i := range sample {
			sample[i] = matching[e.rand.Intn(len(matching))]
		}
		id, ok := weightedPick(e.rand, sample, func(id int) float64 {
			return SettlementWeight(w, id, allowImpassable)
		})
		if ok && w.IsValidTileForNewSettlement(id) {
			e.sink.Emit(diag.Info(fmt.Sprintf("random tile %d chosen after %d tries", id, try+1)))
			return id, nil
		}
	}

	e.sink.Emit(diag.Error(ErrNoRandomTile.Error()))
	return -1, ErrNoRandomTile
}

// weightedPick draws one id with probability proportional to its weight.
// It fails when every weight is zero.
func weightedPick(rnd *rand.Rand, ids []int, weight func(id int) float64) (int, bool) {
	weights := make([]float64, len(ids))
	total := 0.0
	for i, id := range ids {
		weights[i] = weight(id)
		total += weights[i]
	}
	if total <= 0 {
		return -1, false
	}

	r := rnd.Float64() * total
	for i, id := range ids {
		if weights[i] <= 0 {
			continue
		}
		r -= weights[i]
		if r < 0 {
			return id, true
		}
	}
	// Rounding left r at or just above zero: the last weighted id wins
	for i := len(ids) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return ids[i], true
		}
	}
	return -1, false
}
