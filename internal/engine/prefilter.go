package engine

import (
	"fmt"
	"time"

	"github.com/lawnchairsociety/tilefilter/internal/diag"
	"github.com/lawnchairsociety/tilefilter/internal/longevent"
	"github.com/lawnchairsociety/tilefilter/internal/tileset"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// ViableTiles returns, in ascending order, the tiles whose biome can host a
// base and is implemented, skipping impassable tiles unless allowed.
func ViableTiles(w world.DataSource, allowImpassable bool) []int {
	viable := make([]int, 0, w.TileCount())
	for id := 0; id < w.TileCount(); id++ {
		tile := w.Tile(id)
		if tile == nil {
			continue
		}
		biome := w.Biome(tile.Biome)
		if biome == nil || !biome.Settleable() {
			continue
		}
		if tile.IsImpassable() && !allowImpassable {
			continue
		}
		viable = append(viable, id)
	}
	return viable
}

// Prefilter queues a rebuild of the viable set.
func (e *Engine) Prefilter() (*longevent.Task, error) {
	return e.enqueue("prefilter", func() error {
		_, err := e.PrefilterNow()
		return err
	})
}

// PrefilterNow clears the matching set, rebuilds the viable set and its road
// and river views on the caller's goroutine and returns the viable count.
func (e *Engine) PrefilterNow() (int, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	w := e.World()
	if w == nil {
		return 0, ErrNoWorld
	}

	// Matches from the previous viable set may no longer be viable
	e.ClearMatchingTiles()

	start := time.Now()
	viable := ViableTiles(w, e.options.Values().AllowImpassableHilliness)
	withRoad := tileset.Select(viable, func(id int) bool { return w.Tile(id).HasRoad() })
	withRiver := tileset.Select(viable, func(id int) bool { return w.Tile(id).HasRiver() })
	elapsed := time.Since(start)

	e.mu.Lock()
	e.viable = viable
	e.withRoad = withRoad
	e.withRiver = withRiver
	e.prefiltered = true
	e.mu.Unlock()

	removed := w.TileCount() - len(viable)
	e.sink.Emit(diag.Title("Prefilter"))
	e.sink.Emit(diag.Message{
		Level:   diag.LevelInfo,
		Text:    fmt.Sprintf("prefilter: %s valid tiles, %s removed", diag.Count(len(viable)), diag.Count(removed)),
		Count:   len(viable),
		Elapsed: elapsed,
	})
	e.sink.Emit(diag.Info(fmt.Sprintf("tiles with river: %s", diag.Count(len(withRiver)))))
	e.sink.Emit(diag.Info(fmt.Sprintf("tiles with road: %s", diag.Count(len(withRoad)))))

	e.log.Debug("prefilter done", "viable", len(viable), "removed", removed, "elapsed", elapsed)
	e.publishPrefiltered(len(viable))
	return len(viable), nil
}
