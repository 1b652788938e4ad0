// Package world holds the read-only tile universe the filter engine works on.
package world

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"
)

// DataSource is the read-only view of a world that the filter engine queries by id.
type DataSource interface {
	// Info returns the world's identity and generation parameters.
	Info() Info

	// TileCount returns N; valid tile ids are [0, N).
	TileCount() int

	// Tile returns the tile with the given id, or nil when out of range.
	Tile(id int) *Tile

	// Biome returns the biome with the given name, or nil when unknown.
	Biome(name string) *Biome

	// Catalog returns the categorical values known to the world.
	Catalog() Catalog

	// IsValidTileForNewSettlement is the final settleability check.
	IsValidTileForNewSettlement(id int) bool
}

// Info identifies a world.
type Info struct {
	Name string `yaml:"name"`
	Seed int64  `yaml:"seed"`

	// Coverage is the fraction of the planet covered by the tile grid (0-1).
	Coverage float64 `yaml:"coverage"`
}

// World is the in-memory DataSource implementation.
type World struct {
	info     Info
	catalog  Catalog
	biomes   map[string]*Biome
	order    []string // biome names in declaration order
	tiles    []Tile
	occupied mapset.Set[int]
}

// New builds a world. Tile ids are reassigned to their index in tiles.
// Every tile must reference a declared biome.
func New(info Info, catalog Catalog, biomes []Biome, tiles []Tile, occupied []int) (*World, error) {
	w := &World{
		info:     info,
		catalog:  catalog,
		biomes:   make(map[string]*Biome, len(biomes)),
		order:    make([]string, 0, len(biomes)),
		tiles:    make([]Tile, len(tiles)),
		occupied: mapset.New[int](),
	}

	if info.Coverage < 0 || info.Coverage > 1 {
		return nil, fmt.Errorf("coverage %.2f is outside [0, 1]", info.Coverage)
	}

	for i := range biomes {
		b := biomes[i]
		if b.Name == "" {
			return nil, fmt.Errorf("biome %d has no name", i)
		}
		if _, exists := w.biomes[b.Name]; exists {
			return nil, fmt.Errorf("duplicate biome %q", b.Name)
		}
		w.biomes[b.Name] = &b
		w.order = append(w.order, b.Name)
	}

	for i, tile := range tiles {
		if _, ok := w.biomes[tile.Biome]; !ok {
			return nil, fmt.Errorf("tile %d references unknown biome %q", i, tile.Biome)
		}
		tile.ID = i
		if tile.Roads.Size() == 0 {
			tile.Roads = mapset.New[string]()
		}
		if tile.Rivers.Size() == 0 {
			tile.Rivers = mapset.New[string]()
		}
		w.tiles[i] = tile
	}

	for _, id := range occupied {
		if id < 0 || id >= len(tiles) {
			return nil, fmt.Errorf("occupied tile %d is out of range", id)
		}
		w.occupied.Put(id)
	}

	return w, nil
}

// Info returns the world's identity
func (w *World) Info() Info {
	return w.info
}

// TileCount returns the number of tiles
func (w *World) TileCount() int {
	return len(w.tiles)
}

// Tile returns the tile with the given id, or nil.
func (w *World) Tile(id int) *Tile {
	if id < 0 || id >= len(w.tiles) {
		return nil
	}
	return &w.tiles[id]
}

// Biome returns the biome with the given name, or nil.
func (w *World) Biome(name string) *Biome {
	return w.biomes[name]
}

// Biomes returns the biomes in declaration order.
func (w *World) Biomes() []Biome {
	result := make([]Biome, 0, len(w.order))
	for _, name := range w.order {
		result = append(result, *w.biomes[name])
	}
	return result
}

// Catalog returns the categorical values known to the world
func (w *World) Catalog() Catalog {
	return w.catalog
}

// Occupied returns the ids of tiles that already hold a settlement.
func (w *World) Occupied() []int {
	ids := make([]int, 0, w.occupied.Size())
	for id := range w.tiles {
		if w.occupied.Has(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// BiomeOf returns the biome of a tile.
func (w *World) BiomeOf(t *Tile) *Biome {
	return w.biomes[t.Biome]
}

// IsValidTileForNewSettlement returns true if a new settlement can be founded on the tile:
// the biome allows bases, the tile is passable and no settlement already stands there.
func (w *World) IsValidTileForNewSettlement(id int) bool {
	tile := w.Tile(id)
	if tile == nil {
		return false
	}
	biome := w.biomes[tile.Biome]
	if biome == nil || !biome.Settleable() {
		return false
	}
	if tile.IsImpassable() {
		return false
	}
	return !w.occupied.Has(id)
}
