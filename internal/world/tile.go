package world

import (
	"math"
	"sort"

	"github.com/golang/geo/s2"
	"github.com/zyedidia/generic/mapset"
)

// NoCoastRotation marks a tile without a coast facing.
const NoCoastRotation = -1

// Tile is one cell of the world grid. Tiles are immutable once the world is built.
type Tile struct {
	ID        int
	Biome     string
	Hilliness Hilliness

	// Elevation is in meters; negative values are below sea level.
	Elevation float64

	// Temperatures are in Celsius.
	Temperature    float64
	MinTemperature float64
	MaxTemperature float64

	// Rainfall is in millimeters per year.
	Rainfall float64

	// GrowingTwelfths is the number of twelfths of the year plants can grow (0-12).
	GrowingTwelfths int

	MovementDifficulty float64
	Forageability      float64

	Coastal            bool
	CoastalLake        bool
	CoastRotation      int
	HasCave            bool
	AnimalsCanGrazeNow bool

	Roads  mapset.Set[string]
	Rivers mapset.Set[string]

	// Stones are ordered from most to least common on the tile.
	Stones StoneList

	Feature  string
	Location s2.LatLng
}

// StoneList is the ordered list of stone kinds found on a tile.
type StoneList []string

// Size returns the number of stone kinds
func (s StoneList) Size() int {
	return len(s)
}

// Has reports whether the stone kind is present
func (s StoneList) Has(name string) bool {
	return s.Index(name) >= 0
}

// Index returns the position of the stone kind, or -1.
func (s StoneList) Index(name string) int {
	for i, stone := range s {
		if stone == name {
			return i
		}
	}
	return -1
}

// HasRoad returns true if at least one road crosses the tile
func (t *Tile) HasRoad() bool {
	return t.Roads.Size() > 0
}

// HasRiver returns true if at least one river crosses the tile
func (t *Tile) HasRiver() bool {
	return t.Rivers.Size() > 0
}

// IsImpassable returns true for impassable hilliness
func (t *Tile) IsImpassable() bool {
	return t.Hilliness == HillinessImpassable
}

// TimeZone returns the tile's time zone offset in hours, derived from longitude.
func (t *Tile) TimeZone() int {
	return TimeZoneAt(t.Location)
}

// TimeZoneAt returns the hour offset for a position: one zone per 15 degrees.
func TimeZoneAt(ll s2.LatLng) int {
	return int(math.Round(ll.Lng.Degrees() / 15.0))
}

// NewNameSet builds a presence set from names.
func NewNameSet(names ...string) mapset.Set[string] {
	set := mapset.New[string]()
	for _, name := range names {
		set.Put(name)
	}
	return set
}

// SortedNames returns the members of a presence set in lexical order.
func SortedNames(set mapset.Set[string]) []string {
	names := make([]string, 0, set.Size())
	set.Each(func(name string) {
		names = append(names, name)
	})
	sort.Strings(names)
	return names
}
