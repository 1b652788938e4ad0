package filter

import (
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/threestate"
	"github.com/lawnchairsociety/tilefilter/internal/tileset"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// filterTiles keeps the candidates whose tile satisfies match.
func filterTiles(w world.DataSource, ids []int, match func(t *world.Tile) bool) []int {
	return tileset.Select(ids, func(id int) bool {
		tile := w.Tile(id)
		return tile != nil && match(tile)
	})
}

type biomeFilter struct{}

func (biomeFilter) Key() constraint.Key { return constraint.Biome }
func (biomeFilter) Subject() string     { return "biomes" }

func (biomeFilter) Active(v *constraint.Values) bool { return v.Biome != "" }

func (biomeFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterTiles(w, ids, func(t *world.Tile) bool { return t.Biome == v.Biome }), nil
}

type hillinessFilter struct{}

func (hillinessFilter) Key() constraint.Key { return constraint.Hilliness }
func (hillinessFilter) Subject() string     { return "terrain" }

func (hillinessFilter) Active(v *constraint.Values) bool {
	return v.Hilliness != world.HillinessUndefined
}

func (hillinessFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterTiles(w, ids, func(t *world.Tile) bool { return t.Hilliness == v.Hilliness }), nil
}

// foragedFoodFilter matches on the food foraged in the tile's biome.
type foragedFoodFilter struct{}

func (foragedFoodFilter) Key() constraint.Key { return constraint.ForagedFood }
func (foragedFoodFilter) Subject() string     { return "foraged food" }

func (foragedFoodFilter) Active(v *constraint.Values) bool { return v.ForagedFood != "" }

func (foragedFoodFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterTiles(w, ids, func(t *world.Tile) bool {
		biome := w.Biome(t.Biome)
		return biome != nil && biome.ForagedFood == v.ForagedFood
	}), nil
}

type worldFeatureFilter struct{}

func (worldFeatureFilter) Key() constraint.Key { return constraint.WorldFeature }
func (worldFeatureFilter) Subject() string     { return "world feature" }

func (worldFeatureFilter) Active(v *constraint.Values) bool { return v.WorldFeature != "" }

func (worldFeatureFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterTiles(w, ids, func(t *world.Tile) bool { return t.Feature == v.WorldFeature }), nil
}

// coastRotationFilter keeps coastal tiles facing the chosen rotation.
type coastRotationFilter struct{}

func (coastRotationFilter) Key() constraint.Key { return constraint.CoastalRotation }
func (coastRotationFilter) Subject() string     { return "coastal rotation" }

func (coastRotationFilter) Active(v *constraint.Values) bool {
	return v.CoastalRotation != constraint.AnyCoastRotation
}

func (coastRotationFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	if v.CoastalRotation < 0 || v.CoastalRotation > 3 {
		return nil, &UserConstraintError{Key: constraint.CoastalRotation, Subject: "coastal rotation", Reason: "rotation must be between 0 and 3"}
	}
	return filterTiles(w, ids, func(t *world.Tile) bool {
		return t.Coastal && t.CoastRotation == v.CoastalRotation
	}), nil
}

// flagFilter is shared by the boolean tile attributes.
type flagFilter struct {
	key     constraint.Key
	subject string
	state   func(v *constraint.Values) threestate.State
	value   func(t *world.Tile) bool
}

func (f flagFilter) Key() constraint.Key { return f.key }
func (f flagFilter) Subject() string     { return f.subject }

func (f flagFilter) Active(v *constraint.Values) bool {
	return f.state(v) != threestate.DontCare
}

func (f flagFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	state := f.state(v)
	return filterTiles(w, ids, func(t *world.Tile) bool { return state.Matches(f.value(t)) }), nil
}

type coastalFilter struct{ flagFilter }
type coastalLakeFilter struct{ flagFilter }
type hasCaveFilter struct{ flagFilter }
type animalsCanGrazeNowFilter struct{ flagFilter }

func newCoastalFilter() coastalFilter {
	return coastalFilter{flagFilter{
		key:     constraint.Coastal,
		subject: "coastal tiles",
		state:   func(v *constraint.Values) threestate.State { return v.Coastal },
		value:   func(t *world.Tile) bool { return t.Coastal },
	}}
}

func newCoastalLakeFilter() coastalLakeFilter {
	return coastalLakeFilter{flagFilter{
		key:     constraint.CoastalLake,
		subject: "coastal lake tiles",
		state:   func(v *constraint.Values) threestate.State { return v.CoastalLake },
		value:   func(t *world.Tile) bool { return t.CoastalLake },
	}}
}

func newHasCaveFilter() hasCaveFilter {
	return hasCaveFilter{flagFilter{
		key:     constraint.HasCave,
		subject: "caves",
		state:   func(v *constraint.Values) threestate.State { return v.HasCave },
		value:   func(t *world.Tile) bool { return t.HasCave },
	}}
}

func newAnimalsCanGrazeNowFilter() animalsCanGrazeNowFilter {
	return animalsCanGrazeNowFilter{flagFilter{
		key:     constraint.AnimalsCanGrazeNow,
		subject: "animals can graze now",
		state:   func(v *constraint.Values) threestate.State { return v.AnimalsCanGrazeNow },
		value:   func(t *world.Tile) bool { return t.AnimalsCanGrazeNow },
	}}
}
