package filter

import (
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/threestate"
	"github.com/lawnchairsociety/tilefilter/internal/tileset"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// filterGroup runs the container's combination mode over the candidates.
func filterGroup(ids []int, c *threestate.Container, values threestate.ValuesFunc, policy threestate.NoValuePolicy) []int {
	if c.Mode == threestate.ModeOr {
		return threestate.FilterOr(ids, c, values)
	}
	return threestate.FilterAnd(ids, c, values, policy)
}

func tileValues(w world.DataSource, pick func(t *world.Tile) threestate.Presence) threestate.ValuesFunc {
	return func(id int) threestate.Presence {
		tile := w.Tile(id)
		if tile == nil {
			return nil
		}
		return pick(tile)
	}
}

type roadsFilter struct{}

func (roadsFilter) Key() constraint.Key { return constraint.Roads }
func (roadsFilter) Subject() string     { return "roads" }

func (roadsFilter) Active(v *constraint.Values) bool { return !v.Roads.IsDefault() }

func (roadsFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	values := tileValues(w, func(t *world.Tile) threestate.Presence { return t.Roads })
	return filterGroup(ids, v.Roads, values, threestate.NoValueGeneral), nil
}

type riversFilter struct{}

func (riversFilter) Key() constraint.Key { return constraint.Rivers }
func (riversFilter) Subject() string     { return "rivers" }

func (riversFilter) Active(v *constraint.Values) bool { return !v.Rivers.IsDefault() }

func (riversFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	values := tileValues(w, func(t *world.Tile) threestate.Presence { return t.Rivers })
	return filterGroup(ids, v.Rivers, values, threestate.NoValueGeneral), nil
}

// stonesFilter never admits a tile without stones in AND mode. OR mode
// admits one only when no stone is Required.
type stonesFilter struct{}

func (stonesFilter) Key() constraint.Key { return constraint.Stones }
func (stonesFilter) Subject() string     { return "stones" }

func (stonesFilter) Active(v *constraint.Values) bool {
	return v.StoneTypesNumberOnly || !v.Stones.IsDefault()
}

func (stonesFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	if v.StoneTypesNumberOnly {
		if v.StoneTypesNumber < 0 {
			return nil, &UserConstraintError{Key: constraint.Stones, Subject: "stones", Reason: "stone types number must not be negative"}
		}
		return tileset.Select(ids, func(id int) bool {
			tile := w.Tile(id)
			return tile != nil && tile.Stones.Size() == v.StoneTypesNumber
		}), nil
	}

	c := v.Stones
	values := tileValues(w, func(t *world.Tile) threestate.Presence { return t.Stones })
	matched := filterGroup(ids, c, values, threestate.NoValueNeverAdmit)

	required := c.Required()
	if !c.OrderedFiltering || len(required) < 2 {
		return matched, nil
	}
	return tileset.Select(matched, func(id int) bool {
		return threestate.InOrder(w.Tile(id).Stones, required)
	}), nil
}
