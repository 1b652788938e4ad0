package filter

import (
	"golang.org/x/exp/constraints"

	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/tileset"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// filterRange keeps the tiles whose attribute lies in r.
func filterRange[T constraints.Ordered](w world.DataSource, ids []int, r constraint.Range[T],
	key constraint.Key, subject string, value func(t *world.Tile) T) ([]int, error) {
	if !r.IsCorrectRange() {
		return nil, rangeError(key, subject, r.Min, r.Max)
	}
	return tileset.Select(ids, func(id int) bool {
		tile := w.Tile(id)
		return tile != nil && r.InRange(value(tile))
	}), nil
}

type movementDifficultyFilter struct{}

func (movementDifficultyFilter) Key() constraint.Key { return constraint.MovementDifficulty }
func (movementDifficultyFilter) Subject() string     { return "movement difficulty" }

func (movementDifficultyFilter) Active(v *constraint.Values) bool { return v.MovementDifficulty.Use }

func (f movementDifficultyFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterRange(w, ids, v.MovementDifficulty, f.Key(), f.Subject(),
		func(t *world.Tile) float64 { return t.MovementDifficulty })
}

type forageabilityFilter struct{}

func (forageabilityFilter) Key() constraint.Key { return constraint.Forageability }
func (forageabilityFilter) Subject() string     { return "forageability" }

func (forageabilityFilter) Active(v *constraint.Values) bool { return v.Forageability.Use }

func (f forageabilityFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterRange(w, ids, v.Forageability, f.Key(), f.Subject(),
		func(t *world.Tile) float64 { return t.Forageability })
}

type elevationFilter struct{}

func (elevationFilter) Key() constraint.Key { return constraint.Elevation }
func (elevationFilter) Subject() string     { return "elevation" }

func (elevationFilter) Active(v *constraint.Values) bool { return v.Elevation.Use }

func (f elevationFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterRange(w, ids, v.Elevation, f.Key(), f.Subject(),
		func(t *world.Tile) float64 { return t.Elevation })
}

type timeZoneFilter struct{}

func (timeZoneFilter) Key() constraint.Key { return constraint.TimeZone }
func (timeZoneFilter) Subject() string     { return "time zones" }

func (timeZoneFilter) Active(v *constraint.Values) bool { return v.TimeZone.Use }

func (f timeZoneFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterRange(w, ids, v.TimeZone, f.Key(), f.Subject(),
		func(t *world.Tile) int { return t.TimeZone() })
}

type growingPeriodFilter struct{}

func (growingPeriodFilter) Key() constraint.Key { return constraint.GrowingPeriod }
func (growingPeriodFilter) Subject() string     { return "growing period" }

func (growingPeriodFilter) Active(v *constraint.Values) bool { return v.GrowingPeriod.Use }

func (f growingPeriodFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterRange(w, ids, v.GrowingPeriod, f.Key(), f.Subject(),
		func(t *world.Tile) int { return t.GrowingTwelfths })
}

type rainfallFilter struct{}

func (rainfallFilter) Key() constraint.Key { return constraint.Rainfall }
func (rainfallFilter) Subject() string     { return "rain fall" }

func (rainfallFilter) Active(v *constraint.Values) bool { return v.Rainfall.Use }

func (f rainfallFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	return filterRange(w, ids, v.Rainfall, f.Key(), f.Subject(),
		func(t *world.Tile) float64 { return t.Rainfall })
}

// temperatureValues reads a tile temperature by kind
var temperatureValues = [...]func(t *world.Tile) float64{
	constraint.AverageTemperatureKind: func(t *world.Tile) float64 { return t.Temperature },
	constraint.MinTemperatureKind:     func(t *world.Tile) float64 { return t.MinTemperature },
	constraint.MaxTemperatureKind:     func(t *world.Tile) float64 { return t.MaxTemperature },
}

// temperatureFilter is shared by the three temperature predicates. Both the
// constraint range and the tile attribute are resolved from the kind.
type temperatureFilter struct {
	kind    constraint.TemperatureKind
	key     constraint.Key
	subject string
}

func (f temperatureFilter) Key() constraint.Key { return f.key }
func (f temperatureFilter) Subject() string     { return f.subject }

func (f temperatureFilter) Active(v *constraint.Values) bool {
	r := v.Temperature(f.kind)
	return r != nil && r.Use
}

func (f temperatureFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	r := v.Temperature(f.kind)
	if r == nil {
		return nil, &UserConstraintError{Key: f.key, Subject: f.subject, Reason: "unknown temperature kind " + f.kind.String()}
	}
	return filterRange(w, ids, *r, f.key, f.subject, temperatureValues[f.kind])
}

type averageTemperatureFilter struct{ temperatureFilter }
type minTemperatureFilter struct{ temperatureFilter }
type maxTemperatureFilter struct{ temperatureFilter }

func newAverageTemperatureFilter() averageTemperatureFilter {
	return averageTemperatureFilter{temperatureFilter{constraint.AverageTemperatureKind, constraint.AverageTemperature, "average temperature"}}
}

func newMinTemperatureFilter() minTemperatureFilter {
	return minTemperatureFilter{temperatureFilter{constraint.MinTemperatureKind, constraint.MinTemperature, "min temperature"}}
}

func newMaxTemperatureFilter() maxTemperatureFilter {
	return maxTemperatureFilter{temperatureFilter{constraint.MaxTemperatureKind, constraint.MaxTemperature, "max temperature"}}
}
