package filter

import (
	"fmt"
	"sort"

	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

var characteristicValues = map[constraint.Characteristic]func(t *world.Tile) float64{
	constraint.CharacteristicTemperature:        func(t *world.Tile) float64 { return t.Temperature },
	constraint.CharacteristicRainfall:           func(t *world.Tile) float64 { return t.Rainfall },
	constraint.CharacteristicElevation:          func(t *world.Tile) float64 { return t.Elevation },
	constraint.CharacteristicGrowingPeriod:      func(t *world.Tile) float64 { return float64(t.GrowingTwelfths) },
	constraint.CharacteristicMovementDifficulty: func(t *world.Tile) float64 { return t.MovementDifficulty },
	constraint.CharacteristicForageability:      func(t *world.Tile) float64 { return t.Forageability },
}

// mostLeastFilter keeps the Count candidates ranking highest (or lowest) on a
// characteristic. The result is in rank order; ties keep candidate order.
type mostLeastFilter struct{}

func (mostLeastFilter) Key() constraint.Key { return constraint.MostLeast }
func (mostLeastFilter) Subject() string     { return "most / least characteristic" }

func (mostLeastFilter) Active(v *constraint.Values) bool { return v.MostLeast.Active() }

func (f mostLeastFilter) Filter(w world.DataSource, ids []int, v *constraint.Values) ([]int, error) {
	item := v.MostLeast
	value, ok := characteristicValues[item.Characteristic]
	if !ok {
		return nil, &UserConstraintError{
			Key:     f.Key(),
			Subject: f.Subject(),
			Reason:  fmt.Sprintf("unsupported characteristic %s", item.Characteristic),
		}
	}

	type ranked struct {
		id    int
		value float64
	}
	candidates := make([]ranked, 0, len(ids))
	for _, id := range ids {
		if tile := w.Tile(id); tile != nil {
			candidates = append(candidates, ranked{id, value(tile)})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if item.Least {
			return candidates[i].value < candidates[j].value
		}
		return candidates[i].value > candidates[j].value
	})

	count := min(item.Count, len(candidates))
	result := make([]int, count)
	for i := range result {
		result[i] = candidates[i].id
	}
	return result, nil
}
