package constraint

import (
	"strings"

	"github.com/lawnchairsociety/tilefilter/internal/threestate"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// AnyCoastRotation leaves coast facing unconstrained.
const AnyCoastRotation = world.NoCoastRotation

// Values holds one value per constraint kind. The zero value of every scalar
// field is its default; containers are built from the world catalog.
type Values struct {
	Biome     string // "" means any biome
	Hilliness world.Hilliness

	Roads  *threestate.Container
	Rivers *threestate.Container
	Stones *threestate.Container

	// StoneTypesNumberOnly ignores stone states and keeps tiles carrying
	// exactly StoneTypesNumber stone kinds.
	StoneTypesNumberOnly bool
	StoneTypesNumber     int

	MovementDifficulty Range[float64]
	Forageability      Range[float64]
	ForagedFood        string

	Coastal     threestate.State
	CoastalLake threestate.State

	Elevation       Range[float64]
	TimeZone        Range[int]
	CoastalRotation int

	// Temperatures are in Celsius.
	AverageTemperature Range[float64]
	MinTemperature     Range[float64]
	MaxTemperature     Range[float64]

	GrowingPeriod Range[int]
	Rainfall      Range[float64]

	AnimalsCanGrazeNow threestate.State
	HasCave            threestate.State

	MostLeast    MostLeastItem
	WorldFeature string
}

// NewValues returns default values with containers built from the catalog.
func NewValues(catalog world.Catalog) *Values {
	return &Values{
		Roads:           threestate.NewContainer(catalog.Roads),
		Rivers:          threestate.NewContainer(catalog.Rivers),
		Stones:          threestate.NewContainer(catalog.Stones),
		CoastalRotation: AnyCoastRotation,
	}
}

// Clone returns a deep copy
func (v *Values) Clone() *Values {
	clone := *v
	clone.Roads = v.Roads.Clone()
	clone.Rivers = v.Rivers.Clone()
	clone.Stones = v.Stones.Clone()
	return &clone
}

// TemperatureKind selects one of the temperature ranges
type TemperatureKind int

const (
	AverageTemperatureKind TemperatureKind = iota
	MinTemperatureKind
	MaxTemperatureKind
)

// String returns the string representation of a TemperatureKind
func (k TemperatureKind) String() string {
	switch k {
	case AverageTemperatureKind:
		return "average"
	case MinTemperatureKind:
		return "min"
	case MaxTemperatureKind:
		return "max"
	default:
		return "unknown"
	}
}

var temperatureRanges = [...]func(v *Values) *Range[float64]{
	AverageTemperatureKind: func(v *Values) *Range[float64] { return &v.AverageTemperature },
	MinTemperatureKind:     func(v *Values) *Range[float64] { return &v.MinTemperature },
	MaxTemperatureKind:     func(v *Values) *Range[float64] { return &v.MaxTemperature },
}

// Temperature returns the range for the given kind, or nil for an unknown kind.
func (v *Values) Temperature(kind TemperatureKind) *Range[float64] {
	if kind < 0 || int(kind) >= len(temperatureRanges) {
		return nil
	}
	return temperatureRanges[kind](v)
}

// AreAllDefault returns true if no constraint would narrow the viable set.
func (v *Values) AreAllDefault() bool {
	if v.Biome != "" || v.Hilliness != world.HillinessUndefined {
		return false
	}
	if !v.Roads.IsDefault() || !v.Rivers.IsDefault() || !v.Stones.IsDefault() || v.StoneTypesNumberOnly {
		return false
	}
	if v.ForagedFood != "" || v.WorldFeature != "" || v.CoastalRotation != AnyCoastRotation {
		return false
	}
	for _, state := range []threestate.State{v.Coastal, v.CoastalLake, v.AnimalsCanGrazeNow, v.HasCave} {
		if state != threestate.DontCare {
			return false
		}
	}
	for _, use := range []bool{
		v.MovementDifficulty.Use, v.Forageability.Use, v.Elevation.Use, v.TimeZone.Use,
		v.AverageTemperature.Use, v.MinTemperature.Use, v.MaxTemperature.Use,
		v.GrowingPeriod.Use, v.Rainfall.Use,
	} {
		if use {
			return false
		}
	}
	return !v.MostLeast.Active()
}

// Characteristic is a numeric tile attribute ranked by the most/least constraint
type Characteristic int

const (
	CharacteristicNone Characteristic = iota
	CharacteristicTemperature
	CharacteristicRainfall
	CharacteristicElevation
	CharacteristicGrowingPeriod
	CharacteristicMovementDifficulty
	CharacteristicForageability
)

var characteristicNames = map[Characteristic]string{
	CharacteristicNone:               "none",
	CharacteristicTemperature:        "temperature",
	CharacteristicRainfall:           "rainfall",
	CharacteristicElevation:          "elevation",
	CharacteristicGrowingPeriod:      "growing_period",
	CharacteristicMovementDifficulty: "movement_difficulty",
	CharacteristicForageability:      "forageability",
}

// String returns the string representation of a Characteristic
func (c Characteristic) String() string {
	if name, ok := characteristicNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCharacteristic converts a string to a Characteristic
func ParseCharacteristic(s string) (Characteristic, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CharacteristicNone, true
	}
	for c, name := range characteristicNames {
		if name == s {
			return c, true
		}
	}
	return CharacteristicNone, false
}

// MostLeastItem keeps the Count tiles with the highest (Most) or lowest
// value of a characteristic.
type MostLeastItem struct {
	Characteristic Characteristic
	Least          bool
	Count          int
}

// Active returns true when a characteristic and a positive count are chosen.
func (m MostLeastItem) Active() bool {
	return m.Characteristic != CharacteristicNone && m.Count > 0
}
