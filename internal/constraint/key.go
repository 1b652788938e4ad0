// Package constraint holds the user-editable filter constraints and the change
// notifications the filter engine reacts to.
package constraint

// Key is the stable identity of one constraint kind. It names the predicate
// in the registry, the field in constraint documents and the subject of
// change notifications.
type Key string

const (
	Biome              Key = "biome"
	Hilliness          Key = "hilliness"
	Roads              Key = "roads"
	Rivers             Key = "rivers"
	MovementDifficulty Key = "movement_difficulty"
	Forageability      Key = "forageability"
	ForagedFood        Key = "foraged_food"
	Stones             Key = "stones"
	Coastal            Key = "coastal"
	CoastalLake        Key = "coastal_lake"
	Elevation          Key = "elevation"
	TimeZone           Key = "time_zone"
	CoastalRotation    Key = "coastal_rotation"
	AverageTemperature Key = "average_temperature"
	MinTemperature     Key = "min_temperature"
	MaxTemperature     Key = "max_temperature"
	GrowingPeriod      Key = "growing_period"
	Rainfall           Key = "rainfall"
	AnimalsCanGrazeNow Key = "animals_can_graze_now"
	HasCave            Key = "has_cave"
	MostLeast          Key = "most_least"
	WorldFeature       Key = "world_feature"
)

// AllKeys lists every constraint kind in registration order.
var AllKeys = []Key{
	Biome, Hilliness, Roads, Rivers, MovementDifficulty, Forageability, ForagedFood,
	Stones, Coastal, CoastalLake, Elevation, TimeZone, CoastalRotation,
	AverageTemperature, MinTemperature, MaxTemperature, GrowingPeriod, Rainfall,
	AnimalsCanGrazeNow, HasCave, MostLeast, WorldFeature,
}

// IsKnown reports whether k is one of AllKeys
func IsKnown(k Key) bool {
	for _, known := range AllKeys {
		if known == k {
			return true
		}
	}
	return false
}
