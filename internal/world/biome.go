package world

// Biome holds the static settlement properties of a biome kind
type Biome struct {
	Name          string  `yaml:"name"`
	CanBuildBase  bool    `yaml:"can_build_base"`
	Implemented   bool    `yaml:"implemented"`
	CanAutoChoose bool    `yaml:"can_auto_choose"`
	SettleWeight  float64 `yaml:"settlement_weight"`
	ForagedFood   string  `yaml:"foraged_food,omitempty"`
}

// Settleable reports whether a base can ever be built in this biome.
func (b *Biome) Settleable() bool {
	return b.CanBuildBase && b.Implemented
}

// Catalog lists the categorical values known to a world, in display order.
// Names are stable identities and are what constraint documents refer to.
type Catalog struct {
	Roads    []string `yaml:"roads"`
	Rivers   []string `yaml:"rivers"`
	Stones   []string `yaml:"stones"`
	Features []string `yaml:"features,omitempty"`
}

// DefaultBiomes returns the biome table used by generated worlds.
func DefaultBiomes() []Biome {
	return []Biome{
		{Name: "TemperateForest", CanBuildBase: true, Implemented: true, CanAutoChoose: true, SettleWeight: 1.0, ForagedFood: "Berries"},
		{Name: "BorealForest", CanBuildBase: true, Implemented: true, CanAutoChoose: true, SettleWeight: 0.8, ForagedFood: "Berries"},
		{Name: "Tundra", CanBuildBase: true, Implemented: true, CanAutoChoose: true, SettleWeight: 0.4},
		{Name: "IceSheet", CanBuildBase: true, Implemented: true, CanAutoChoose: false, SettleWeight: 0.0},
		{Name: "SeaIce", CanBuildBase: true, Implemented: true, CanAutoChoose: false, SettleWeight: 0.0},
		{Name: "AridShrubland", CanBuildBase: true, Implemented: true, CanAutoChoose: true, SettleWeight: 0.7, ForagedFood: "Agave"},
		{Name: "Desert", CanBuildBase: true, Implemented: true, CanAutoChoose: true, SettleWeight: 0.5, ForagedFood: "Agave"},
		{Name: "TropicalRainforest", CanBuildBase: true, Implemented: true, CanAutoChoose: true, SettleWeight: 0.9, ForagedFood: "Berries"},
		{Name: "Ocean", CanBuildBase: false, Implemented: true, CanAutoChoose: false, SettleWeight: 0.0},
		{Name: "Lake", CanBuildBase: false, Implemented: true, CanAutoChoose: false, SettleWeight: 0.0},
	}
}

// DefaultCatalog returns the categorical values used by generated worlds.
func DefaultCatalog() Catalog {
	return Catalog{
		Roads:    []string{"DirtPath", "DirtRoad", "StoneRoad", "AncientAsphaltRoad", "AncientAsphaltHighway"},
		Rivers:   []string{"Creek", "River", "LargeRiver", "HugeRiver"},
		Stones:   []string{"Granite", "Limestone", "Marble", "Sandstone", "Slate"},
		Features: []string{"Northern Reach", "Amber Coast", "Grey Peaks", "Mirror Lake"},
	}
}
