package world

import (
	"fmt"
	"os"

	"github.com/golang/geo/s2"
	"gopkg.in/yaml.v3"
)

// FileData represents a world YAML file
type FileData struct {
	Info     `yaml:",inline"`
	Catalog  Catalog    `yaml:"catalog"`
	Biomes   []Biome    `yaml:"biomes"`
	Occupied []int      `yaml:"occupied,omitempty"`
	Tiles    []TileData `yaml:"tiles"`
}

// TileData represents a serialized tile. The tile id is its position in the list.
type TileData struct {
	Biome              string   `yaml:"biome" json:"biome"`
	Hilliness          string   `yaml:"hilliness" json:"hilliness"`
	Elevation          float64  `yaml:"elevation" json:"elevation"`
	Temperature        float64  `yaml:"temperature" json:"temperature"`
	MinTemperature     float64  `yaml:"min_temperature" json:"min_temperature"`
	MaxTemperature     float64  `yaml:"max_temperature" json:"max_temperature"`
	Rainfall           float64  `yaml:"rainfall" json:"rainfall"`
	GrowingTwelfths    int      `yaml:"growing_twelfths" json:"growing_twelfths"`
	MovementDifficulty float64  `yaml:"movement_difficulty" json:"movement_difficulty"`
	Forageability      float64  `yaml:"forageability" json:"forageability"`
	Coastal            bool     `yaml:"coastal,omitempty" json:"coastal,omitempty"`
	CoastalLake        bool     `yaml:"coastal_lake,omitempty" json:"coastal_lake,omitempty"`
	CoastRotation      *int     `yaml:"coast_rotation,omitempty" json:"coast_rotation,omitempty"`
	HasCave            bool     `yaml:"has_cave,omitempty" json:"has_cave,omitempty"`
	AnimalsCanGrazeNow bool     `yaml:"animals_can_graze_now,omitempty" json:"animals_can_graze_now,omitempty"`
	Roads              []string `yaml:"roads,omitempty" json:"roads,omitempty"`
	Rivers             []string `yaml:"rivers,omitempty" json:"rivers,omitempty"`
	Stones             []string `yaml:"stones,omitempty" json:"stones,omitempty"`
	Feature            string   `yaml:"feature,omitempty" json:"feature,omitempty"`
	Lat                float64  `yaml:"lat" json:"lat"`
	Lng                float64  `yaml:"lng" json:"lng"`
}

// LoadFromYAML loads a world from a YAML file
func LoadFromYAML(filename string) (*World, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read world file: %w", err)
	}

	var file FileData
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse world YAML: %w", err)
	}

	return FromFileData(&file)
}

// FromFileData converts the serialized form into a World
func FromFileData(file *FileData) (*World, error) {
	tiles := make([]Tile, len(file.Tiles))
	for i, td := range file.Tiles {
		tile, err := deserializeTile(td)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize tile %d: %w", i, err)
		}
		tiles[i] = tile
	}

	return New(file.Info, file.Catalog, file.Biomes, tiles, file.Occupied)
}

// SaveToYAML writes the world to a YAML file
func SaveToYAML(w *World, filename string) error {
	yamlData, err := yaml.Marshal(ToFileData(w))
	if err != nil {
		return fmt.Errorf("failed to marshal world data: %w", err)
	}

	if err := os.WriteFile(filename, yamlData, 0644); err != nil {
		return fmt.Errorf("failed to write world file: %w", err)
	}

	return nil
}

// ToFileData converts a World to its serialized form
func ToFileData(w *World) *FileData {
	file := &FileData{
		Info:     w.Info(),
		Catalog:  w.Catalog(),
		Biomes:   w.Biomes(),
		Occupied: w.Occupied(),
		Tiles:    make([]TileData, 0, w.TileCount()),
	}
	for id := 0; id < w.TileCount(); id++ {
		file.Tiles = append(file.Tiles, SerializeTile(w.Tile(id)))
	}
	return file
}

func deserializeTile(td TileData) (Tile, error) {
	hilliness, ok := ParseHilliness(td.Hilliness)
	if !ok {
		return Tile{}, fmt.Errorf("unknown hilliness %q", td.Hilliness)
	}

	rotation := NoCoastRotation
	if td.CoastRotation != nil {
		rotation = *td.CoastRotation
	}

	return Tile{
		Biome:              td.Biome,
		Hilliness:          hilliness,
		Elevation:          td.Elevation,
		Temperature:        td.Temperature,
		MinTemperature:     td.MinTemperature,
		MaxTemperature:     td.MaxTemperature,
		Rainfall:           td.Rainfall,
		GrowingTwelfths:    td.GrowingTwelfths,
		MovementDifficulty: td.MovementDifficulty,
		Forageability:      td.Forageability,
		Coastal:            td.Coastal,
		CoastalLake:        td.CoastalLake,
		CoastRotation:      rotation,
		HasCave:            td.HasCave,
		AnimalsCanGrazeNow: td.AnimalsCanGrazeNow,
		Roads:              NewNameSet(td.Roads...),
		Rivers:             NewNameSet(td.Rivers...),
		Stones:             StoneList(td.Stones),
		Feature:            td.Feature,
		Location:           s2.LatLngFromDegrees(td.Lat, td.Lng),
	}, nil
}

// SerializeTile converts a tile to its file form. Its id is not part of it.
func SerializeTile(t *Tile) TileData {
	td := TileData{
		Biome:              t.Biome,
		Hilliness:          t.Hilliness.String(),
		Elevation:          t.Elevation,
		Temperature:        t.Temperature,
		MinTemperature:     t.MinTemperature,
		MaxTemperature:     t.MaxTemperature,
		Rainfall:           t.Rainfall,
		GrowingTwelfths:    t.GrowingTwelfths,
		MovementDifficulty: t.MovementDifficulty,
		Forageability:      t.Forageability,
		Coastal:            t.Coastal,
		CoastalLake:        t.CoastalLake,
		HasCave:            t.HasCave,
		AnimalsCanGrazeNow: t.AnimalsCanGrazeNow,
		Roads:              SortedNames(t.Roads),
		Rivers:             SortedNames(t.Rivers),
		Stones:             []string(t.Stones),
		Feature:            t.Feature,
		Lat:                t.Location.Lat.Degrees(),
		Lng:                t.Location.Lng.Degrees(),
	}
	if t.CoastRotation != NoCoastRotation {
		rotation := t.CoastRotation
		td.CoastRotation = &rotation
	}
	return td
}
