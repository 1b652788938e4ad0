package constraint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilefilter/internal/threestate"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// Document is the YAML form of a set of constraints. Absent fields keep
// their current value when applied.
type Document struct {
	TemperatureUnit string `yaml:"temperature_unit,omitempty" json:"temperature_unit,omitempty"`

	Biome     *string `yaml:"biome,omitempty" json:"biome,omitempty"`
	Hilliness *string `yaml:"hilliness,omitempty" json:"hilliness,omitempty"`

	Roads  *GroupDoc `yaml:"roads,omitempty" json:"roads,omitempty"`
	Rivers *GroupDoc `yaml:"rivers,omitempty" json:"rivers,omitempty"`
	Stones *GroupDoc `yaml:"stones,omitempty" json:"stones,omitempty"`

	MovementDifficulty *RangeDoc[float64] `yaml:"movement_difficulty,omitempty" json:"movement_difficulty,omitempty"`
	Forageability      *RangeDoc[float64] `yaml:"forageability,omitempty" json:"forageability,omitempty"`
	ForagedFood        *string            `yaml:"foraged_food,omitempty" json:"foraged_food,omitempty"`

	Coastal     *string `yaml:"coastal,omitempty" json:"coastal,omitempty"`
	CoastalLake *string `yaml:"coastal_lake,omitempty" json:"coastal_lake,omitempty"`

	Elevation       *RangeDoc[float64] `yaml:"elevation,omitempty" json:"elevation,omitempty"`
	TimeZone        *RangeDoc[int]     `yaml:"time_zone,omitempty" json:"time_zone,omitempty"`
	CoastalRotation *int               `yaml:"coastal_rotation,omitempty" json:"coastal_rotation,omitempty"`

	AverageTemperature *RangeDoc[float64] `yaml:"average_temperature,omitempty" json:"average_temperature,omitempty"`
	MinTemperature     *RangeDoc[float64] `yaml:"min_temperature,omitempty" json:"min_temperature,omitempty"`
	MaxTemperature     *RangeDoc[float64] `yaml:"max_temperature,omitempty" json:"max_temperature,omitempty"`

	GrowingPeriod *RangeDoc[int]     `yaml:"growing_period,omitempty" json:"growing_period,omitempty"`
	Rainfall      *RangeDoc[float64] `yaml:"rainfall,omitempty" json:"rainfall,omitempty"`

	AnimalsCanGrazeNow *string `yaml:"animals_can_graze_now,omitempty" json:"animals_can_graze_now,omitempty"`
	HasCave            *string `yaml:"has_cave,omitempty" json:"has_cave,omitempty"`

	MostLeast    *MostLeastDoc `yaml:"most_least,omitempty" json:"most_least,omitempty"`
	WorldFeature *string       `yaml:"world_feature,omitempty" json:"world_feature,omitempty"`
}

// RangeDoc is a serialized range. A present range is active unless use is false.
type RangeDoc[T int | float64] struct {
	Use *bool `yaml:"use,omitempty" json:"use,omitempty"`
	Min T     `yaml:"min" json:"min"`
	Max T     `yaml:"max" json:"max"`
}

// GroupDoc is a serialized three-state container.
type GroupDoc struct {
	Mode               string            `yaml:"mode,omitempty" json:"mode,omitempty"`
	OffPartialNoSelect bool              `yaml:"off_partial_no_select,omitempty" json:"off_partial_no_select,omitempty"`
	Order              []string          `yaml:"order,omitempty" json:"order,omitempty"`
	States             map[string]string `yaml:"states" json:"states"`

	// Stones only
	Ordered   bool `yaml:"ordered,omitempty" json:"ordered,omitempty"`
	CountOnly bool `yaml:"count_only,omitempty" json:"count_only,omitempty"`
	Count     int  `yaml:"count,omitempty" json:"count,omitempty"`
}

// MostLeastDoc is a serialized most/least selection.
type MostLeastDoc struct {
	Characteristic string `yaml:"characteristic" json:"characteristic"`
	Kind           string `yaml:"kind" json:"kind"` // most or least
	Count          int    `yaml:"count" json:"count"`
}

// LoadDocument reads a constraint document from a YAML file
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read constraint file: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument parses a YAML constraint document
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse constraint YAML: %w", err)
	}
	return &doc, nil
}

// Keys returns the constraint keys the document sets, in registration order.
func (d *Document) Keys() []Key {
	present := map[Key]bool{
		Biome:              d.Biome != nil,
		Hilliness:          d.Hilliness != nil,
		Roads:              d.Roads != nil,
		Rivers:             d.Rivers != nil,
		MovementDifficulty: d.MovementDifficulty != nil,
		Forageability:      d.Forageability != nil,
		ForagedFood:        d.ForagedFood != nil,
		Stones:             d.Stones != nil,
		Coastal:            d.Coastal != nil,
		CoastalLake:        d.CoastalLake != nil,
		Elevation:          d.Elevation != nil,
		TimeZone:           d.TimeZone != nil,
		CoastalRotation:    d.CoastalRotation != nil,
		AverageTemperature: d.AverageTemperature != nil,
		MinTemperature:     d.MinTemperature != nil,
		MaxTemperature:     d.MaxTemperature != nil,
		GrowingPeriod:      d.GrowingPeriod != nil,
		Rainfall:           d.Rainfall != nil,
		AnimalsCanGrazeNow: d.AnimalsCanGrazeNow != nil,
		HasCave:            d.HasCave != nil,
		MostLeast:          d.MostLeast != nil,
		WorldFeature:       d.WorldFeature != nil,
	}

	var keys []Key
	for _, key := range AllKeys {
		if present[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

// Apply writes the document into the set as one batch. Nothing changes if
// any field is invalid.
func (d *Document) Apply(s *Set) error {
	return s.Batch(d.Keys(), d.ApplyTo)
}

// ApplyTo writes the document's fields into v.
func (d *Document) ApplyTo(v *Values) error {
	unit, ok := ParseTemperatureUnit(d.TemperatureUnit)
	if !ok {
		return fmt.Errorf("unknown temperature unit %q", d.TemperatureUnit)
	}

	if d.Biome != nil {
		v.Biome = *d.Biome
	}
	if d.Hilliness != nil {
		h, ok := world.ParseHilliness(*d.Hilliness)
		if !ok {
			return fmt.Errorf("unknown hilliness %q", *d.Hilliness)
		}
		v.Hilliness = h
	}

	for _, group := range []struct {
		key Key
		doc *GroupDoc
	}{{Roads, d.Roads}, {Rivers, d.Rivers}, {Stones, d.Stones}} {
		if group.doc == nil {
			continue
		}
		c, _ := v.Container(group.key)
		if err := group.doc.applyTo(c); err != nil {
			return fmt.Errorf("%s: %w", group.key, err)
		}
		if group.key == Stones {
			v.StoneTypesNumberOnly = group.doc.CountOnly
			v.StoneTypesNumber = group.doc.Count
		}
	}

	if d.ForagedFood != nil {
		v.ForagedFood = *d.ForagedFood
	}
	if d.WorldFeature != nil {
		v.WorldFeature = *d.WorldFeature
	}
	if d.CoastalRotation != nil {
		v.CoastalRotation = *d.CoastalRotation
	}

	for _, flag := range []struct {
		key   Key
		value *string
		dst   *threestate.State
	}{
		{Coastal, d.Coastal, &v.Coastal},
		{CoastalLake, d.CoastalLake, &v.CoastalLake},
		{AnimalsCanGrazeNow, d.AnimalsCanGrazeNow, &v.AnimalsCanGrazeNow},
		{HasCave, d.HasCave, &v.HasCave},
	} {
		if flag.value == nil {
			continue
		}
		state, ok := threestate.ParseState(*flag.value)
		if !ok {
			return fmt.Errorf("%s: unknown state %q", flag.key, *flag.value)
		}
		*flag.dst = state
	}

	applyRange(d.MovementDifficulty, &v.MovementDifficulty, nil)
	applyRange(d.Forageability, &v.Forageability, nil)
	applyRange(d.Elevation, &v.Elevation, nil)
	applyRange(d.Rainfall, &v.Rainfall, nil)
	applyRange(d.TimeZone, &v.TimeZone, nil)
	applyRange(d.GrowingPeriod, &v.GrowingPeriod, nil)
	applyRange(d.AverageTemperature, &v.AverageTemperature, unit.ToCelsius)
	applyRange(d.MinTemperature, &v.MinTemperature, unit.ToCelsius)
	applyRange(d.MaxTemperature, &v.MaxTemperature, unit.ToCelsius)

	if d.MostLeast != nil {
		c, ok := ParseCharacteristic(d.MostLeast.Characteristic)
		if !ok {
			return fmt.Errorf("unknown characteristic %q", d.MostLeast.Characteristic)
		}
		var least bool
		switch d.MostLeast.Kind {
		case "", "most":
		case "least":
			least = true
		default:
			return fmt.Errorf("most_least kind must be most or least, got %q", d.MostLeast.Kind)
		}
		v.MostLeast = MostLeastItem{Characteristic: c, Least: least, Count: d.MostLeast.Count}
	}

	return nil
}

// applyRange copies a serialized range. Inverted bounds are kept as entered
// so the predicate can report them.
func applyRange[T int | float64](doc *RangeDoc[T], dst *Range[T], convert func(float64) float64) {
	if doc == nil {
		return
	}
	r := Range[T]{Use: doc.Use == nil || *doc.Use, Min: doc.Min, Max: doc.Max}
	if convert != nil {
		r.Min = T(convert(float64(doc.Min)))
		r.Max = T(convert(float64(doc.Max)))
	}
	*dst = r
}

func (g *GroupDoc) applyTo(c *threestate.Container) error {
	mode, ok := threestate.ParseMode(g.Mode)
	if !ok {
		return fmt.Errorf("unknown mode %q", g.Mode)
	}

	if len(g.Order) > 0 {
		if err := c.Reorder(g.Order); err != nil {
			return err
		}
	}

	c.Reset()
	for name, raw := range g.States {
		state, ok := threestate.ParseState(raw)
		if !ok {
			return fmt.Errorf("unknown state %q for %s", raw, name)
		}
		if err := c.SetState(name, state); err != nil {
			return err
		}
	}

	c.Mode = mode
	c.OffPartialNoSelect = g.OffPartialNoSelect
	c.OrderedFiltering = g.Ordered
	return nil
}

// FromValues renders values as a complete document in Celsius.
func FromValues(v *Values) *Document {
	d := &Document{TemperatureUnit: Celsius.String()}

	d.Biome = ptr(v.Biome)
	d.Hilliness = ptr(v.Hilliness.String())
	d.Roads = groupDoc(v.Roads)
	d.Rivers = groupDoc(v.Rivers)
	d.Stones = groupDoc(v.Stones)
	d.Stones.CountOnly = v.StoneTypesNumberOnly
	d.Stones.Count = v.StoneTypesNumber

	d.MovementDifficulty = rangeDoc(v.MovementDifficulty)
	d.Forageability = rangeDoc(v.Forageability)
	d.ForagedFood = ptr(v.ForagedFood)
	d.Coastal = ptr(v.Coastal.String())
	d.CoastalLake = ptr(v.CoastalLake.String())
	d.Elevation = rangeDoc(v.Elevation)
	d.TimeZone = rangeDoc(v.TimeZone)
	d.CoastalRotation = ptr(v.CoastalRotation)
	d.AverageTemperature = rangeDoc(v.AverageTemperature)
	d.MinTemperature = rangeDoc(v.MinTemperature)
	d.MaxTemperature = rangeDoc(v.MaxTemperature)
	d.GrowingPeriod = rangeDoc(v.GrowingPeriod)
	d.Rainfall = rangeDoc(v.Rainfall)
	d.AnimalsCanGrazeNow = ptr(v.AnimalsCanGrazeNow.String())
	d.HasCave = ptr(v.HasCave.String())
	d.WorldFeature = ptr(v.WorldFeature)

	kind := "most"
	if v.MostLeast.Least {
		kind = "least"
	}
	d.MostLeast = &MostLeastDoc{
		Characteristic: v.MostLeast.Characteristic.String(),
		Kind:           kind,
		Count:          v.MostLeast.Count,
	}

	return d
}

func groupDoc(c *threestate.Container) *GroupDoc {
	g := &GroupDoc{
		Mode:               c.Mode.String(),
		OffPartialNoSelect: c.OffPartialNoSelect,
		Ordered:            c.OrderedFiltering,
		Order:              c.Names(),
		States:             make(map[string]string, c.Len()),
	}
	for _, e := range c.Entries() {
		g.States[e.Name] = e.State.String()
	}
	return g
}

func rangeDoc[T int | float64](r Range[T]) *RangeDoc[T] {
	return &RangeDoc[T]{Use: ptr(r.Use), Min: r.Min, Max: r.Max}
}

func ptr[T any](v T) *T {
	return &v
}
