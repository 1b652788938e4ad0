package constraint

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

// Range is an inclusive [Min, Max] constraint that only applies when Use is set.
type Range[T constraints.Ordered] struct {
	Use bool `yaml:"use"`
	Min T    `yaml:"min"`
	Max T    `yaml:"max"`
}

// Between returns an active range
func Between[T constraints.Ordered](lo, hi T) Range[T] {
	return Range[T]{Use: true, Min: lo, Max: hi}
}

// IsCorrectRange returns true if Min <= Max.
func (r Range[T]) IsCorrectRange() bool {
	return r.Min <= r.Max
}

// InRange returns true if v lies in [Min, Max].
func (r Range[T]) InRange(v T) bool {
	return v >= r.Min && v <= r.Max
}

// Validate returns an error for an active range with Min > Max.
func (r Range[T]) Validate() error {
	if r.Use && !r.IsCorrectRange() {
		return fmt.Errorf("min %v must be less than or equal to max %v", r.Min, r.Max)
	}
	return nil
}

// TemperatureUnit is the unit temperatures are entered in
type TemperatureUnit int

const (
	Celsius TemperatureUnit = iota
	Fahrenheit
	Kelvin
)

// String returns the string representation of a TemperatureUnit
func (u TemperatureUnit) String() string {
	switch u {
	case Celsius:
		return "celsius"
	case Fahrenheit:
		return "fahrenheit"
	case Kelvin:
		return "kelvin"
	default:
		return "unknown"
	}
}

// ParseTemperatureUnit converts a string to a TemperatureUnit
func ParseTemperatureUnit(s string) (TemperatureUnit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "celsius":
		return Celsius, true
	case "f", "fahrenheit":
		return Fahrenheit, true
	case "k", "kelvin":
		return Kelvin, true
	default:
		return Celsius, false
	}
}

// ToCelsius converts a temperature in unit u to Celsius.
func (u TemperatureUnit) ToCelsius(v float64) float64 {
	switch u {
	case Fahrenheit:
		return (v - 32) * 5 / 9
	case Kelvin:
		return v - 273.15
	default:
		return v
	}
}

// TemperatureRange builds an active range in Celsius from bounds entered in unit.
// Tiles store Celsius, so predicates never convert.
func TemperatureRange(unit TemperatureUnit, lo, hi float64) Range[float64] {
	return Between(unit.ToCelsius(lo), unit.ToCelsius(hi))
}
