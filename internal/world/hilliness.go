package world

// Hilliness is the terrain roughness class of a tile
type Hilliness int

const (
	HillinessUndefined  Hilliness = iota // "any" when used as a constraint
	HillinessFlat                        // Flat terrain
	HillinessSmallHills                  // Rolling small hills
	HillinessLargeHills                  // Large hills, first class supporting caves
	HillinessMountainous                 // Mountains
	HillinessImpassable                  // Impassable mountains
)

// MinCaveHilliness is the lowest hilliness at which a tile can carry caves.
const MinCaveHilliness = HillinessLargeHills

// String returns the string representation of a Hilliness
func (h Hilliness) String() string {
	switch h {
	case HillinessUndefined:
		return "undefined"
	case HillinessFlat:
		return "flat"
	case HillinessSmallHills:
		return "small_hills"
	case HillinessLargeHills:
		return "large_hills"
	case HillinessMountainous:
		return "mountainous"
	case HillinessImpassable:
		return "impassable"
	default:
		return "unknown"
	}
}

// SupportsCaves reports whether tiles of this hilliness can have caves.
func (h Hilliness) SupportsCaves() bool {
	return h >= MinCaveHilliness
}

// ParseHilliness converts a string to a Hilliness
func ParseHilliness(s string) (Hilliness, bool) {
	switch s {
	case "undefined", "", "any":
		return HillinessUndefined, true
	case "flat":
		return HillinessFlat, true
	case "small_hills":
		return HillinessSmallHills, true
	case "large_hills":
		return HillinessLargeHills, true
	case "mountainous":
		return HillinessMountainous, true
	case "impassable":
		return HillinessImpassable, true
	default:
		return HillinessUndefined, false
	}
}
