package world

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// GeneratorConfig contains parameters for synthetic world generation
type GeneratorConfig struct {
	Name      string
	Seed      int64
	TileCount int
	Coverage  float64 // Fraction of the planet covered (0-1)

	// SettlementCount is the number of pre-existing settlements to place.
	SettlementCount int
}

// DefaultGeneratorConfig returns reasonable defaults for a demo world
func DefaultGeneratorConfig(seed int64) GeneratorConfig {
	return GeneratorConfig{
		Name:            fmt.Sprintf("generated-%d", seed),
		Seed:            seed,
		TileCount:       5000,
		Coverage:        0.3,
		SettlementCount: 20,
	}
}

// Generate builds a reproducible world from the config. Tiles are spread over
// the covered band of the sphere; climate follows latitude and elevation.
func Generate(cfg GeneratorConfig) (*World, error) {
	if cfg.TileCount <= 0 {
		return nil, fmt.Errorf("tile count must be positive, got %d", cfg.TileCount)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	catalog := DefaultCatalog()
	biomes := DefaultBiomes()

	tiles := make([]Tile, cfg.TileCount)
	for i := range tiles {
		tiles[i] = generateTile(rng, cfg.Coverage, catalog)
	}

	occupied := make([]int, 0, cfg.SettlementCount)
	for len(occupied) < cfg.SettlementCount && len(occupied) < cfg.TileCount {
		occupied = append(occupied, rng.Intn(cfg.TileCount))
	}

	info := Info{Name: cfg.Name, Seed: cfg.Seed, Coverage: cfg.Coverage}
	return New(info, catalog, biomes, tiles, occupied)
}

func generateTile(rng *rand.Rand, coverage float64, catalog Catalog) Tile {
	// Uniform point on the sphere, squeezed into the covered latitude band
	band := math.Max(coverage, 0.05)
	lat := math.Asin((2*rng.Float64()-1)*band) * 180 / math.Pi
	lng := rng.Float64()*360 - 180
	location := s2.LatLng{Lat: s1.Angle(lat) * s1.Degree, Lng: s1.Angle(lng) * s1.Degree}.Normalized()

	elevation := rng.NormFloat64()*900 + 300
	absLat := math.Abs(lat)

	// Average temperature drops with latitude and altitude
	temperature := 30 - absLat*0.7 - math.Max(elevation, 0)/180 + rng.NormFloat64()*2
	swing := 8 + absLat*0.35
	rainfall := math.Max(0, 2200-absLat*25+rng.NormFloat64()*400)

	tile := Tile{
		Elevation:          math.Round(elevation),
		Temperature:        round1(temperature),
		MinTemperature:     round1(temperature - swing),
		MaxTemperature:     round1(temperature + swing),
		Rainfall:           math.Round(rainfall),
		CoastRotation:      NoCoastRotation,
		Roads:              NewNameSet(),
		Rivers:             NewNameSet(),
		Location:           location,
		AnimalsCanGrazeNow: temperature > 0,
	}

	tile.Biome = pickBiome(elevation, temperature, rainfall)
	tile.Hilliness = pickHilliness(rng, elevation)
	tile.GrowingTwelfths = growingTwelfths(tile.MinTemperature, tile.MaxTemperature)
	tile.MovementDifficulty = round1(1 + float64(tile.Hilliness)*0.5 + rng.Float64()*0.5)
	tile.Forageability = round1(math.Min(1, math.Max(0, rainfall/2500+rng.NormFloat64()*0.1)))
	tile.HasCave = tile.Hilliness.SupportsCaves() && rng.Float64() < 0.4

	if elevation > -50 && elevation < 80 && tile.Biome != "Ocean" {
		tile.Coastal = true
		tile.CoastRotation = rng.Intn(4)
	}
	if tile.Biome != "Lake" && rng.Float64() < 0.05 {
		tile.CoastalLake = true
	}

	for _, road := range catalog.Roads {
		if rng.Float64() < 0.06 {
			tile.Roads.Put(road)
		}
	}
	for _, river := range catalog.Rivers {
		if rng.Float64() < 0.05 {
			tile.Rivers.Put(river)
		}
	}

	stoneCount := 2 + rng.Intn(2)
	perm := rng.Perm(len(catalog.Stones))
	for _, idx := range perm[:min(stoneCount, len(perm))] {
		tile.Stones = append(tile.Stones, catalog.Stones[idx])
	}

	if len(catalog.Features) > 0 && rng.Float64() < 0.2 {
		tile.Feature = catalog.Features[rng.Intn(len(catalog.Features))]
	}

	return tile
}

func pickBiome(elevation, temperature, rainfall float64) string {
	switch {
	case elevation < -200:
		return "Ocean"
	case elevation < 0 && temperature < -10:
		return "SeaIce"
	case elevation < 0:
		return "Lake"
	case temperature < -15:
		return "IceSheet"
	case temperature < -3:
		return "Tundra"
	case temperature < 8:
		return "BorealForest"
	case rainfall < 400:
		return "Desert"
	case rainfall < 900:
		return "AridShrubland"
	case temperature > 22 && rainfall > 1800:
		return "TropicalRainforest"
	default:
		return "TemperateForest"
	}
}

func pickHilliness(rng *rand.Rand, elevation float64) Hilliness {
	roll := rng.Float64()
	switch {
	case elevation > 2200:
		if roll < 0.5 {
			return HillinessImpassable
		}
		return HillinessMountainous
	case elevation > 1200:
		if roll < 0.6 {
			return HillinessMountainous
		}
		return HillinessLargeHills
	case elevation > 500:
		if roll < 0.5 {
			return HillinessLargeHills
		}
		return HillinessSmallHills
	default:
		if roll < 0.7 {
			return HillinessFlat
		}
		return HillinessSmallHills
	}
}

// growingTwelfths approximates how many twelfths stay above freezing when the
// temperature swings sinusoidally between min and max over the year.
func growingTwelfths(minTemp, maxTemp float64) int {
	count := 0
	mid := (minTemp + maxTemp) / 2
	amp := (maxTemp - minTemp) / 2
	for twelfth := 0; twelfth < 12; twelfth++ {
		temp := mid + amp*math.Cos(2*math.Pi*(float64(twelfth)+0.5)/12)
		if temp > 6 {
			count++
		}
	}
	return count
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
