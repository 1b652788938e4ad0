package world

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a stable hash of everything the filter engine reads from
// a world: biomes, catalog, occupied tiles and every tile attribute.
// Two worlds with equal fingerprints produce identical filter results.
func Fingerprint(w *World) string {
	h, _ := blake2b.New256(nil) // only fails for oversized keys

	buf := make([]byte, 8)
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
		h.Write(buf)
	}
	writeInt := func(i int64) {
		binary.LittleEndian.PutUint64(buf, uint64(i))
		h.Write(buf)
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		h.Write([]byte(s))
	}
	writeBool := func(b bool) {
		if b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	writeFloat(w.info.Coverage)
	for _, b := range w.Biomes() {
		writeString(b.Name)
		writeBool(b.CanBuildBase)
		writeBool(b.Implemented)
		writeBool(b.CanAutoChoose)
		writeFloat(b.SettleWeight)
		writeString(b.ForagedFood)
	}
	for _, group := range [][]string{w.catalog.Roads, w.catalog.Rivers, w.catalog.Stones, w.catalog.Features} {
		writeString(strings.Join(group, "\x00"))
	}
	for _, id := range w.Occupied() {
		writeInt(int64(id))
	}

	for i := range w.tiles {
		t := &w.tiles[i]
		writeString(t.Biome)
		writeInt(int64(t.Hilliness))
		writeFloat(t.Elevation)
		writeFloat(t.Temperature)
		writeFloat(t.MinTemperature)
		writeFloat(t.MaxTemperature)
		writeFloat(t.Rainfall)
		writeInt(int64(t.GrowingTwelfths))
		writeFloat(t.MovementDifficulty)
		writeFloat(t.Forageability)
		writeBool(t.Coastal)
		writeBool(t.CoastalLake)
		writeInt(int64(t.CoastRotation))
		writeBool(t.HasCave)
		writeBool(t.AnimalsCanGrazeNow)
		writeString(strings.Join(SortedNames(t.Roads), "\x00"))
		writeString(strings.Join(SortedNames(t.Rivers), "\x00"))
		writeString(strings.Join(t.Stones, "\x00"))
		writeString(t.Feature)
		writeFloat(float64(t.Location.Lat))
		writeFloat(float64(t.Location.Lng))
	}

	return hex.EncodeToString(h.Sum(nil))
}
