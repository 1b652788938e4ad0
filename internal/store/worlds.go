package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// WorldSummary describes a stored world without its tiles.
type WorldSummary struct {
	Fingerprint string    `json:"fingerprint"`
	Name        string    `json:"name"`
	Seed        int64     `json:"seed"`
	Coverage    float64   `json:"coverage"`
	TileCount   int       `json:"tile_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveWorld stores w and returns its fingerprint. Saving a world that is
// already stored is a no-op.
func (s *Store) SaveWorld(ctx context.Context, w *world.World) (string, error) {
	fingerprint := world.Fingerprint(w)

	if _, err := s.worldID(ctx, fingerprint); err == nil {
		return fingerprint, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	catalog, err := yaml.Marshal(w.Catalog())
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	info := w.Info()
	query := s.qb.BuildWithReturning(
		`INSERT INTO worlds (fingerprint, name, seed, coverage, tile_count, catalog) VALUES (?, ?, ?, ?, ?, ?)`, "id")
	args := []any{fingerprint, info.Name, info.Seed, info.Coverage, w.TileCount(), string(catalog)}

	var worldID int64
	if s.dialect.SupportsLastInsertID() {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			if s.dialect.IsDuplicateKeyError(err) {
				return fingerprint, nil
			}
			return "", fmt.Errorf("failed to insert world: %w", err)
		}
		if worldID, err = res.LastInsertId(); err != nil {
			return "", fmt.Errorf("failed to get world id: %w", err)
		}
	} else if err := tx.QueryRowContext(ctx, query, args...).Scan(&worldID); err != nil {
		if s.dialect.IsDuplicateKeyError(err) {
			return fingerprint, nil
		}
		return "", fmt.Errorf("failed to insert world: %w", err)
	}

	if err := s.insertBiomes(ctx, tx, worldID, w.Biomes()); err != nil {
		return "", err
	}
	if err := s.insertTiles(ctx, tx, worldID, w); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit world: %w", err)
	}
	return fingerprint, nil
}

func (s *Store) insertBiomes(ctx context.Context, tx *sql.Tx, worldID int64, biomes []world.Biome) error {
	stmt, err := tx.PrepareContext(ctx, s.qb.Build(
		`INSERT INTO biomes (world_id, ordinal, name, can_build_base, implemented, can_auto_choose, settle_weight, foraged_food)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare biome insert: %w", err)
	}
	defer stmt.Close()

	for i, b := range biomes {
		if _, err := stmt.ExecContext(ctx, worldID, i, b.Name, boolInt(b.CanBuildBase), boolInt(b.Implemented),
			boolInt(b.CanAutoChoose), b.SettleWeight, b.ForagedFood); err != nil {
			return fmt.Errorf("failed to insert biome %q: %w", b.Name, err)
		}
	}
	return nil
}

func (s *Store) insertTiles(ctx context.Context, tx *sql.Tx, worldID int64, w *world.World) error {
	stmt, err := tx.PrepareContext(ctx, s.qb.Build(
		`INSERT INTO tiles (world_id, tile_id, biome, hilliness, elevation, temperature, min_temperature, max_temperature,
			rainfall, growing_twelfths, movement_difficulty, forageability, coastal, coastal_lake, coast_rotation,
			has_cave, animals_can_graze_now, roads, rivers, stones, feature, lat, lng, occupied)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare tile insert: %w", err)
	}
	defer stmt.Close()

	occupied := make(map[int]bool)
	for _, id := range w.Occupied() {
		occupied[id] = true
	}

	for id := 0; id < w.TileCount(); id++ {
		t := w.Tile(id)
		if _, err := stmt.ExecContext(ctx, worldID, id, t.Biome, int(t.Hilliness), t.Elevation, t.Temperature,
			t.MinTemperature, t.MaxTemperature, t.Rainfall, t.GrowingTwelfths, t.MovementDifficulty, t.Forageability,
			boolInt(t.Coastal), boolInt(t.CoastalLake), t.CoastRotation, boolInt(t.HasCave), boolInt(t.AnimalsCanGrazeNow),
			joinNames(world.SortedNames(t.Roads)), joinNames(world.SortedNames(t.Rivers)), joinNames(t.Stones),
			t.Feature, float64(t.Location.Lat), float64(t.Location.Lng), boolInt(occupied[id])); err != nil {
			return fmt.Errorf("failed to insert tile %d: %w", id, err)
		}
	}
	return nil
}

// LoadWorld rebuilds the world stored under fingerprint.
func (s *Store) LoadWorld(ctx context.Context, fingerprint string) (*world.World, error) {
	var (
		worldID int64
		info    world.Info
		catalog string
	)
	err := s.db.QueryRowContext(ctx, s.qb.Build(
		`SELECT id, name, seed, coverage, catalog FROM worlds WHERE fingerprint = ?`), fingerprint).
		Scan(&worldID, &info.Name, &info.Seed, &info.Coverage, &catalog)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("world %s: %w", fingerprint, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}

	var cat world.Catalog
	if err := yaml.Unmarshal([]byte(catalog), &cat); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	biomes, err := s.loadBiomes(ctx, worldID)
	if err != nil {
		return nil, err
	}
	tiles, occupied, err := s.loadTiles(ctx, worldID)
	if err != nil {
		return nil, err
	}

	w, err := world.New(info, cat, biomes, tiles, occupied)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild world: %w", err)
	}
	return w, nil
}

func (s *Store) loadBiomes(ctx context.Context, worldID int64) ([]world.Biome, error) {
	rows, err := s.db.QueryContext(ctx, s.qb.Build(
		`SELECT name, can_build_base, implemented, can_auto_choose, settle_weight, foraged_food
		 FROM biomes WHERE world_id = ? ORDER BY ordinal`), worldID)
	if err != nil {
		return nil, fmt.Errorf("failed to query biomes: %w", err)
	}
	defer rows.Close()

	var biomes []world.Biome
	for rows.Next() {
		var b world.Biome
		var canBuild, implemented, autoChoose int
		if err := rows.Scan(&b.Name, &canBuild, &implemented, &autoChoose, &b.SettleWeight, &b.ForagedFood); err != nil {
			return nil, fmt.Errorf("failed to scan biome: %w", err)
		}
		b.CanBuildBase = canBuild != 0
		b.Implemented = implemented != 0
		b.CanAutoChoose = autoChoose != 0
		biomes = append(biomes, b)
	}
	return biomes, rows.Err()
}

func (s *Store) loadTiles(ctx context.Context, worldID int64) ([]world.Tile, []int, error) {
	rows, err := s.db.QueryContext(ctx, s.qb.Build(
		`SELECT tile_id, biome, hilliness, elevation, temperature, min_temperature, max_temperature, rainfall,
			growing_twelfths, movement_difficulty, forageability, coastal, coastal_lake, coast_rotation, has_cave,
			animals_can_graze_now, roads, rivers, stones, feature, lat, lng, occupied
		 FROM tiles WHERE world_id = ? ORDER BY tile_id`), worldID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query tiles: %w", err)
	}
	defer rows.Close()

	var (
		tiles    []world.Tile
		occupied []int
	)
	for rows.Next() {
		var (
			t                               world.Tile
			id, hilliness                   int
			coastal, lake, cave, graze, occ int
			roads, rivers, stones           string
			lat, lng                        float64
		)
		if err := rows.Scan(&id, &t.Biome, &hilliness, &t.Elevation, &t.Temperature, &t.MinTemperature,
			&t.MaxTemperature, &t.Rainfall, &t.GrowingTwelfths, &t.MovementDifficulty, &t.Forageability,
			&coastal, &lake, &t.CoastRotation, &cave, &graze, &roads, &rivers, &stones, &t.Feature,
			&lat, &lng, &occ); err != nil {
			return nil, nil, fmt.Errorf("failed to scan tile: %w", err)
		}
		if id != len(tiles) {
			return nil, nil, fmt.Errorf("tile ids are not dense: got %d, want %d", id, len(tiles))
		}

		t.Hilliness = world.Hilliness(hilliness)
		t.Coastal = coastal != 0
		t.CoastalLake = lake != 0
		t.HasCave = cave != 0
		t.AnimalsCanGrazeNow = graze != 0
		t.Roads = world.NewNameSet(splitNames(roads)...)
		t.Rivers = world.NewNameSet(splitNames(rivers)...)
		t.Stones = world.StoneList(splitNames(stones))
		t.Location = s2.LatLng{Lat: s1.Angle(lat), Lng: s1.Angle(lng)}
		tiles = append(tiles, t)

		if occ != 0 {
			occupied = append(occupied, id)
		}
	}
	return tiles, occupied, rows.Err()
}

// ListWorlds returns every stored world, newest first.
func (s *Store) ListWorlds(ctx context.Context) ([]WorldSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, name, seed, coverage, tile_count, created_at FROM worlds ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query worlds: %w", err)
	}
	defer rows.Close()

	var worlds []WorldSummary
	for rows.Next() {
		var ws WorldSummary
		var created sql.NullTime
		if err := rows.Scan(&ws.Fingerprint, &ws.Name, &ws.Seed, &ws.Coverage, &ws.TileCount, &created); err != nil {
			return nil, fmt.Errorf("failed to scan world: %w", err)
		}
		ws.CreatedAt = created.Time
		worlds = append(worlds, ws)
	}
	return worlds, rows.Err()
}

// DeleteWorld removes a world along with its tiles and runs.
func (s *Store) DeleteWorld(ctx context.Context, fingerprint string) error {
	res, err := s.db.ExecContext(ctx, s.qb.Build(`DELETE FROM worlds WHERE fingerprint = ?`), fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete world: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("world %s: %w", fingerprint, ErrNotFound)
	}
	return nil
}

func (s *Store) worldID(ctx context.Context, fingerprint string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.qb.Build(`SELECT id FROM worlds WHERE fingerprint = ?`), fingerprint).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("world %s: %w", fingerprint, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up world: %w", err)
	}
	return id, nil
}

// Names are stored comma separated; catalog names never contain commas.
func joinNames(names []string) string {
	return strings.Join(names, ",")
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
