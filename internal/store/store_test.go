package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/tilefilter/internal/config"
	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/engine"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// postgresTestConfig returns a PostgreSQL config when TILEFILTER_TEST_POSTGRES
// is set. Connection fields come from TILEFILTER_TEST_POSTGRES_{HOST,PORT,USER,
// PASSWORD,DATABASE}.
func postgresTestConfig(t *testing.T) config.PostgresConfig {
	t.Helper()
	if os.Getenv("TILEFILTER_TEST_POSTGRES") == "" {
		t.Skip("Skipping PostgreSQL test: TILEFILTER_TEST_POSTGRES not set")
	}
	env := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}
	port, err := strconv.Atoi(env("TILEFILTER_TEST_POSTGRES_PORT", "5432"))
	if err != nil {
		t.Fatalf("invalid port: %v", err)
	}
	return config.PostgresConfig{
		Host:            env("TILEFILTER_TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		User:            env("TILEFILTER_TEST_POSTGRES_USER", "tilefilter"),
		Password:        env("TILEFILTER_TEST_POSTGRES_PASSWORD", "tilefilter"),
		Database:        env("TILEFILTER_TEST_POSTGRES_DATABASE", "tilefilter_test"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}
}

func testWorld(t *testing.T) *world.World {
	t.Helper()
	cfg := world.DefaultGeneratorConfig(7)
	cfg.TileCount = 60
	w, err := world.Generate(cfg)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	return w
}

func TestQueryBuilder(t *testing.T) {
	tests := []struct {
		dialect DialectType
		query   string
		want    string
	}{
		{DialectSQLite, "SELECT id FROM worlds WHERE fingerprint = ? AND name = ?", "SELECT id FROM worlds WHERE fingerprint = ? AND name = ?"},
		{DialectPostgres, "SELECT id FROM worlds WHERE fingerprint = ? AND name = ?", "SELECT id FROM worlds WHERE fingerprint = $1 AND name = $2"},
		{DialectPostgres, "SELECT '?' FROM worlds WHERE id = ?", "SELECT '?' FROM worlds WHERE id = $1"},
		{DialectPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		qb := NewQueryBuilder(NewDialect(tt.dialect))
		if got := qb.Build(tt.query); got != tt.want {
			t.Errorf("%s Build(%q) = %q, want %q", tt.dialect, tt.query, got, tt.want)
		}
	}

	insert := "INSERT INTO worlds (name) VALUES (?)"
	if got := NewQueryBuilder(NewDialect(DialectSQLite)).BuildWithReturning(insert, "id"); got != insert {
		t.Errorf("sqlite BuildWithReturning() = %q", got)
	}
	want := "INSERT INTO worlds (name) VALUES ($1) RETURNING id"
	if got := NewQueryBuilder(NewDialect(DialectPostgres)).BuildWithReturning(insert, "id"); got != want {
		t.Errorf("postgres BuildWithReturning() = %q, want %q", got, want)
	}
}

func TestDialects(t *testing.T) {
	if _, ok := NewDialect("unknown").(*SQLiteDialect); !ok {
		t.Error("unknown dialect should default to SQLite")
	}

	sqlite := NewDialect(DialectSQLite)
	postgres := NewDialect(DialectPostgres)

	if sqlite.DriverName() != "sqlite" || postgres.DriverName() != "postgres" {
		t.Errorf("DriverName() = %q, %q", sqlite.DriverName(), postgres.DriverName())
	}
	if postgres.Placeholder(3) != "$3" || sqlite.Placeholder(3) != "?" {
		t.Errorf("Placeholder(3) = %q, %q", sqlite.Placeholder(3), postgres.Placeholder(3))
	}

	dupTests := []struct {
		dialect Dialect
		err     error
		want    bool
	}{
		{sqlite, errors.New("UNIQUE constraint failed: worlds.fingerprint"), true},
		{sqlite, errors.New("no such table"), false},
		{sqlite, nil, false},
		{postgres, errors.New(`pq: duplicate key value violates unique constraint "worlds_fingerprint_key"`), true},
		{postgres, errors.New("ERROR: 23505"), true},
		{postgres, errors.New("connection refused"), false},
	}
	for _, tt := range dupTests {
		if got := tt.dialect.IsDuplicateKeyError(tt.err); got != tt.want {
			t.Errorf("%s IsDuplicateKeyError(%v) = %v, want %v", tt.dialect.DriverName(), tt.err, got, tt.want)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Error("Open() should reject unknown drivers")
	}
	if _, err := OpenSQLite(""); err == nil {
		t.Error("OpenSQLite(\"\") should fail")
	}
	if _, err := Open(config.DatabaseConfig{}); !errors.Is(err, ErrDisabled) {
		t.Errorf("Open() without driver error = %v, want ErrDisabled", err)
	}
}

func testWorldRoundTrip(t *testing.T, s *Store) {
	ctx := context.Background()
	w := testWorld(t)

	fingerprint, err := s.SaveWorld(ctx, w)
	if err != nil {
		t.Fatalf("SaveWorld() error: %v", err)
	}
	if fingerprint != world.Fingerprint(w) {
		t.Errorf("SaveWorld() = %s, want %s", fingerprint, world.Fingerprint(w))
	}

	// Saving again is a no-op
	if again, err := s.SaveWorld(ctx, w); err != nil || again != fingerprint {
		t.Errorf("second SaveWorld() = %s, %v", again, err)
	}

	loaded, err := s.LoadWorld(ctx, fingerprint)
	if err != nil {
		t.Fatalf("LoadWorld() error: %v", err)
	}
	if got := world.Fingerprint(loaded); got != fingerprint {
		t.Errorf("loaded fingerprint = %s, want %s", got, fingerprint)
	}
	if loaded.TileCount() != w.TileCount() || loaded.Info() != w.Info() {
		t.Errorf("loaded world = %+v with %d tiles", loaded.Info(), loaded.TileCount())
	}

	worlds, err := s.ListWorlds(ctx)
	if err != nil {
		t.Fatalf("ListWorlds() error: %v", err)
	}
	found := false
	for _, ws := range worlds {
		if ws.Fingerprint == fingerprint {
			found = true
			if ws.TileCount != w.TileCount() {
				t.Errorf("TileCount = %d, want %d", ws.TileCount, w.TileCount())
			}
		}
	}
	if !found {
		t.Error("ListWorlds() should include the saved world")
	}
}

func TestSQLiteWorldRoundTrip(t *testing.T) {
	testWorldRoundTrip(t, setupTestStore(t))
}

func TestLoadUnknownWorld(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.LoadWorld(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadWorld() = %v, want ErrNotFound", err)
	}
	if err := s.DeleteWorld(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteWorld() = %v, want ErrNotFound", err)
	}
}

func TestRunHistory(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	w := testWorld(t)

	fingerprint, err := s.SaveWorld(ctx, w)
	if err != nil {
		t.Fatal(err)
	}

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		report := &engine.Report{
			ID:      uuid.New(),
			World:   w.Info().Name,
			Started: started.Add(time.Duration(i) * time.Minute),
			Elapsed: 42 * time.Millisecond,
			Viable:  50,
			Matched: 10 - i,
			Steps:   []engine.Step{{Key: constraint.Biome, Subject: "biomes", Heaviness: "light", Candidates: 50, Matched: 10 - i}},
		}
		doc := &constraint.Document{Biome: ptrTo("Forest")}
		if err := s.RecordRun(ctx, fingerprint, report, doc); err != nil {
			t.Fatalf("RecordRun() error: %v", err)
		}
		ids = append(ids, report.ID.String())
	}

	runs, err := s.ListRuns(ctx, fingerprint, 2)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns() returned %d runs, want 2", len(runs))
	}
	if runs[0].ID != ids[2] || runs[0].Matched != 8 {
		t.Errorf("newest run = %s matched %d, want %s matched 8", runs[0].ID, runs[0].Matched, ids[2])
	}
	if runs[0].Elapsed != 42*time.Millisecond {
		t.Errorf("Elapsed = %v, want 42ms", runs[0].Elapsed)
	}
	if runs[0].Constraints == nil || runs[0].Constraints.Biome == nil || *runs[0].Constraints.Biome != "Forest" {
		t.Errorf("Constraints = %+v", runs[0].Constraints)
	}
	if len(runs[0].Steps) != 1 || runs[0].Steps[0].Key != constraint.Biome {
		t.Errorf("Steps = %+v", runs[0].Steps)
	}

	run, err := s.GetRun(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if run.World != fingerprint || run.Matched != 10 {
		t.Errorf("GetRun() = %+v", run)
	}
	if _, err := s.GetRun(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun(unknown) = %v, want ErrNotFound", err)
	}

	if err := s.RecordRun(ctx, "missing", &engine.Report{ID: uuid.New()}, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("RecordRun() on unknown world = %v, want ErrNotFound", err)
	}

	// Deleting the world drops its runs
	if err := s.DeleteWorld(ctx, fingerprint); err != nil {
		t.Fatalf("DeleteWorld() error: %v", err)
	}
	if _, err := s.GetRun(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() after delete = %v, want ErrNotFound", err)
	}
}

func TestPostgresWorldRoundTrip(t *testing.T) {
	cfg := postgresTestConfig(t)
	s, err := OpenPostgres(cfg)
	if err != nil {
		t.Fatalf("OpenPostgres() error: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"filter_runs", "tiles", "biomes", "worlds"} {
		if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("Note: could not clean table %s: %v", table, err)
		}
	}
	testWorldRoundTrip(t, s)
}

func ptrTo[T any](v T) *T { return &v }
