// Package store persists worlds and filter run history in SQLite or PostgreSQL.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lawnchairsociety/tilefilter/internal/config"
)

// ErrNotFound is returned when a world or run does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a database connection and its dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// ErrDisabled is returned by Open when no database driver is configured.
var ErrDisabled = errors.New("database disabled")

// Open connects using the database section of the configuration.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case "postgres":
		return OpenPostgres(cfg.Postgres)
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath)
	case "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dialect := NewDialect(DialectSQLite)
	db, err := sql.Open(dialect.DriverName(), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// PRAGMAs apply per connection
	db.SetMaxOpenConns(1)
	return newStore(db, dialect)
}

// OpenPostgres connects to PostgreSQL and applies the pool settings.
func OpenPostgres(cfg config.PostgresConfig) (*Store, error) {
	dialect := NewDialect(DialectPostgres)
	db, err := sql.Open(dialect.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newStore(db, dialect)
}

func newStore(db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	s := &Store{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the store's SQL dialect
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) migrate() error {
	float := s.dialect.FloatType()
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS worlds (
			id ` + s.dialect.SerialPrimaryKey() + `,
			fingerprint TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			seed BIGINT NOT NULL DEFAULT 0,
			coverage ` + float + ` NOT NULL DEFAULT 0,
			tile_count INTEGER NOT NULL,
			catalog TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS biomes (
			world_id BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			name TEXT NOT NULL,
			can_build_base INTEGER NOT NULL DEFAULT 0,
			implemented INTEGER NOT NULL DEFAULT 0,
			can_auto_choose INTEGER NOT NULL DEFAULT 0,
			settle_weight ` + float + ` NOT NULL DEFAULT 0,
			foraged_food TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (world_id, name)
		)`,

		`CREATE TABLE IF NOT EXISTS tiles (
			world_id BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
			tile_id INTEGER NOT NULL,
			biome TEXT NOT NULL,
			hilliness INTEGER NOT NULL,
			elevation ` + float + ` NOT NULL,
			temperature ` + float + ` NOT NULL,
			min_temperature ` + float + ` NOT NULL,
			max_temperature ` + float + ` NOT NULL,
			rainfall ` + float + ` NOT NULL,
			growing_twelfths INTEGER NOT NULL,
			movement_difficulty ` + float + ` NOT NULL,
			forageability ` + float + ` NOT NULL,
			coastal INTEGER NOT NULL DEFAULT 0,
			coastal_lake INTEGER NOT NULL DEFAULT 0,
			coast_rotation INTEGER NOT NULL DEFAULT -1,
			has_cave INTEGER NOT NULL DEFAULT 0,
			animals_can_graze_now INTEGER NOT NULL DEFAULT 0,
			roads TEXT NOT NULL DEFAULT '',
			rivers TEXT NOT NULL DEFAULT '',
			stones TEXT NOT NULL DEFAULT '',
			feature TEXT NOT NULL DEFAULT '',
			lat ` + float + ` NOT NULL,
			lng ` + float + ` NOT NULL,
			occupied INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (world_id, tile_id)
		)`,

		`CREATE TABLE IF NOT EXISTS filter_runs (
			id TEXT PRIMARY KEY,
			world_id BIGINT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
			started_at TIMESTAMP NOT NULL,
			elapsed_ms BIGINT NOT NULL,
			viable INTEGER NOT NULL,
			matched INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			constraints TEXT NOT NULL DEFAULT '',
			report TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_filter_runs_world_id ON filter_runs(world_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
