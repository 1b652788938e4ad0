package store

import (
	"fmt"
	"strings"
)

// Dialect covers the SQL differences between SQLite and PostgreSQL that the
// store schema and queries run into.
type Dialect interface {
	// DriverName is the database/sql driver name.
	DriverName() string

	// Placeholder returns the parameter marker for a 1-indexed position.
	Placeholder(position int) string

	// SupportsLastInsertID is false when inserts must use RETURNING.
	SupportsLastInsertID() bool

	// ReturningClause is appended to inserts that need a generated column.
	ReturningClause(column string) string

	// InitStatements run once after connecting.
	InitStatements() []string

	// IsDuplicateKeyError reports a unique constraint violation.
	IsDuplicateKeyError(err error) bool

	// SerialPrimaryKey is the column definition of an auto-increment id.
	SerialPrimaryKey() string

	// FloatType is the column type for float64 values.
	FloatType() string
}

// DialectType identifies the database dialect.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// NewDialect returns the dialect for t. Unknown types fall back to SQLite.
func NewDialect(t DialectType) Dialect {
	if t == DialectPostgres {
		return &PostgresDialect{}
	}
	return &SQLiteDialect{}
}

// SQLiteDialect targets modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string            { return "sqlite" }
func (d *SQLiteDialect) Placeholder(int) string        { return "?" }
func (d *SQLiteDialect) SupportsLastInsertID() bool    { return true }
func (d *SQLiteDialect) ReturningClause(string) string { return "" }
func (d *SQLiteDialect) SerialPrimaryKey() string      { return "INTEGER PRIMARY KEY AUTOINCREMENT" }
func (d *SQLiteDialect) FloatType() string             { return "REAL" }

// InitStatements enables foreign keys and WAL, and waits on locks.
func (d *SQLiteDialect) InitStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
}

func (d *SQLiteDialect) IsDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// PostgresDialect targets github.com/lib/pq.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string { return "postgres" }

func (d *PostgresDialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

func (d *PostgresDialect) SupportsLastInsertID() bool { return false }

func (d *PostgresDialect) ReturningClause(column string) string {
	return " RETURNING " + column
}

// InitStatements is empty: foreign keys are always enforced.
func (d *PostgresDialect) InitStatements() []string { return nil }

func (d *PostgresDialect) IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	// 23505 is unique_violation
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}

func (d *PostgresDialect) SerialPrimaryKey() string { return "BIGSERIAL PRIMARY KEY" }
func (d *PostgresDialect) FloatType() string        { return "DOUBLE PRECISION" }

// QueryBuilder rewrites queries written with ? markers for a dialect.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a query builder for d
func NewQueryBuilder(d Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: d}
}

// Build replaces each ? outside single-quoted literals with the dialect's
// placeholder:
//
//	in:       "SELECT id FROM worlds WHERE fingerprint = ? AND name <> '?'"
//	postgres: "SELECT id FROM worlds WHERE fingerprint = $1 AND name <> '?'"
func (qb *QueryBuilder) Build(query string) string {
	if _, ok := qb.dialect.(*SQLiteDialect); ok {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	position := 1
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			sb.WriteByte(c)
		case c == '?' && !quoted:
			sb.WriteString(qb.dialect.Placeholder(position))
			position++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// BuildWithReturning builds an insert that yields column, via RETURNING where
// the dialect lacks LastInsertId.
func (qb *QueryBuilder) BuildWithReturning(query, column string) string {
	built := qb.Build(query)
	if !qb.dialect.SupportsLastInsertID() {
		built += qb.dialect.ReturningClause(column)
	}
	return built
}
