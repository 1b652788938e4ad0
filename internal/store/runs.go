package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/engine"
)

// RunRecord is a filter pass as stored in the history.
type RunRecord struct {
	ID          string               `json:"id"`
	World       string               `json:"world"`
	StartedAt   time.Time            `json:"started_at"`
	Elapsed     time.Duration        `json:"elapsed"`
	Viable      int                  `json:"viable"`
	Matched     int                  `json:"matched"`
	Error       string               `json:"error,omitempty"`
	Constraints *constraint.Document `json:"constraints,omitempty"`
	Steps       []engine.Step        `json:"steps,omitempty"`
}

// RecordRun appends a filter pass to the history of the world stored under
// fingerprint. doc is the constraint set the pass read and may be nil.
func (s *Store) RecordRun(ctx context.Context, fingerprint string, r *engine.Report, doc *constraint.Document) error {
	if r == nil {
		return fmt.Errorf("no report to record")
	}
	worldID, err := s.worldID(ctx, fingerprint)
	if err != nil {
		return err
	}

	var constraints []byte
	if doc != nil {
		if constraints, err = yaml.Marshal(doc); err != nil {
			return fmt.Errorf("failed to encode constraints: %w", err)
		}
	}
	steps, err := yaml.Marshal(r.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.qb.Build(
		`INSERT INTO filter_runs (id, world_id, started_at, elapsed_ms, viable, matched, error, constraints, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID.String(), worldID, r.Started.UTC(), r.Elapsed.Milliseconds(), r.Viable, r.Matched, r.Error,
		string(constraints), string(steps))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs of a world, newest first. A limit of zero
// or less returns every run.
func (s *Store) ListRuns(ctx context.Context, fingerprint string, limit int) ([]RunRecord, error) {
	worldID, err := s.worldID(ctx, fingerprint)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, started_at, elapsed_ms, viable, matched, error, constraints, report
		FROM filter_runs WHERE world_id = ? ORDER BY started_at DESC, id`
	args := []any{worldID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.qb.Build(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		run.World = fingerprint
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, s.qb.Build(
		`SELECT r.id, r.started_at, r.elapsed_ms, r.viable, r.matched, r.error, r.constraints, r.report, w.fingerprint
		 FROM filter_runs r JOIN worlds w ON w.id = r.world_id WHERE r.id = ?`), id)

	var fingerprint string
	run, err := scanRun(row, &fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	run.World = fingerprint
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, extra ...any) (*RunRecord, error) {
	var (
		run         RunRecord
		elapsedMS   int64
		constraints string
		steps       string
	)
	dest := append([]any{&run.ID, &run.StartedAt, &elapsedMS, &run.Viable, &run.Matched, &run.Error,
		&constraints, &steps}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond

	if constraints != "" {
		doc, err := constraint.ParseDocument([]byte(constraints))
		if err != nil {
			return nil, fmt.Errorf("failed to decode constraints of run %s: %w", run.ID, err)
		}
		run.Constraints = doc
	}
	if steps != "" {
		if err := yaml.Unmarshal([]byte(steps), &run.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps of run %s: %w", run.ID, err)
		}
	}
	return &run, nil
}
