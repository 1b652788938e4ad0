package engine

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// Step records one predicate of a filter pass.
type Step struct {
	Key        constraint.Key `json:"key" yaml:"key"`
	Subject    string         `json:"subject" yaml:"subject"`
	Heaviness  string         `json:"heaviness" yaml:"heaviness"`
	Candidates int            `json:"candidates" yaml:"candidates"`
	Matched    int            `json:"matched" yaml:"matched"`
	Elapsed    time.Duration  `json:"elapsed" yaml:"elapsed"`
}

// Report is the outcome of one filter pass.
type Report struct {
	ID       uuid.UUID     `json:"id" yaml:"id"`
	World    string        `json:"world" yaml:"world"`
	Started  time.Time     `json:"started" yaml:"started"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
	Viable   int           `json:"viable" yaml:"viable"`
	Matched  int           `json:"matched" yaml:"matched"`
	Removed  int           `json:"removed_unsettleable" yaml:"removed_unsettleable"`
	Steps    []Step        `json:"steps" yaml:"steps"`
	Warnings []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`

	err error
}

func newReport(w world.DataSource) *Report {
	return &Report{
		ID:      uuid.New(),
		World:   w.Info().Name,
		Started: time.Now(),
	}
}

func (r *Report) finish(err error) {
	r.Elapsed = time.Since(r.Started)
	r.err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// Err returns the error the pass ended with, or nil.
func (r *Report) Err() error { return r.err }

// Succeeded reports whether the pass published a non-empty result.
func (r *Report) Succeeded() bool { return r.err == nil }

// Summary is a one-line human readable outcome
func (r *Report) Summary() string {
	if r.err != nil {
		return fmt.Sprintf("filter failed after %s: %s", r.Elapsed.Round(time.Millisecond), r.err)
	}
	return fmt.Sprintf("%s of %s viable tiles match (%d filters, %s)",
		humanize.Comma(int64(r.Matched)), humanize.Comma(int64(r.Viable)), len(r.Steps), r.Elapsed.Round(time.Millisecond))
}
