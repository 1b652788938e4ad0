package engine

import (
	"fmt"

	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/filter"
)

// UserConstraintError reports constraints that cannot be evaluated as given:
// an inverted range, an all-default request or an impossible combination.
type UserConstraintError = filter.UserConstraintError

// EmptyResultError is a valid run that narrowed to nothing.
type EmptyResultError struct {
	// Key and Subject name the predicate that emptied the set. Both are
	// empty when no predicate did, e.g. on a world without viable tiles.
	Key     constraint.Key
	Subject string

	// Previous counts the active predicates that ran before the empty one.
	Previous int

	Reason string
}

func (e *EmptyResultError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: no tile matches in conjunction with %d previous filters", e.Subject, e.Previous)
	}
	return e.Reason
}

// PreconditionPerformanceError blocks unconstrained runs on large worlds.
type PreconditionPerformanceError struct {
	Coverage float64
}

func (e *PreconditionPerformanceError) Error() string {
	return fmt.Sprintf("world coverage is %.0f%%: choose a biome or a terrain type, or disable the prefilter check", e.Coverage*100)
}
