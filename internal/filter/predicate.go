// Package filter contains the tile predicates and the registry that orders them.
package filter

import (
	"fmt"

	"github.com/lawnchairsociety/tilefilter/internal/constraint"
	"github.com/lawnchairsociety/tilefilter/internal/world"
)

// Heaviness is the relative cost class of a predicate. It only affects
// evaluation order.
type Heaviness int

const (
	Unknown Heaviness = iota // Not registered
	Light
	Medium
	Heavy
)

// String returns the string representation of a Heaviness
func (h Heaviness) String() string {
	switch h {
	case Light:
		return "light"
	case Medium:
		return "medium"
	case Heavy:
		return "heavy"
	default:
		return "unknown"
	}
}

// Predicate evaluates one constraint kind against a candidate tile set.
type Predicate interface {
	// Key is the constraint this predicate reads.
	Key() constraint.Key

	// Subject is a short human-readable name used in reports.
	Subject() string

	// Active reports whether the constraint narrows anything.
	Active(v *constraint.Values) bool

	// Filter returns the candidates that satisfy the constraint. Candidates
	// are never modified. Only called when Active returns true.
	Filter(w world.DataSource, candidates []int, v *constraint.Values) ([]int, error)
}

// UserConstraintError reports a constraint the user must fix before the
// predicate can run, such as a range with min > max.
type UserConstraintError struct {
	Key     constraint.Key
	Subject string
	Reason  string
}

func (e *UserConstraintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Reason)
}

// rangeError builds the error for an inverted range
func rangeError[T any](key constraint.Key, subject string, lo, hi T) *UserConstraintError {
	return &UserConstraintError{
		Key:     key,
		Subject: subject,
		Reason:  fmt.Sprintf("verify that min is less than or equal to max: %v <= %v", lo, hi),
	}
}
