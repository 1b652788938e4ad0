// Package threestate implements Required / Forbidden / DontCare selections over
// a catalog of named values and the two ways of combining them against a tile.
package threestate

import "strings"

// State is the user's choice for one catalog entry
type State int

const (
	DontCare  State = iota // Partial: present or not
	Required               // On: must be present
	Forbidden              // Off: must not be present
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case DontCare:
		return "dont_care"
	case Required:
		return "required"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// ParseState converts a string to a State. The checkbox names on, off and
// partial are accepted as aliases.
func ParseState(s string) (State, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dont_care", "dontcare", "partial", "any":
		return DontCare, true
	case "required", "on", "yes":
		return Required, true
	case "forbidden", "off", "no":
		return Forbidden, true
	default:
		return DontCare, false
	}
}

// Matches reports whether a boolean attribute satisfies the state.
// DontCare matches everything.
func (s State) Matches(value bool) bool {
	switch s {
	case Required:
		return value
	case Forbidden:
		return !value
	default:
		return true
	}
}

// Mode selects how the entries of one group combine
type Mode int

const (
	ModeAnd Mode = iota // Each entry may independently admit a tile
	ModeOr              // Tile values must agree with every entry
)

// String returns the string representation of a Mode
func (m Mode) String() string {
	switch m {
	case ModeAnd:
		return "and"
	case ModeOr:
		return "or"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to a Mode
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return ModeAnd, true
	case "or":
		return ModeOr, true
	default:
		return ModeAnd, false
	}
}
