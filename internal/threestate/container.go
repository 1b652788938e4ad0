package threestate

import (
	"fmt"
)

// Entry is one catalog value and its selected state
type Entry struct {
	Name  string
	State State
}

// Container holds the per-entry states of one constraint group, in a fixed
// order. The order matters for AND-mode evaluation and ordered filtering.
type Container struct {
	entries []Entry
	index   map[string]int

	// Mode is the combination policy used by the group's predicate.
	Mode Mode

	// OffPartialNoSelect makes Forbidden and DontCare stricter in AND-mode:
	// Forbidden no longer admits a tile and DontCare requires presence.
	OffPartialNoSelect bool

	// OrderedFiltering requires Required values to appear in the tile's own
	// value list in container order. Only meaningful for ordered values.
	OrderedFiltering bool
}

// NewContainer creates a container with every entry in DontCare state.
// Duplicate names are kept once.
func NewContainer(names []string) *Container {
	c := &Container{index: make(map[string]int, len(names))}
	for _, name := range names {
		if _, exists := c.index[name]; exists {
			continue
		}
		c.index[name] = len(c.entries)
		c.entries = append(c.entries, Entry{Name: name})
	}
	return c
}

// Len returns the number of entries
func (c *Container) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries in evaluation order.
func (c *Container) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns the entry names in evaluation order.
func (c *Container) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// State returns the state of the named entry
func (c *Container) State(name string) (State, bool) {
	i, ok := c.index[name]
	if !ok {
		return DontCare, false
	}
	return c.entries[i].State, true
}

// SetState sets the state of the named entry.
func (c *Container) SetState(name string, state State) error {
	i, ok := c.index[name]
	if !ok {
		return fmt.Errorf("unknown entry %q", name)
	}
	c.entries[i].State = state
	return nil
}

// Reorder moves entries into the given order. Names must be a permutation
// of the current entries.
func (c *Container) Reorder(names []string) error {
	if len(names) != len(c.entries) {
		return fmt.Errorf("reorder needs %d names, got %d", len(c.entries), len(names))
	}

	reordered := make([]Entry, 0, len(names))
	index := make(map[string]int, len(names))
	for _, name := range names {
		i, ok := c.index[name]
		if !ok {
			return fmt.Errorf("unknown entry %q", name)
		}
		if _, dup := index[name]; dup {
			return fmt.Errorf("duplicate entry %q", name)
		}
		index[name] = len(reordered)
		reordered = append(reordered, c.entries[i])
	}

	c.entries = reordered
	c.index = index
	return nil
}

// IsAllOff returns true if the container has entries and every one is Forbidden.
func (c *Container) IsAllOff() bool {
	if len(c.entries) == 0 {
		return false
	}
	for _, e := range c.entries {
		if e.State != Forbidden {
			return false
		}
	}
	return true
}

// IsDefault returns true when every entry is DontCare.
func (c *Container) IsDefault() bool {
	for _, e := range c.entries {
		if e.State != DontCare {
			return false
		}
	}
	return true
}

// Reset puts every entry back to DontCare. Order and options are kept.
func (c *Container) Reset() {
	for i := range c.entries {
		c.entries[i].State = DontCare
	}
}

// Clone returns an independent copy of the container.
func (c *Container) Clone() *Container {
	clone := &Container{
		entries:            c.Entries(),
		index:              make(map[string]int, len(c.index)),
		Mode:               c.Mode,
		OffPartialNoSelect: c.OffPartialNoSelect,
		OrderedFiltering:   c.OrderedFiltering,
	}
	for name, i := range c.index {
		clone.index[name] = i
	}
	return clone
}

// namesIn returns the names of entries in the given state, in container order.
func (c *Container) namesIn(state State) []string {
	var names []string
	for _, e := range c.entries {
		if e.State == state {
			names = append(names, e.Name)
		}
	}
	return names
}
