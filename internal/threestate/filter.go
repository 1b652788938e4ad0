package threestate

// Presence is the set of values a tile carries for one group.
type Presence interface {
	Size() int
	Has(name string) bool
}

// ValuesFunc returns the values tile id carries for a group.
type ValuesFunc func(id int) Presence

// NoValuePolicy decides how AND-mode treats a tile carrying no value at all.
// Groups differ here and each keeps its own rule.
type NoValuePolicy int

const (
	// NoValueGeneral admits a valueless tile under Forbidden when every entry
	// is Forbidden or OffPartialNoSelect is off, and under DontCare when
	// OffPartialNoSelect is off. Used for roads and rivers.
	NoValueGeneral NoValuePolicy = iota

	// NoValueNeverAdmit rejects valueless tiles. Used for stones, where every
	// real tile carries at least one kind.
	NoValueNeverAdmit
)

// Required returns the names of Required entries in container order.
func (c *Container) Required() []string {
	return c.namesIn(Required)
}

// Forbidden returns the names of Forbidden entries in container order.
func (c *Container) Forbidden() []string {
	return c.namesIn(Forbidden)
}

// FilterOr keeps the tiles whose values agree with every entry: no Forbidden
// value present and every Required value present. A tile with no value
// matches only when nothing is Required. The result keeps input order.
func FilterOr(ids []int, c *Container, values ValuesFunc) []int {
	required := c.Required()
	forbidden := c.Forbidden()

	result := make([]int, 0, len(ids))
	for _, id := range ids {
		tileValues := values(id)
		if tileValues == nil || tileValues.Size() == 0 {
			if len(required) == 0 {
				result = append(result, id)
			}
			continue
		}

		if len(required) > tileValues.Size() {
			continue
		}
		if anyPresent(tileValues, forbidden) {
			continue
		}
		if !allPresent(tileValues, required) {
			continue
		}
		result = append(result, id)
	}
	return result
}

// FilterAnd walks the entries in container order for every tile and admits
// the tile as soon as one entry resolves true; later entries are not
// evaluated for that tile. The result keeps input order.
func FilterAnd(ids []int, c *Container, values ValuesFunc, policy NoValuePolicy) []int {
	offNoSelect := c.OffPartialNoSelect
	allOff := c.IsAllOff()

	result := make([]int, 0, len(ids))
	for _, id := range ids {
		tileValues := values(id)
		hasValues := tileValues != nil && tileValues.Size() > 0

		for _, entry := range c.entries {
			var admit bool
			if hasValues {
				admit = admitWithValues(entry, tileValues, offNoSelect)
			} else {
				admit = admitWithoutValues(entry.State, allOff, offNoSelect, policy)
			}
			if admit {
				result = append(result, id)
				break
			}
		}
	}
	return result
}

func admitWithValues(entry Entry, tileValues Presence, offNoSelect bool) bool {
	present := tileValues.Has(entry.Name)
	switch entry.State {
	case Required:
		return present
	case Forbidden:
		return !present && !offNoSelect
	default:
		return !offNoSelect || present
	}
}

func admitWithoutValues(state State, allOff, offNoSelect bool, policy NoValuePolicy) bool {
	if policy == NoValueNeverAdmit {
		return false
	}
	switch state {
	case Forbidden:
		return allOff || !offNoSelect
	case DontCare:
		return !offNoSelect
	default:
		return false
	}
}

// InOrder reports whether every name of wanted appears in list, in the same
// relative order.
func InOrder(list []string, wanted []string) bool {
	pos := 0
	for _, name := range wanted {
		found := false
		for pos < len(list) {
			if list[pos] == name {
				found = true
				pos++
				break
			}
			pos++
		}
		if !found {
			return false
		}
	}
	return true
}

func anyPresent(p Presence, names []string) bool {
	for _, name := range names {
		if p.Has(name) {
			return true
		}
	}
	return false
}

func allPresent(p Presence, names []string) bool {
	for _, name := range names {
		if !p.Has(name) {
			return false
		}
	}
	return true
}
