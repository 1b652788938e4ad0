package threestate

import (
	"testing"

	"github.com/zyedidia/generic/mapset"
)

func presence(names ...string) mapset.Set[string] {
	set := mapset.New[string]()
	for _, name := range names {
		set.Put(name)
	}
	return set
}

// valuesOf maps tile ids to their values; missing ids have none.
func valuesOf(tiles map[int][]string) ValuesFunc {
	return func(id int) Presence {
		return presence(tiles[id]...)
	}
}

func roadContainer(t *testing.T, a, b, c State) *Container {
	t.Helper()
	container := NewContainer([]string{"RoadA", "RoadB", "RoadC"})
	for name, state := range map[string]State{"RoadA": a, "RoadB": b, "RoadC": c} {
		if err := container.SetState(name, state); err != nil {
			t.Fatalf("SetState(%s) error: %v", name, err)
		}
	}
	return container
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseState(t *testing.T) {
	tests := []struct {
		input string
		want  State
		ok    bool
	}{
		{"required", Required, true},
		{"On", Required, true},
		{"forbidden", Forbidden, true},
		{"off", Forbidden, true},
		{"partial", DontCare, true},
		{"", DontCare, true},
		{"maybe", DontCare, false},
	}

	for _, tc := range tests {
		got, ok := ParseState(tc.input)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseState(%q) = %v, %v; want %v, %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestStateMatches(t *testing.T) {
	if !Required.Matches(true) || Required.Matches(false) {
		t.Error("Required should match only true")
	}
	if Forbidden.Matches(true) || !Forbidden.Matches(false) {
		t.Error("Forbidden should match only false")
	}
	if !DontCare.Matches(true) || !DontCare.Matches(false) {
		t.Error("DontCare should match everything")
	}
}

func TestContainerStates(t *testing.T) {
	c := NewContainer([]string{"A", "B", "A"})
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if !c.IsDefault() {
		t.Error("new container should be in default state")
	}
	if err := c.SetState("Z", Required); err == nil {
		t.Error("SetState on unknown entry should fail")
	}

	c.SetState("A", Forbidden)
	if c.IsDefault() || c.IsAllOff() {
		t.Error("partially forbidden container is neither default nor all off")
	}
	c.SetState("B", Forbidden)
	if !c.IsAllOff() {
		t.Error("IsAllOff() = false with every entry forbidden")
	}

	c.Reset()
	if !c.IsDefault() {
		t.Error("Reset() should restore default state")
	}
	if NewContainer(nil).IsAllOff() {
		t.Error("empty container is never all off")
	}
}

func TestContainerReorder(t *testing.T) {
	c := NewContainer([]string{"A", "B", "C"})
	c.SetState("C", Required)

	if err := c.Reorder([]string{"C", "A", "B"}); err != nil {
		t.Fatalf("Reorder() error: %v", err)
	}
	names := c.Names()
	if names[0] != "C" || names[1] != "A" || names[2] != "B" {
		t.Errorf("Names() = %v, want [C A B]", names)
	}
	if state, _ := c.State("C"); state != Required {
		t.Errorf("State(C) = %v after reorder, want required", state)
	}

	for _, bad := range [][]string{{"A", "B"}, {"A", "B", "Z"}, {"A", "A", "B"}} {
		if err := c.Reorder(bad); err == nil {
			t.Errorf("Reorder(%v) should fail", bad)
		}
	}
}

func TestFilterOrScenario(t *testing.T) {
	c := roadContainer(t, Required, Forbidden, DontCare)
	tiles := map[int][]string{
		0: {"RoadA", "RoadC"},
		1: {"RoadA", "RoadB"},
		2: {"RoadC"},
		3: {"RoadA"},
	}

	got := FilterOr([]int{0, 1, 2, 3}, c, valuesOf(tiles))
	want := []int{0, 3}
	if !equalIDs(got, want) {
		t.Errorf("FilterOr() = %v, want %v", got, want)
	}
}

func TestFilterOrTilesWithoutValues(t *testing.T) {
	tiles := map[int][]string{1: {"RoadB"}}

	// Tile 0 has no roads: it matches iff nothing is required
	noRequired := roadContainer(t, DontCare, Forbidden, DontCare)
	if got := FilterOr([]int{0}, noRequired, valuesOf(tiles)); !equalIDs(got, []int{0}) {
		t.Errorf("FilterOr() without required = %v, want [0]", got)
	}

	withRequired := roadContainer(t, Required, DontCare, DontCare)
	if got := FilterOr([]int{0}, withRequired, valuesOf(tiles)); len(got) != 0 {
		t.Errorf("FilterOr() with required = %v, want []", got)
	}
}

func TestFilterOrMoreRequiredThanValues(t *testing.T) {
	c := roadContainer(t, Required, Required, DontCare)
	tiles := map[int][]string{0: {"RoadA"}, 1: {"RoadA", "RoadB"}}

	if got := FilterOr([]int{0, 1}, c, valuesOf(tiles)); !equalIDs(got, []int{1}) {
		t.Errorf("FilterOr() = %v, want [1]", got)
	}
}

func TestFilterAndShortCircuit(t *testing.T) {
	// RoadA admits tile 0 before RoadB is ever looked at
	c := roadContainer(t, Required, Forbidden, Forbidden)
	c.OffPartialNoSelect = true
	tiles := map[int][]string{0: {"RoadA", "RoadB"}, 1: {"RoadB"}}

	got := FilterAnd([]int{0, 1}, c, valuesOf(tiles), NoValueGeneral)
	if !equalIDs(got, []int{0}) {
		t.Errorf("FilterAnd() = %v, want [0]", got)
	}
}

func TestFilterAndAdmitsOnce(t *testing.T) {
	c := roadContainer(t, Required, Required, Required)
	tiles := map[int][]string{0: {"RoadA", "RoadB", "RoadC"}}

	got := FilterAnd([]int{0}, c, valuesOf(tiles), NoValueGeneral)
	if !equalIDs(got, []int{0}) {
		t.Errorf("FilterAnd() = %v, want a single admission of tile 0", got)
	}
}

func TestFilterAndWithValues(t *testing.T) {
	tiles := map[int][]string{0: {"RoadA"}, 1: {"RoadB"}, 2: {"RoadC"}}
	ids := []int{0, 1, 2}

	tests := []struct {
		name        string
		a, b, c     State
		offNoSelect bool
		want        []int
	}{
		{"required only", Required, Forbidden, Forbidden, true, []int{0}},
		{"forbidden admits lacking tiles", Forbidden, Forbidden, Forbidden, false, []int{0, 1, 2}},
		{"forbidden strict", Forbidden, Forbidden, Forbidden, true, []int{}},
		{"dont care admits all", DontCare, Forbidden, Forbidden, false, []int{0, 1, 2}},
		{"dont care strict needs presence", DontCare, Forbidden, Forbidden, true, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := roadContainer(t, tt.a, tt.b, tt.c)
			c.OffPartialNoSelect = tt.offNoSelect
			got := FilterAnd(ids, c, valuesOf(tiles), NoValueGeneral)
			if !equalIDs(got, tt.want) {
				t.Errorf("FilterAnd() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterAndWithoutValues(t *testing.T) {
	none := valuesOf(nil)

	tests := []struct {
		name        string
		a, b, c     State
		offNoSelect bool
		policy      NoValuePolicy
		admitted    bool
	}{
		{"all off strict", Forbidden, Forbidden, Forbidden, true, NoValueGeneral, true},
		{"partly off strict", Forbidden, Required, Required, true, NoValueGeneral, false},
		{"partly off lenient", Forbidden, Required, Required, false, NoValueGeneral, true},
		{"dont care lenient", DontCare, Required, Required, false, NoValueGeneral, true},
		{"dont care strict", DontCare, Required, Required, true, NoValueGeneral, false},
		{"required never", Required, Required, Required, false, NoValueGeneral, false},
		{"stones all off", Forbidden, Forbidden, Forbidden, true, NoValueNeverAdmit, false},
		{"stones lenient", DontCare, DontCare, DontCare, false, NoValueNeverAdmit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := roadContainer(t, tt.a, tt.b, tt.c)
			c.OffPartialNoSelect = tt.offNoSelect
			got := FilterAnd([]int{7}, c, none, tt.policy)
			if (len(got) == 1) != tt.admitted {
				t.Errorf("FilterAnd() = %v, admitted want %v", got, tt.admitted)
			}
		})
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	c := roadContainer(t, Required, DontCare, DontCare)
	ids := []int{2, 1, 0}
	tiles := map[int][]string{0: {"RoadA"}, 2: {"RoadA"}}

	FilterOr(ids, c, valuesOf(tiles))
	FilterAnd(ids, c, valuesOf(tiles), NoValueGeneral)
	if !equalIDs(ids, []int{2, 1, 0}) {
		t.Errorf("input modified: %v", ids)
	}
}

func TestInOrder(t *testing.T) {
	list := []string{"Granite", "Marble", "Slate"}

	tests := []struct {
		wanted []string
		want   bool
	}{
		{nil, true},
		{[]string{"Granite", "Slate"}, true},
		{[]string{"Slate", "Granite"}, false},
		{[]string{"Limestone"}, false},
	}

	for _, tc := range tests {
		if got := InOrder(list, tc.wanted); got != tc.want {
			t.Errorf("InOrder(%v) = %v, want %v", tc.wanted, got, tc.want)
		}
	}
}
