// Package tileset provides order-preserving set operations over dense tile ids.
// Membership is tracked in a bitmap sized to the tile universe, so every
// operation is linear in the input lengths regardless of how ids are spread.
package tileset

import (
	"github.com/boljen/go-bitmap"
)

// Membership is a fixed-size presence bitmap over tile ids [0, n).
type Membership struct {
	bits bitmap.Bitmap
	n    int
	size int
}

// NewMembership builds a membership bitmap for ids in [0, n).
// Ids outside the universe are ignored.
func NewMembership(n int, ids []int) *Membership {
	m := &Membership{bits: bitmap.New(max(n, 1)), n: n}
	for _, id := range ids {
		m.Add(id)
	}
	return m
}

// Add marks id as present
func (m *Membership) Add(id int) {
	if id < 0 || id >= m.n || m.bits.Get(id) {
		return
	}
	m.bits.Set(id, true)
	m.size++
}

// Remove clears id
func (m *Membership) Remove(id int) {
	if id < 0 || id >= m.n || !m.bits.Get(id) {
		return
	}
	m.bits.Set(id, false)
	m.size--
}

// Has reports whether id is present
func (m *Membership) Has(id int) bool {
	if id < 0 || id >= m.n {
		return false
	}
	return m.bits.Get(id)
}

// Len returns the number of ids present
func (m *Membership) Len() int {
	return m.size
}

// Intersect returns the ids of primary that are also in other, in primary's order.
// Duplicates in primary are kept once.
func Intersect(n int, primary, other []int) []int {
	in := NewMembership(n, other)
	seen := NewMembership(n, nil)
	result := make([]int, 0, min(len(primary), len(other)))
	for _, id := range primary {
		if in.Has(id) && !seen.Has(id) {
			seen.Add(id)
			result = append(result, id)
		}
	}
	return result
}

// Union returns the ids of a followed by the ids of b not already in a.
func Union(n int, a, b []int) []int {
	seen := NewMembership(n, nil)
	result := make([]int, 0, len(a)+len(b))
	for _, list := range [][]int{a, b} {
		for _, id := range list {
			if !seen.Has(id) && id >= 0 && id < n {
				seen.Add(id)
				result = append(result, id)
			}
		}
	}
	return result
}

// Difference returns the ids of a that are not in b, in a's order.
func Difference(n int, a, b []int) []int {
	out := NewMembership(n, b)
	result := make([]int, 0, len(a))
	for _, id := range a {
		if !out.Has(id) {
			result = append(result, id)
		}
	}
	return result
}

// Select returns the ids for which keep returns true, in input order.
// The input slice is never modified.
func Select(ids []int, keep func(id int) bool) []int {
	result := make([]int, 0, len(ids))
	for _, id := range ids {
		if keep(id) {
			result = append(result, id)
		}
	}
	return result
}

// Clone returns a copy of ids that callers may freely modify.
func Clone(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}

// Equal reports whether a and b hold the same ids in the same order.
func Equal(a, b []int) bool {
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
