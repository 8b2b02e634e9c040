// Package ordering applies per-group display positions to a list.
package ordering

import (
	"sort"

	"github.com/google/uuid"
)

// Sort returns items reordered by positions: items that have a position
// come first by ascending position, the rest follow in their input order.
// Ties keep input order. The input slice is not modified.
func Sort[T any](items []T, id func(T) uuid.UUID, positions map[uuid.UUID]int) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := positions[id(out[i])]
		pj, jok := positions[id(out[j])]
		switch {
		case iok && jok:
			return pi < pj
		case iok:
			return true
		default:
			return false
		}
	})
	return out
}

// Positions turns an ordered id list into the position map Sort expects.
// A repeated id keeps its first position.
func Positions(ids []uuid.UUID) map[uuid.UUID]int {
	m := make(map[uuid.UUID]int, len(ids))
	for i, id := range ids {
		if _, seen := m[id]; !seen {
			m[id] = i
		}
	}
	return m
}
