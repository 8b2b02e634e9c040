package ordering

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type item struct {
	id   uuid.UUID
	name string
}

func itemID(i item) uuid.UUID { return i.id }

func names(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.name
	}
	return out
}

func TestSort(t *testing.T) {
	a := item{uuid.New(), "a"}
	b := item{uuid.New(), "b"}
	c := item{uuid.New(), "c"}
	d := item{uuid.New(), "d"}
	in := []item{a, b, c, d}

	tests := []struct {
		name      string
		positions map[uuid.UUID]int
		want      []string
	}{
		{"no positions keeps input order", nil, []string{"a", "b", "c", "d"}},
		{"positioned first", map[uuid.UUID]int{d.id: 0, b.id: 1}, []string{"d", "b", "a", "c"}},
		{"ties keep input order", map[uuid.UUID]int{c.id: 2, a.id: 2, b.id: 1}, []string{"b", "a", "c", "d"}},
		{"unknown ids ignored", map[uuid.UUID]int{uuid.New(): 0, c.id: 5}, []string{"c", "a", "b", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Sort(in, itemID, tt.positions)))
		})
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, names(in))
}

func TestSortEmpty(t *testing.T) {
	assert.Empty(t, Sort([]item{}, itemID, map[uuid.UUID]int{uuid.New(): 1}))
}

func TestPositionsRoundTrip(t *testing.T) {
	a := item{uuid.New(), "a"}
	b := item{uuid.New(), "b"}
	c := item{uuid.New(), "c"}

	pos := Positions([]uuid.UUID{c.id, a.id, c.id, b.id})
	assert.Equal(t, 0, pos[c.id])
	assert.Equal(t, 1, pos[a.id])
	assert.Equal(t, 3, pos[b.id])

	assert.Equal(t, []string{"c", "a", "b"}, names(Sort([]item{a, b, c}, itemID, pos)))
}
