package town

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxOverlaps(t *testing.T) {
	base := BoundingBox{X: 0, Y: 0, Width: 4, Height: 4} // spans [-2,2] on both axes

	tests := []struct {
		name    string
		other   BoundingBox
		overlap bool
	}{
		{
			name:    "identical boxes",
			other:   BoundingBox{X: 0, Y: 0, Width: 4, Height: 4},
			overlap: true,
		},
		{
			name:    "partial intersection",
			other:   BoundingBox{X: 3, Y: 3, Width: 4, Height: 4},
			overlap: true,
		},
		{
			name:    "contained box",
			other:   BoundingBox{X: 0, Y: 0, Width: 1, Height: 1},
			overlap: true,
		},
		{
			name:    "disjoint on x",
			other:   BoundingBox{X: 10, Y: 0, Width: 4, Height: 4},
			overlap: false,
		},
		{
			name:    "disjoint on y",
			other:   BoundingBox{X: 0, Y: 10, Width: 4, Height: 4},
			overlap: false,
		},
		{
			// base spans x in [-2,2], other spans x in [2,6]: a shared edge is
			// not overlap.
			name:    "touching along an edge",
			other:   BoundingBox{X: 4, Y: 0, Width: 4, Height: 4},
			overlap: false,
		},
		{
			name:    "touching at a corner",
			other:   BoundingBox{X: 4, Y: 4, Width: 4, Height: 4},
			overlap: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlap, base.Overlaps(tt.other))
			assert.Equal(t, tt.overlap, tt.other.Overlaps(base), "overlap must be symmetric")
		})
	}
}

func TestBoundingBoxContains(t *testing.T) {
	box := BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}

	assert.True(t, box.contains(0, 0))
	assert.True(t, box.contains(4.9, -4.9))
	assert.False(t, box.contains(5, 0), "boundary points are outside")
	assert.False(t, box.contains(0, -5), "boundary points are outside")
	assert.False(t, box.contains(6, 0))
}

func TestAreaIndexRemoveOccupant(t *testing.T) {
	area := &ConversationArea{
		Label:       "study",
		Topic:       "Math",
		OccupantIDs: []string{"a", "b"},
	}
	ix := areaIndex{}
	ix.add(area)

	destroyed := ix.removeOccupant(area, "a")
	assert.False(t, destroyed)
	assert.Equal(t, []string{"b"}, area.OccupantIDs)
	assert.Len(t, ix.areas, 1)

	destroyed = ix.removeOccupant(area, "b")
	assert.True(t, destroyed)
	assert.Empty(t, ix.areas, "an emptied area must not outlive the removal")
}

func TestAreaIndexByLabel(t *testing.T) {
	ix := areaIndex{}
	ix.add(&ConversationArea{Label: "study", Topic: "Math", OccupantIDs: []string{"a"}})

	assert.NotNil(t, ix.byLabel("study"))
	assert.Nil(t, ix.byLabel("lounge"))
	assert.Nil(t, ix.byLabel(""), "an empty label never resolves to an area")
}
