package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_Basics(t *testing.T) {
	r := NewRange(5, 10)
	assert.Equal(t, 5, r.From())
	assert.Equal(t, 10, r.To())
	assert.Equal(t, 5, r.Len())
	assert.False(t, r.IsEmpty())
	assert.Equal(t, DirForward, r.Direction())
}

func TestRange_Backward(t *testing.T) {
	r := NewRange(10, 5)
	assert.Equal(t, 5, r.From())
	assert.Equal(t, 10, r.To())
	assert.Equal(t, DirBackward, r.Direction())
}

func TestRange_Flip(t *testing.T) {
	r := NewRange(5, 10)
	flipped := r.Flip()
	assert.Equal(t, 10, flipped.Anchor)
	assert.Equal(t, 5, flipped.Head)
}

func TestRange_Point(t *testing.T) {
	r := PointRange(5)
	assert.True(t, r.IsEmpty())
	assert.Equal(t, 5, r.Anchor)
	assert.Equal(t, 5, r.Head)
}

func TestRange_Contains(t *testing.T) {
	r := NewRange(5, 10)
	assert.False(t, r.Contains(4))
	assert.True(t, r.Contains(5))
	assert.True(t, r.Contains(7))
	assert.False(t, r.Contains(10))
}

func TestRange_Overlaps(t *testing.T) {
	r1 := NewRange(5, 10)
	r2 := NewRange(8, 15)
	r3 := NewRange(10, 15)

	assert.True(t, r1.Overlaps(r2))
	assert.False(t, r1.Overlaps(r3))
}

func TestRange_OverlapsSamePoint(t *testing.T) {
	r1 := PointRange(5)
	r2 := PointRange(5)
	assert.True(t, r1.Overlaps(r2))
}

func TestRange_Merge(t *testing.T) {
	r1 := NewRange(5, 10)
	r2 := NewRange(8, 15)
	merged := r1.Merge(r2)
	assert.Equal(t, 5, merged.From())
	assert.Equal(t, 15, merged.To())
}

func TestSelection_NewSelectionPanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() { NewSelection() })
}

func TestSelection_PrimaryIsLastByDefault(t *testing.T) {
	s := NewSelection(PointRange(1), NewRange(5, 8))
	assert.Equal(t, 1, s.Primary)
	assert.Equal(t, 8, s.Cursor())
}

func TestSelection_NormalizeMergesOverlapping(t *testing.T) {
	s := Selection{Ranges: []Range{NewRange(8, 15), NewRange(5, 10)}, Primary: 0}
	norm := s.Normalize()
	require.Len(t, norm.Ranges, 1)
	assert.Equal(t, 5, norm.Ranges[0].From())
	assert.Equal(t, 15, norm.Ranges[0].To())
}

func TestSelection_NormalizeMergesAdjacent(t *testing.T) {
	s := Selection{Ranges: []Range{NewRange(0, 3), NewRange(3, 5)}, Primary: 0}
	norm := s.Normalize()
	require.Len(t, norm.Ranges, 1)
	assert.Equal(t, 0, norm.Ranges[0].From())
	assert.Equal(t, 5, norm.Ranges[0].To())
}

func TestSelection_NormalizeKeepsDisjointSorted(t *testing.T) {
	s := Selection{Ranges: []Range{NewRange(20, 25), PointRange(1)}, Primary: 1}
	norm := s.Normalize()
	require.Len(t, norm.Ranges, 2)
	assert.Equal(t, 1, norm.Ranges[0].From())
	assert.Equal(t, 20, norm.Ranges[1].From())
	// the prior primary (the point at 1) must remain primary after sorting.
	assert.Equal(t, 0, norm.Primary)
}

func TestSelection_MapTransaction(t *testing.T) {
	s := NewSelection(PointRange(5))
	shifted := s.MapTransaction(func(pos int) int { return pos + 3 })
	assert.Equal(t, 8, shifted.Cursor())
}
