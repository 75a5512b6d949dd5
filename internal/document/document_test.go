package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeno-editor/kernel/internal/rope"
)

func TestDocument_ApplyAdvancesVersionMonotonically(t *testing.T) {
	d := New(1, "abcdef")
	v0 := d.Version()

	tx := rope.NewInsert(6, 3, "XYZ")
	inv := rope.NewDelete(9, 3, 6)
	v1, err := d.Apply(v0, tx, inv, ViewState{}, ViewState{}, true)
	require.NoError(t, err)
	assert.Equal(t, v0+1, v1)
	assert.Equal(t, "abcXYZdef", string(d.Text()))

	v2, err := d.Apply(v1, rope.NewInsert(9, 0, "!"), rope.NewDelete(10, 0, 1), ViewState{}, ViewState{}, true)
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)
	assert.NotEqual(t, v1, v2)
}

func TestDocument_ApplyRejectsStaleVersion(t *testing.T) {
	d := New(1, "abc")
	_, err := d.Apply(d.Version(), rope.NewInsert(3, 0, "X"), rope.NewDelete(4, 0, 1), ViewState{}, ViewState{}, true)
	require.NoError(t, err)

	_, err = d.Apply(0, rope.NewInsert(3, 0, "Y"), rope.NewDelete(4, 0, 1), ViewState{}, ViewState{}, true)
	assert.ErrorIs(t, err, ErrStaleVersion)
}

func TestDocument_UndoRedoRoundTrip(t *testing.T) {
	d := New(1, "abcdef")
	before := ViewState{Selection: NewSelection(PointRange(3))}
	after := ViewState{Selection: NewSelection(PointRange(6))}

	_, err := d.Apply(d.Version(), rope.NewInsert(6, 3, "XYZ"), rope.NewDelete(9, 3, 6), before, after, true)
	require.NoError(t, err)
	assert.Equal(t, "abcXYZdef", string(d.Text()))
	assert.Equal(t, 1, d.UndoDepth())

	_, view, ok := d.Undo()
	require.True(t, ok)
	assert.Equal(t, "abcdef", string(d.Text()))
	assert.Equal(t, 3, view.Selection.Cursor())
	assert.Equal(t, 1, d.RedoDepth())

	_, view, ok = d.Redo()
	require.True(t, ok)
	assert.Equal(t, "abcXYZdef", string(d.Text()))
	assert.Equal(t, 6, view.Selection.Cursor())
}

func TestDocument_UndoOnEmptyStackReportsFalse(t *testing.T) {
	d := New(1, "abc")
	_, _, ok := d.Undo()
	assert.False(t, ok)
}

func TestDocument_NewEditClearsRedoStack(t *testing.T) {
	d := New(1, "abc")
	_, err := d.Apply(d.Version(), rope.NewInsert(3, 0, "X"), rope.NewDelete(4, 0, 1), ViewState{}, ViewState{}, true)
	require.NoError(t, err)
	_, _, ok := d.Undo()
	require.True(t, ok)
	require.Equal(t, 1, d.RedoDepth())

	_, err = d.Apply(d.Version(), rope.NewInsert(3, 0, "Y"), rope.NewDelete(4, 0, 1), ViewState{}, ViewState{}, true)
	require.NoError(t, err)
	assert.Equal(t, 0, d.RedoDepth())
}

func TestDocument_CoalescesWithinOpenGroup(t *testing.T) {
	d := New(1, "abc")
	v := d.Version()
	v, err := d.Apply(v, rope.NewInsert(3, 3, "X"), rope.NewDelete(4, 3, 4), ViewState{}, ViewState{}, true)
	require.NoError(t, err)
	_, err = d.Apply(v, rope.NewInsert(4, 4, "Y"), rope.NewDelete(5, 4, 5), ViewState{}, ViewState{}, false)
	require.NoError(t, err)

	assert.Equal(t, "abcXY", string(d.Text()))
	assert.Equal(t, 1, d.UndoDepth(), "coalesced edits must still be a single undo group")

	_, _, ok := d.Undo()
	require.True(t, ok)
	assert.Equal(t, "abc", string(d.Text()), "undoing the coalesced group must remove both edits at once")
}
