package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeno-editor/kernel/internal/rope"
)

func TestToWire_PreservesInsertBeforeDeleteOrdering(t *testing.T) {
	// Replacing chars [2,4) in "abcdef" with "XY" produces
	// [Retain(2), Insert("XY"), Delete(2), Retain(2)] on the wire.
	tx := rope.NewChange(6, 2, 4, "XY")
	w := ToWire(tx)
	require.Equal(t, Tx{
		{Kind: OpRetain, N: 2},
		{Kind: OpInsert, Text: "XY"},
		{Kind: OpDelete, N: 2},
		{Kind: OpRetain, N: 2},
	}, w)
}

func TestWireRoundTrip(t *testing.T) {
	old := []rune("the quick brown fox")
	newText := []rune("the slow brown foxes")
	tx := rope.Delta(old, newText)
	w := ToWire(tx)
	back := FromTx(w)
	assert.Equal(t, string(newText), string(back.Apply(old)))
}

func TestTx_MarshalJSON(t *testing.T) {
	w := Tx{
		{Kind: OpRetain, N: 2},
		{Kind: OpInsert, Text: "hi\"there"},
		{Kind: OpDelete, N: 1},
	}
	b, err := w.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"retain":2},{"insert":"hi\"there"},{"delete":1}]`, string(b))
}
