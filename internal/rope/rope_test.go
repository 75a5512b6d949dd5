package rope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChange_OrdersInsertBeforeDelete(t *testing.T) {
	// Replacing chars [2,4) in "abcdef" with "XY" must emit
	// Retain(2), Insert("XY"), Delete(2), Retain(2) — insert before delete.
	tx := NewChange(6, 2, 4, "XY")
	require.Equal(t, []Op{
		{Kind: OpRetain, N: 2},
		{Kind: OpInsert, Text: "XY"},
		{Kind: OpDelete, N: 2},
		{Kind: OpRetain, N: 2},
	}, tx.Ops)
}

func TestTransaction_Apply(t *testing.T) {
	tests := []struct {
		name string
		base string
		tx   Transaction
		want string
	}{
		{"insert mid", "abcdef", NewInsert(6, 3, "XYZ"), "abcXYZdef"},
		{"delete mid", "abcdef", NewDelete(6, 2, 4), "abef"},
		{"replace mid", "abcdef", NewChange(6, 2, 4, "XY"), "abXYef"},
		{"noop retain all", "abcdef", Transaction{Ops: []Op{{Kind: OpRetain, N: 6}}}, "abcdef"},
		{"insert at start", "abc", NewInsert(3, 0, "X"), "Xabc"},
		{"insert at end", "abc", NewInsert(3, 3, "X"), "abcX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tx.Apply([]rune(tt.base))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestTransaction_IsNoop(t *testing.T) {
	assert.True(t, Transaction{}.IsNoop())
	assert.True(t, Transaction{Ops: []Op{{Kind: OpRetain, N: 5}}}.IsNoop())
	assert.False(t, Transaction{Ops: []Op{{Kind: OpInsert, Text: "x"}}}.IsNoop())
}
