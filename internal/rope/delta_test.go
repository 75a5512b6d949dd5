package rope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelta_Soundness(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
	}{
		{"identical", "abcdef", "abcdef"},
		{"insert at end", "abc", "abcdef"},
		{"delete at end", "abcdef", "abc"},
		{"insert at start", "def", "abcdef"},
		{"delete at start", "abcdef", "def"},
		{"replace middle", "abXXef", "abYYYef"},
		{"empty to text", "", "hello"},
		{"text to empty", "hello", ""},
		{"both empty", "", ""},
		{"merged undo scenario", "foo bar baz", "foo qux baz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := Delta([]rune(tt.old), []rune(tt.new))
			got := tx.Apply([]rune(tt.old))
			assert.Equal(t, tt.new, string(got))
		})
	}
}
