package msg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndentWriter(t *testing.T) {
	tests := []struct {
		name     string
		writes   []string
		expected string
	}{
		{
			name:     "single line",
			writes:   []string{"hello\n"},
			expected: "  hello\n",
		},
		{
			name:     "multiple lines in one write",
			writes:   []string{"a\nb\nc\n"},
			expected: "  a\n  b\n  c\n",
		},
		{
			name:     "line split across writes indents once",
			writes:   []string{"par", "tial\n"},
			expected: "  partial\n",
		},
		{
			name:     "trailing text without newline",
			writes:   []string{"no newline"},
			expected: "  no newline",
		},
		{
			name:     "carriage return resets indent",
			writes:   []string{"progress\rredo\n"},
			expected: "  progress\r  redo\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			w := &IndentWriter{Indent: "  ", W: &sb}
			for _, s := range tt.writes {
				n, err := w.Write([]byte(s))
				require.NoError(t, err)
				assert.Equal(t, len(s), n)
			}
			assert.Equal(t, tt.expected, sb.String())
		})
	}
}
