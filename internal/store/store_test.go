package store

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short", "exit status 1", "exit status 1"},
		{"invalid bytes", "\xff\xfebad", "�bad"},
		{"long", strings.Repeat("x", MaxErrorLength+10), strings.Repeat("x", MaxErrorLength)},
		{"multibyte at limit", strings.Repeat("é", MaxErrorLength+1), strings.Repeat("é", MaxErrorLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.input)

			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
