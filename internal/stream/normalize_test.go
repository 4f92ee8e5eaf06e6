package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace runs", "too   many\t spaces", "too many spaces"},
		{"single space after sentence end", "First.Second!Third?", "First. Second! Third?"},
		{"trims surrounding whitespace", "  padded  ", "padded"},
		{"trailing punctuation keeps no trailing space", "Done.   ", "Done."},
		{"newlines collapse", "line one\n\nline two", "line one line two"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Plan your day.Start with the hardest task!  Then   rest?",
		"already normalized text. With spacing!",
		"   \t\n  ",
		"no punctuation at all",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalizing %q twice must be stable", in)
	}
}
