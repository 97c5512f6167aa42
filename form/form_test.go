package form

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		s   string
		exp map[string]string
	}{
		{"", map[string]string{}},
		{"first=Mick&last=Jagger", map[string]string{"first": "Mick", "last": "Jagger"}},
		{"first=Mary+Ann&last=O%27Neil", map[string]string{"first": "Mary Ann", "last": "O'Neil"}},
		{"first=&last=Lee", map[string]string{"first": "", "last": "Lee"}},
		{"q=a%26b%3Dc", map[string]string{"q": "a&b=c"}},
		{"a=1&&b=2&", map[string]string{"a": "1", "b": "2"}},
		{"a=1=2", map[string]string{"a": "1=2"}},
		{"a=1&a=2", map[string]string{"a": "2"}},
		{"%66irst=+Zo%C3%AB+", map[string]string{"first": "Zoë"}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.s)
		assert.NoError(t, err, tt.s)
		assert.Equal(t, tt.exp, got, tt.s)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"first", "a=1&b", "a=%zz", "%zz=1"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
		assert.True(t, errors.Is(err, ErrMalformed), s)
	}
}
