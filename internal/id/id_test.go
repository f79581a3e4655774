package id

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestNew_Format(t *testing.T) {
	assert.Regexp(t, validPattern, New())
}

func TestNew_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		assert.False(t, seen[id], "collision: %s", id)
		seen[id] = true
	}
}

func TestParse_Canonicalizes(t *testing.T) {
	got, err := Parse("  7F1C1F7E-3C1B-4B43-9D2F-0A4C5A0E2B11 ")
	require.NoError(t, err)
	assert.Equal(t, "7f1c1f7e-3c1b-4b43-9d2f-0a4c5a0e2b11", got)
}

func TestParse_Invalid(t *testing.T) {
	for _, bad := range []string{"", "PROJ-ABCDE", "7f1c1f7e-3c1b"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestShort(t *testing.T) {
	assert.Equal(t, "7f1c1f7e", Short("7f1c1f7e-3c1b-4b43-9d2f-0a4c5a0e2b11"))
	assert.Equal(t, "abc", Short("abc"))
}
