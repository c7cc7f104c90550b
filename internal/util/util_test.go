package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDMonotonic(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		next := NewID()
		assert.Len(t, next, 26)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestUniqueGroupIDs(t *testing.T) {
	got := UniqueGroupIDs([]string{" 1203@g.us", "\u200b1203@g.us", "", "  ", "9988@g.us"})
	assert.Equal(t, []string{"1203@g.us", "9988@g.us"}, got)
}
