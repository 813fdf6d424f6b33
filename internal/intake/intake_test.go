package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNullIsland(t *testing.T) {
	assert.True(t, isNullIsland(0.5, -0.5))
	assert.True(t, isNullIsland(0, 0))
	assert.False(t, isNullIsland(1.1, 0))
	assert.False(t, isNullIsland(48.8566, 2.3522))
}

func TestContentHash_DeterministicAndSensitive(t *testing.T) {
	a := contentHash(1000, 48.85, 2.35, "client/1.0")
	b := contentHash(1000, 48.85, 2.35, "client/1.0")
	assert.Equal(t, a, b)

	c := contentHash(1000, 48.85, 2.36, "client/1.0")
	assert.NotEqual(t, a, c)
}
