package infra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNullKey(t *testing.T) {
	require.True(t, IsNullKey(math.NaN()))
	require.True(t, IsNullKey(float32(math.NaN())))
	require.False(t, IsNullKey(math.Inf(1)))
	require.False(t, IsNullKey(0.0))
	require.False(t, IsNullKey(0))
	require.False(t, IsNullKey(""))
	require.False(t, IsNullKey(uint8(255)))
}

func TestCompare(t *testing.T) {
	testcases := []struct {
		name     string
		i, j     int64
		expected int
	}{
		{"equal", 7, 7, 0},
		{"less", -3, 7, -1},
		{"greater", 9, 7, 1},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			assert.Equal(tt, tc.expected, Compare(tc.i, tc.j))
		})
	}
	assert.Equal(t, -1, Compare("abc", "abd"))
	assert.Equal(t, 1, Compare(math.Inf(1), math.MaxFloat64))
}
