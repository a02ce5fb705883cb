package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLevel(t *testing.T) {
	tests := []struct {
		input    any
		expected int
	}{
		{0.0, 0},
		{2.49, 2},
		{2.5, 3},
		{-0.4, 0},
		{6.6, 6},
		{json.Number("4"), 4},
		{" 5 ", 5},
		{"", 0},
		{"high", 0},
		{nil, 0},
		{true, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, clampLevel(tt.input), "input %#v", tt.input)
	}
}

func TestDeduceGridSize(t *testing.T) {
	tests := []struct {
		n, width, height int
	}{
		{0, 1, 1},
		{1, 1, 1},
		{9, 3, 3},
		{10, 10, 1},
		{65536, 256, 256},
	}

	for _, tt := range tests {
		w, h := deduceGridSize(tt.n)
		assert.Equal(t, tt.width, w, "n=%d", tt.n)
		assert.Equal(t, tt.height, h, "n=%d", tt.n)
	}
}

func TestNormalizeObservedLevels(t *testing.T) {
	assert.Nil(t, normalizeObservedLevels(nil))
	assert.Equal(t, []int{}, normalizeObservedLevels([]any{}))
	assert.Equal(t, []int{1, 2, 6}, normalizeObservedLevels([]any{6.0, 2.0, 0.0, 9.0, 1.0, 2.0, "x"}))
}

func TestNormalizeRegion(t *testing.T) {
	assert.Equal(t, RegionGuam, normalizeRegion(" guam "))
	assert.Equal(t, RegionCONUS, normalizeRegion("mars"))
	assert.Equal(t, RegionCONUS, normalizeRegion(nil))
}

func TestAsPositiveInt(t *testing.T) {
	n, ok := asPositiveInt(json.Number("3.9"))
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = asPositiveInt(0.5)
	assert.False(t, ok)

	_, ok = asPositiveInt("-2")
	assert.False(t, ok)
}
