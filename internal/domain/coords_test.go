package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDegree(t *testing.T) {
	tests := []struct {
		name     string
		raw      float64
		axis     Axis
		expected float64
		ok       bool
	}{
		{"in range lat", 40.7, AxisLat, 40.7, true},
		{"in range lon", -74.0, AxisLon, -74.0, true},
		{"boundary lat", 90, AxisLat, 90, true},
		{"boundary lon", -180, AxisLon, -180, true},
		{"zero", 0, AxisLat, 0, true},
		{"microdegrees lat", 40700000, AxisLat, 40.7, true},
		{"microdegrees lon", -74000000, AxisLon, -74.0, true},
		{"millidegrees lat", 40700, AxisLat, 40.7, true},
		{"sub-degree microdegrees lat", 500000, AxisLat, 0.5, true},
		{"sub-degree microdegrees lon", -975000, AxisLon, -0.975, true},
		{"floor forces 1e-4 scale lon", 190000, AxisLon, 19, true},
		{"floor skips to 1e-3 scale lat", -45000, AxisLat, -45, true},
		{"just past lat limit", 91, AxisLat, 0, false},
		{"just past lon limit", 181, AxisLon, 0, false},
		{"nothing fits", 5e12, AxisLat, 0, false},
		{"NaN", math.NaN(), AxisLat, 0, false},
		{"infinity", math.Inf(-1), AxisLon, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deg, ok := NormalizeDegree(tt.raw, tt.axis)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, deg, 1e-9)
		})
	}
}

func TestAxisString(t *testing.T) {
	assert.Equal(t, "lat", AxisLat.String())
	assert.Equal(t, "lon", AxisLon.String())
}
