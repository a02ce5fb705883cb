package domain

import "math"

// Axis selects the valid range for NormalizeDegree.
type Axis int

const (
	AxisLat Axis = iota
	AxisLon
)

func (a Axis) String() string {
	if a == AxisLat {
		return "lat"
	}
	return "lon"
}

func (a Axis) limit() float64 {
	if a == AxisLat {
		return 90
	}
	return 180
}

// degreeScales are the upstream integer encodings, in the order they are
// tried: microdegrees, millidegrees, 1e-4 and 1e-5 degrees.
var degreeScales = [...]float64{1e6, 1e3, 1e4, 1e5}

// minScaledDeg is the smallest magnitude a rescaled value may have, so a
// value just past the limit (91, 181) is rejected rather than rescaled to a
// point beside 0,0.
const minScaledDeg = 0.2

// NormalizeDegree returns raw unchanged when it is within range for axis,
// otherwise the first quotient of raw by a known scale that lands in
// [minScaledDeg, limit]. ok is false when no scale does.
func NormalizeDegree(raw float64, axis Axis) (deg float64, ok bool) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, false
	}
	limit := axis.limit()
	if math.Abs(raw) <= limit {
		return raw, true
	}
	for _, scale := range degreeScales {
		if c := raw / scale; math.Abs(c) <= limit && math.Abs(c) >= minScaledDeg {
			return c, true
		}
	}
	return 0, false
}
