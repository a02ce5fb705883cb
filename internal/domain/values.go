package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Upstream payloads arrive as decoded JSON (map[string]any / []any). Numbers
// may be float64, json.Number, or numeric strings depending on the feed and
// on how the caller decoded the bytes.

func asObject(v any) map[string]any {
	obj, _ := v.(map[string]any)
	return obj
}

func asArray(v any) ([]any, bool) {
	arr, ok := v.([]any)
	return arr, ok
}

func asFiniteNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// asPositiveInt floors v and requires the result to be at least 1.
func asPositiveInt(v any) (int, bool) {
	f, ok := asFiniteNumber(v)
	if !ok || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(math.Floor(f)), true
}

func asNonNegativeInt(v any) (int64, bool) {
	f, ok := asFiniteNumber(v)
	if !ok || f < 0 || f > math.MaxInt64/2 {
		return 0, false
	}
	return int64(math.Floor(f)), true
}

func asPositiveNumber(v any) (float64, bool) {
	f, ok := asFiniteNumber(v)
	return f, ok && f > 0
}

// parseTimeMs parses an RFC 3339 timestamp into non-negative epoch millis.
func parseTimeMs(v any) (int64, bool) {
	s, ok := asString(v)
	if !ok {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, false
	}
	ms := t.UnixMilli()
	return ms, ms >= 0
}

// clampLevel rounds half up and clamps into [MinLevel, MaxLevel].
// Non-numeric input maps to 0.
func clampLevel(v any) int {
	f, ok := asFiniteNumber(v)
	if !ok {
		return MinLevel
	}
	r := math.Floor(f + 0.5)
	if r < MinLevel {
		return MinLevel
	}
	if r > MaxLevel {
		return MaxLevel
	}
	return int(r)
}

func clampInt(n int64) int {
	if n < MinLevel {
		return MinLevel
	}
	if n > MaxLevel {
		return MaxLevel
	}
	return int(n)
}

func normalizeRegion(v any) Region {
	s, _ := v.(string)
	switch r := Region(strings.ToUpper(strings.TrimSpace(s))); r {
	case RegionCONUS, RegionAlaska, RegionCarib, RegionGuam, RegionHawaii:
		return r
	default:
		return RegionCONUS
	}
}

func normalizeLayout(v any) (Layout, bool) {
	s, _ := asString(v)
	switch l := Layout(s); l {
	case LayoutRowMajor, LayoutColumnMajor:
		return l, true
	default:
		return "", false
	}
}

// normalizeObservedLevels keeps the distinct levels in [1,6], ascending.
func normalizeObservedLevels(v any) []int {
	arr, ok := asArray(v)
	if !ok {
		return nil
	}
	var seen [MaxLevel + 1]bool
	for _, raw := range arr {
		if l, ok := asNonNegativeInt(raw); ok && l >= 1 && l <= MaxLevel {
			seen[l] = true
		}
	}
	out := []int{}
	for l := 1; l <= MaxLevel; l++ {
		if seen[l] {
			out = append(out, l)
		}
	}
	return out
}

func observedInLevels(levels []int) []int {
	var seen [MaxLevel + 1]bool
	for _, l := range levels {
		if l >= 1 && l <= MaxLevel {
			seen[l] = true
		}
	}
	var out []int
	for l := 1; l <= MaxLevel; l++ {
		if seen[l] {
			out = append(out, l)
		}
	}
	return out
}

func countFilled(levels []int) int {
	n := 0
	for _, l := range levels {
		if l > 0 {
			n++
		}
	}
	return n
}

// deduceGridSize picks a square grid when n has an integer square root,
// otherwise a 1×n strip.
func deduceGridSize(n int) (width, height int) {
	if n <= 0 {
		return 1, 1
	}
	side := int(math.Sqrt(float64(n)))
	for side*side > n {
		side--
	}
	for (side+1)*(side+1) <= n {
		side++
	}
	if side*side == n {
		return side, side
	}
	return n, 1
}

// fitLevels pads with zeros or truncates to exactly n cells.
func fitLevels(levels []int, n int) []int {
	switch {
	case len(levels) == n:
		return levels
	case len(levels) > n:
		return levels[:n:n]
	default:
		out := make([]int, n)
		copy(out, levels)
		return out
	}
}

func ptr[T any](v T) *T { return &v }

// maxGridCells bounds any grid this package allocates. The largest ITWS
// products are well under a million cells.
const maxGridCells = 1 << 24

func checkDims(rows, cols int) error {
	if rows <= 0 || cols <= 0 || int64(rows)*int64(cols) > maxGridCells {
		return fmt.Errorf("%w: rows=%d cols=%d", ErrDimensionMismatch, rows, cols)
	}
	return nil
}

// zeroGridDims returns rows, cols when a zero grid of that size can be
// allocated, else 1, 1.
func zeroGridDims(rows, cols int) (int, int) {
	if checkDims(rows, cols) != nil {
		return 1, 1
	}
	return rows, cols
}
