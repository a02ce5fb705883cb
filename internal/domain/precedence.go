package domain

// candidate is one named source in a precedence chain. Chains are written
// as literal ordered lists, highest priority first.
type candidate[T any] struct {
	source string
	value  T
	ok     bool
}

// firstOf returns the value of the first present candidate, or def.
func firstOf[T any](def T, cands ...candidate[T]) T {
	v, _ := pick(def, cands...)
	return v
}

// pick is firstOf that also reports which source won ("default" when none did).
func pick[T any](def T, cands ...candidate[T]) (T, string) {
	for _, c := range cands {
		if c.ok {
			return c.value, c.source
		}
	}
	return def, "default"
}

func present[T any](source string, v T) candidate[T] {
	return candidate[T]{source: source, value: v, ok: true}
}

func optional[T any](source string, v *T) candidate[T] {
	if v == nil {
		var zero T
		return candidate[T]{source: source, value: zero}
	}
	return candidate[T]{source: source, value: *v, ok: true}
}

func numberAt(source string, v any) candidate[float64] {
	f, ok := asFiniteNumber(v)
	return candidate[float64]{source: source, value: f, ok: ok}
}

func positiveNumberAt(source string, v any) candidate[float64] {
	f, ok := asPositiveNumber(v)
	return candidate[float64]{source: source, value: f, ok: ok}
}

func positiveIntAt(source string, v any) candidate[int] {
	n, ok := asPositiveInt(v)
	return candidate[int]{source: source, value: n, ok: ok}
}

func countAt(source string, v any) candidate[int64] {
	n, ok := asNonNegativeInt(v)
	return candidate[int64]{source: source, value: n, ok: ok}
}

func textAt(source string, v any) candidate[string] {
	s, ok := asString(v)
	return candidate[string]{source: source, value: s, ok: ok}
}

func degreeAt(source string, v any, axis Axis) candidate[float64] {
	f, ok := asFiniteNumber(v)
	if !ok {
		return candidate[float64]{source: source}
	}
	d, ok := NormalizeDegree(f, axis)
	return candidate[float64]{source: source, value: d, ok: ok}
}

// firstPtr is firstOf for results that stay absent when no source is present.
func firstPtr[T any](cands ...candidate[T]) *T {
	for _, c := range cands {
		if c.ok {
			return ptr(c.value)
		}
	}
	return nil
}

func nonEmpty(source, s string) candidate[string] {
	return candidate[string]{source: source, value: s, ok: s != ""}
}

func fromTRP(source string, t *TRP, get func(TRP) float64) candidate[float64] {
	if t == nil {
		return candidate[float64]{source: source}
	}
	return present(source, get(*t))
}

func fromGeom(source string, g *GridGeom, get func(GridGeom) float64) candidate[float64] {
	if g == nil {
		return candidate[float64]{source: source}
	}
	return present(source, get(*g))
}

func when[T any](source string, v T, ok bool) candidate[T] {
	return candidate[T]{source: source, value: v, ok: ok}
}
