package gridcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/couchcryptid/wx-radar-etl/internal/domain"
	"github.com/couchcryptid/wx-radar-etl/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Normalizer turns raw payload bytes into a canonical grid.
type Normalizer interface {
	NormalizeJSONReport(data []byte, requested domain.LatLon, requestedRadiusNm *float64) (domain.Grid, domain.Report, error)
}

type result struct {
	grid   domain.Grid
	report domain.Report
}

// CachedNormalizer wraps a Normalizer with an in-memory LRU cache keyed by
// payload digest and request.
type CachedNormalizer struct {
	inner   Normalizer
	cache   *lru.Cache[string, result]
	metrics *observability.Metrics
}

// New creates a cache decorator holding up to maxEntries grids.
func New(inner Normalizer, maxEntries int, metrics *observability.Metrics) (*CachedNormalizer, error) {
	cache, err := lru.NewWithEvict(maxEntries, func(string, result) {
		metrics.GridCacheEvictions.Inc()
	})
	if err != nil {
		return nil, fmt.Errorf("create grid cache: %w", err)
	}
	return &CachedNormalizer{inner: inner, cache: cache, metrics: metrics}, nil
}

// NormalizeJSONReport returns the cached grid for an identical request, or
// normalizes and caches it. Callers always receive their own copy.
func (c *CachedNormalizer) NormalizeJSONReport(data []byte, requested domain.LatLon, requestedRadiusNm *float64) (domain.Grid, domain.Report, error) {
	key := cacheKey(data, requested, requestedRadiusNm)
	if r, ok := c.cache.Get(key); ok {
		c.metrics.GridCache.WithLabelValues("hit").Inc()
		return r.grid.Clone(), r.report, nil
	}
	c.metrics.GridCache.WithLabelValues("miss").Inc()

	g, rep, err := c.inner.NormalizeJSONReport(data, requested, requestedRadiusNm)
	if err != nil {
		return g, rep, err
	}
	// A clock-stamped grid would replay a stale updatedAtMs on the next hit.
	if !rep.ClockStamped {
		c.cache.Add(key, result{grid: g.Clone(), report: rep})
	}
	return g, rep, nil
}

// Len reports the number of cached grids.
func (c *CachedNormalizer) Len() int {
	return c.cache.Len()
}

func cacheKey(data []byte, requested domain.LatLon, radius *float64) string {
	sum := sha256.Sum256(data)
	r := math.NaN()
	if radius != nil {
		r = *radius
	}
	return hex.EncodeToString(sum[:]) + "|" +
		strconv.FormatFloat(requested.Lat, 'f', 6, 64) + "," +
		strconv.FormatFloat(requested.Lon, 'f', 6, 64) + "|" +
		strconv.FormatFloat(r, 'g', -1, 64)
}
