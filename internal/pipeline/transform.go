package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/wx-radar-etl/internal/domain"
	"github.com/couchcryptid/wx-radar-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Message headers a producer may set to override the default request.
const (
	HeaderLat      = "lat"
	HeaderLon      = "lon"
	HeaderRadiusNm = "radius_nm"
)

// GridNormalizer turns raw payload bytes into a canonical grid.
type GridNormalizer interface {
	NormalizeJSONReport(data []byte, requested domain.LatLon, requestedRadiusNm *float64) (domain.Grid, domain.Report, error)
}

// GridSink receives every grid the pipeline produces.
type GridSink interface {
	Store(id string, g domain.Grid, storedAt time.Time) bool
}

// Defaults is the request applied to payloads without position headers.
type Defaults struct {
	Center   domain.LatLon
	RadiusNm float64
}

// RadarTransformer implements Transformer by normalizing each payload and
// serializing the canonical grid. Every grid is also handed to an optional
// sink so the latest one can be served over HTTP.
type RadarTransformer struct {
	normalizer GridNormalizer
	sink       GridSink
	defaults   Defaults
	metrics    *observability.Metrics
	logger     *slog.Logger
	clock      clockwork.Clock
}

// NewTransformer creates a RadarTransformer. sink may be nil.
func NewTransformer(normalizer GridNormalizer, sink GridSink, defaults Defaults, metrics *observability.Metrics, logger *slog.Logger) *RadarTransformer {
	return &RadarTransformer{
		normalizer: normalizer,
		sink:       sink,
		defaults:   defaults,
		metrics:    metrics,
		logger:     logger,
		clock:      clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock used to stamp grids handed to the sink.
func (t *RadarTransformer) SetClock(c clockwork.Clock) {
	t.clock = c
}

func (t *RadarTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	center, radius := t.request(raw.Headers)

	g, rep, err := t.normalizer.NormalizeJSONReport(raw.Value, center, &radius)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("normalize radar payload: %w", err)
	}
	if err := g.Validate(); err != nil {
		return domain.OutputEvent{}, err
	}

	t.metrics.GridsNormalized.WithLabelValues(string(rep.Variant)).Inc()
	t.metrics.FramesSkipped.Add(float64(rep.FramesSkipped))
	if rep.ZeroGrid {
		t.metrics.ZeroGridFallbacks.WithLabelValues(string(rep.Variant)).Inc()
	}

	if t.sink != nil {
		id := fmt.Sprintf("%s/%d/%d", raw.Topic, raw.Partition, raw.Offset)
		t.sink.Store(id, g, t.clock.Now())
	}

	t.logger.Debug("radar grid normalized",
		"variant", rep.Variant,
		"width", g.Width,
		"height", g.Height,
		"filled_cells", g.FilledCount(),
		"frames_skipped", rep.FramesSkipped,
		"offset", raw.Offset,
	)

	return domain.SerializeGrid(g, raw.Key)
}

// request resolves the caller center and radius from message headers,
// falling back to the configured defaults for anything absent or malformed.
func (t *RadarTransformer) request(headers map[string]string) (domain.LatLon, float64) {
	center := t.defaults.Center
	radius := t.defaults.RadiusNm

	if v, ok := headerFloat(headers, HeaderLat); ok {
		center.Lat = v
	}
	if v, ok := headerFloat(headers, HeaderLon); ok {
		center.Lon = v
	}
	if v, ok := headerFloat(headers, HeaderRadiusNm); ok && v > 0 {
		radius = v
	}
	return center, radius
}

func headerFloat(headers map[string]string, key string) (float64, bool) {
	s, ok := headers[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
