package httpadapter

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/wx-radar-etl/internal/domain"
	"github.com/couchcryptid/wx-radar-etl/internal/gridcache"
	"github.com/couchcryptid/wx-radar-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// TokenHeader carries the shared ingest secret.
const TokenHeader = "x-wx-token"

// Publisher forwards accepted payloads to the pipeline's source topic.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
}

// RadarConfig configures a RadarHandler.
type RadarConfig struct {
	Token           string
	MaxBytes        int64
	DefaultCenter   domain.LatLon
	DefaultRadiusNm float64
}

// RadarHandler serves POST and GET /api/wx/radar. POSTed payloads are
// normalized immediately and kept as the latest grid; GET returns the latest
// grid, or a 1x1 empty grid when nothing has been received.
type RadarHandler struct {
	cfg        RadarConfig
	normalizer gridcache.Normalizer
	latest     *gridcache.Latest
	publisher  Publisher
	metrics    *observability.Metrics
	logger     *slog.Logger
	clock      clockwork.Clock
	newID      func() string
}

// NewRadarHandler creates the radar API. publisher may be nil.
func NewRadarHandler(cfg RadarConfig, normalizer gridcache.Normalizer, latest *gridcache.Latest, publisher Publisher, metrics *observability.Metrics, logger *slog.Logger) *RadarHandler {
	return &RadarHandler{
		cfg:        cfg,
		normalizer: normalizer,
		latest:     latest,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		clock:      clockwork.NewRealClock(),
		newID:      uuid.NewString,
	}
}

// SetClock replaces the clock used for storedAtMs and fallback grids.
func (h *RadarHandler) SetClock(c clockwork.Clock) {
	h.clock = c
}

// Register mounts the radar routes on mux.
func (h *RadarHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/wx/radar", h.handleIngest)
	mux.HandleFunc("GET /api/wx/radar", h.handleLatest)
}

type ingestResponse struct {
	OK         bool           `json:"ok"`
	ID         string         `json:"id"`
	StoredAtMs int64          `json:"storedAtMs"`
	Variant    domain.Variant `json:"variant"`
	Stale      bool           `json:"stale,omitempty"`
}

func (h *RadarHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.metrics.IngestRequests.WithLabelValues("unauthorized").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid ingest token.")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.IngestRequests.WithLabelValues("too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, "Payload too large.")
			return
		}
		h.metrics.IngestRequests.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadRequest, "Could not read request body.")
		return
	}

	center, radius := h.request(r)
	g, rep, err := h.normalizer.NormalizeJSONReport(body, center, &radius)
	if err != nil {
		h.metrics.IngestRequests.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.metrics.GridsNormalized.WithLabelValues(string(rep.Variant)).Inc()
	h.metrics.FramesSkipped.Add(float64(rep.FramesSkipped))
	if rep.ZeroGrid {
		h.metrics.ZeroGridFallbacks.WithLabelValues(string(rep.Variant)).Inc()
	}

	id := h.newID()
	storedAt := h.clock.Now()
	kept := h.latest.Store(id, g, storedAt)

	if h.publisher != nil {
		headers := map[string]string{
			"lat":       strconv.FormatFloat(center.Lat, 'f', -1, 64),
			"lon":       strconv.FormatFloat(center.Lon, 'f', -1, 64),
			"radius_nm": strconv.FormatFloat(radius, 'f', -1, 64),
			"ingest_id": id,
		}
		if err := h.publisher.Publish(r.Context(), publishKey(g, id), body, headers); err != nil {
			h.logger.Warn("forward radar payload failed", "id", id, "error", err)
		}
	}

	h.metrics.IngestRequests.WithLabelValues("accepted").Inc()
	h.logger.Info("radar payload accepted",
		"id", id,
		"variant", rep.Variant,
		"bytes", len(body),
		"width", g.Width,
		"height", g.Height,
		"frames_skipped", rep.FramesSkipped,
	)
	writeJSON(w, http.StatusAccepted, ingestResponse{
		OK:         true,
		ID:         id,
		StoredAtMs: storedAt.UnixMilli(),
		Variant:    rep.Variant,
		Stale:      !kept,
	})
}

func (h *RadarHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	if snap, ok := h.latest.Get(); ok {
		writeJSON(w, http.StatusOK, snap.Grid)
		return
	}
	center, radius := h.request(r)
	writeJSON(w, http.StatusOK, h.fallbackGrid(center, radius))
}

// fallbackGrid is served before any payload arrives: one empty 1 nm cell
// centered on the request.
func (h *RadarHandler) fallbackGrid(center domain.LatLon, radiusNm float64) domain.Grid {
	const cellM = 1852
	return domain.Grid{
		UpdatedAtMs: h.clock.Now().UnixMilli(),
		Region:      domain.RegionCONUS,
		Center:      center,
		RadiusNm:    radiusNm,
		CellSizeNm:  1,
		Width:       1,
		Height:      1,
		Levels:      []int{0},
		Rows:        1,
		Cols:        1,
		Layout:      domain.LayoutRowMajor,
		Cells:       []int{0},
		TRP:         &domain.TRP{LatDeg: center.Lat, LonDeg: center.Lon},
		GridGeom:    &domain.GridGeom{DxM: cellM, DyM: cellM},
		Variant:     domain.VariantLegacy,
	}
}

func (h *RadarHandler) authorized(r *http.Request) bool {
	if h.cfg.Token == "" {
		return true
	}
	got := strings.TrimSpace(r.Header.Get(TokenHeader))
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.Token)) == 1
}

// request reads lat, lon, and radiusNm query parameters over the defaults.
// Out-of-range coordinates fall back to the default center.
func (h *RadarHandler) request(r *http.Request) (domain.LatLon, float64) {
	q := r.URL.Query()
	center := h.cfg.DefaultCenter
	radius := h.cfg.DefaultRadiusNm

	if v, ok := queryFloat(q.Get("lat")); ok && v >= -90 && v <= 90 {
		center.Lat = v
	}
	if v, ok := queryFloat(q.Get("lon")); ok && v >= -180 && v <= 180 {
		center.Lon = v
	}
	if v, ok := queryFloat(q.Get("radiusNm")); ok && v > 0 {
		radius = v
	}
	return center, radius
}

func queryFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// publishKey partitions forwarded payloads by radar site when known.
func publishKey(g domain.Grid, id string) []byte {
	if g.Site != "" {
		return []byte(g.Site)
	}
	return []byte(id)
}
