package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
)

// Normalizer reconciles raw radar payloads into canonical grids. It holds no
// state besides its logger and is safe for concurrent use.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer that reports skipped frames to logger.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// request is the caller's own view of where the grid should be.
type request struct {
	center   LatLon
	radiusNm float64
}

func newRequest(center LatLon, radiusNm *float64) request {
	r := request{radiusNm: defaultRadiusNm}
	r.center.Lat, _ = NormalizeDegree(center.Lat, AxisLat)
	r.center.Lon, _ = NormalizeDegree(center.Lon, AxisLon)
	if radiusNm != nil && *radiusNm > 0 && !math.IsInf(*radiusNm, 0) {
		r.radiusNm = *radiusNm
	}
	return r
}

// Report describes how a payload was reconciled.
type Report struct {
	Variant Variant
	// FramesSkipped counts frames that failed to decode.
	FramesSkipped int
	// ZeroGrid is set when no cell data could be recovered and the grid is
	// all zeros.
	ZeroGrid bool
	// ClockStamped is set when the payload carried no timestamp and
	// updatedAtMs was taken from the clock.
	ClockStamped bool
}

// Normalize classifies payload (decoded JSON) and reconciles it into a Grid.
// requested supplies the center used when the payload has none; a nil or
// non-positive requestedRadiusNm falls back to 80 nm. Decode failures degrade
// to zero grids; only ErrUnrecognizedPayload is returned.
func (n *Normalizer) Normalize(payload any, requested LatLon, requestedRadiusNm *float64) (Grid, error) {
	g, _, err := n.NormalizeReport(payload, requested, requestedRadiusNm)
	return g, err
}

// NormalizeReport is Normalize that also reports frame decode outcomes.
func (n *Normalizer) NormalizeReport(payload any, requested LatLon, requestedRadiusNm *float64) (Grid, Report, error) {
	c, err := classify(payload)
	if err != nil {
		return Grid{}, Report{}, err
	}
	req := newRequest(requested, requestedRadiusNm)

	rep := Report{Variant: c.variant}
	var g Grid
	switch c.variant {
	case VariantMultiFrame:
		g = n.normalizeMultiFrame(c, req, &rep)
	case VariantSingleGrid:
		g = n.normalizeSingleGrid(c, req, &rep)
	default:
		g = n.normalizeLegacy(c, req, &rep)
	}
	g.Variant = c.variant
	return g, rep, nil
}

// NormalizeJSON decodes data and normalizes it. Numbers are kept as
// json.Number so large epoch values survive intact.
func (n *Normalizer) NormalizeJSON(data []byte, requested LatLon, requestedRadiusNm *float64) (Grid, error) {
	g, _, err := n.NormalizeJSONReport(data, requested, requestedRadiusNm)
	return g, err
}

// NormalizeJSONReport is NormalizeJSON that also returns the Report.
func (n *Normalizer) NormalizeJSONReport(data []byte, requested LatLon, requestedRadiusNm *float64) (Grid, Report, error) {
	payload, err := DecodePayload(data)
	if err != nil {
		return Grid{}, Report{}, err
	}
	return n.NormalizeReport(payload, requested, requestedRadiusNm)
}

// DecodePayload parses raw JSON the way Normalize expects it.
func DecodePayload(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedPayload, err)
	}
	return payload, nil
}

func (n *Normalizer) normalizeMultiFrame(c classified, req request, rep *Report) Grid {
	root := c.root
	rootCenter := asObject(root["center"])
	rootTRP := asObject(root["trp"])
	rootGeom := asObject(root["gridGeom"])
	firstDims := asObject(c.firstFrameGrid["rawDims"])

	fallbackRows := firstOf(1,
		positiveIntAt("root.rows", root["rows"]),
		positiveIntAt("frames[0].grid.rows", c.firstFrameGrid["rows"]),
		positiveIntAt("frames[0].grid.rawDims.gridMaxY", firstDims["gridMaxY"]),
	)
	fallbackCols := firstOf(1,
		positiveIntAt("root.cols", root["cols"]),
		positiveIntAt("frames[0].grid.cols", c.firstFrameGrid["cols"]),
		positiveIntAt("frames[0].grid.rawDims.gridMaxX", firstDims["gridMaxX"]),
	)

	sel := SelectFrame(c.frames, fallbackRows, fallbackCols, n.logger)
	rep.FramesSkipped = sel.Skipped
	rep.ZeroGrid = sel.Fallback
	if sel.Fallback {
		n.logger.Warn("no radar frame decoded, using empty grid",
			"frames", len(c.frames),
			"rows", sel.Decoded.Rows,
			"cols", sel.Decoded.Cols,
		)
	}
	frame, decoded := sel.Frame, sel.Decoded
	fg := frame.Grid
	if fg == nil {
		fg = &FrameGrid{}
	}

	trpLat := firstOf(req.center.Lat,
		fromTRP("frame.grid.trp.latDeg", fg.TRP, func(t TRP) float64 { return t.LatDeg }),
		degreeAt("root.trp.latDeg", rootTRP["latDeg"], AxisLat),
		degreeAt("root.center.lat", rootCenter["lat"], AxisLat),
	)
	trpLon := firstOf(req.center.Lon,
		fromTRP("frame.grid.trp.lonDeg", fg.TRP, func(t TRP) float64 { return t.LonDeg }),
		degreeAt("root.trp.lonDeg", rootTRP["lonDeg"], AxisLon),
		degreeAt("root.center.lon", rootCenter["lon"], AxisLon),
	)
	center := LatLon{
		Lat: firstOf(trpLat, degreeAt("root.center.lat", rootCenter["lat"], AxisLat)),
		Lon: firstOf(trpLon, degreeAt("root.center.lon", rootCenter["lon"], AxisLon)),
	}

	geom := GridGeom{
		XOffsetM: firstOf(0,
			fromGeom("frame.grid.geom.xOffsetM", fg.Geom, func(g GridGeom) float64 { return g.XOffsetM }),
			numberAt("root.gridGeom.xOffsetM", rootGeom["xOffsetM"]),
		),
		YOffsetM: firstOf(0,
			fromGeom("frame.grid.geom.yOffsetM", fg.Geom, func(g GridGeom) float64 { return g.YOffsetM }),
			numberAt("root.gridGeom.yOffsetM", rootGeom["yOffsetM"]),
		),
		DxM: firstOf(defaultCellM,
			fromGeom("frame.grid.geom.dxM", fg.Geom, func(g GridGeom) float64 { return g.DxM }),
			numberAt("root.gridGeom.dxM", rootGeom["dxM"]),
		),
		DyM: firstOf(defaultCellM,
			fromGeom("frame.grid.geom.dyM", fg.Geom, func(g GridGeom) float64 { return g.DyM }),
			numberAt("root.gridGeom.dyM", rootGeom["dyM"]),
		),
		RotationDeg: firstOf(0,
			fromGeom("frame.grid.geom.rotationDeg", fg.Geom, func(g GridGeom) float64 { return g.RotationDeg }),
			numberAt("root.gridGeom.rotationDeg", rootGeom["rotationDeg"]),
		),
	}

	filled := firstOf(int64(countFilled(decoded.Levels)),
		when("frame.grid.nonZeroCells", derefOr(fg.NonZeroCells, 0), derefOr(fg.NonZeroCells, 0) > 0),
	)

	observed := normalizeObservedLevels(root["levels"])
	maxLevelAll := maxFrameLevel(c.frames)
	if explicit := countAt("root.maxLevelAll", root["maxLevelAll"]); explicit.ok && explicit.value > 0 {
		maxLevelAll = explicit.value
	}
	if maxLevelAll == 0 && len(observed) > 0 {
		maxLevelAll = int64(observed[len(observed)-1])
	}

	inferred := decoded.Codec
	if inferred == CodecNone {
		inferred = CodecRLE
		if frame.Data != "" {
			inferred = CodecCompressed
		}
	}

	trp := TRP{LatDeg: trpLat, LonDeg: trpLon}
	return Grid{
		UpdatedAtMs: stampUpdatedAt(rep,
			countAt("root.updatedAtMs", root["updatedAtMs"]),
			optional("frame.receiverMs", frame.ReceiverMs),
			optional("frame.tEpochMs", frame.TEpochMs),
			optional("frame.itwsGenTimeMs", frame.ItwsGenTimeMs),
		),
		Region:     normalizeRegion(root["region"]),
		Center:     center,
		RadiusNm:   resolveRadius(root, decoded.Rows, decoded.Cols, geom, req),
		CellSizeNm: cellSizeNm(geom),
		Width:      decoded.Cols,
		Height:     decoded.Rows,
		Levels:     decoded.Levels,

		ReceivedAt: firstOf("",
			nonEmpty("frame.receivedAt", frame.ReceivedAt),
			nonEmpty("frame.t", frame.T),
			textAt("root.receivedAt", root["receivedAt"]),
		),
		ProductID: firstPtr(
			optional("frame.productId", frame.ProductID),
			countAt("root.productId", root["productId"]),
		),
		ProductName: firstOf("", nonEmpty("frame.productName", frame.ProductName), textAt("root.productName", root["productName"])),
		Site:        firstOf("", nonEmpty("frame.site", frame.Site), textAt("root.site", root["site"])),
		Airport:     firstOf("", nonEmpty("frame.airport", frame.Airport), textAt("root.airport", root["airport"])),

		Rows: decoded.Rows,
		Cols: decoded.Cols,
		Compression: firstOf(string(inferred),
			nonEmpty("frame.grid.cellsEncoding", fg.CellsEncoding),
			textAt("root.compression", root["compression"]),
			textAt("root.dataEncoding", root["dataEncoding"]),
		),
		MaxPrecipLevel: firstPtr(
			countAt("root.maxPrecipLevel", root["maxPrecipLevel"]),
			optional("frame.maxLevel", frame.MaxLevel),
			when("maxLevelAll", maxLevelAll, maxLevelAll > 0),
			decodedMax(decoded.Levels),
		),
		FilledCells: &filled,
		Layout:      firstOf(LayoutRowMajor, when("frame.grid.layout", fg.Layout, fg.Layout != "")),
		Cells:       slices.Clone(decoded.Levels),
		TRP:         &trp,
		GridGeom:    &geom,

		Schema:         firstOf("", textAt("root.schema", root["schema"])),
		LevelsEncoding: firstOf("", textAt("root.levelsEncoding", root["levelsEncoding"])),
		DataEncoding:   firstOf("", textAt("root.dataEncoding", root["dataEncoding"])),
		MaxLevelAll:    firstPtr(when("maxLevelAll", maxLevelAll, maxLevelAll > 0)),
		ObservedLevels: observed,
		Grid: &GridInfo{
			Rows:        decoded.Rows,
			Cols:        decoded.Cols,
			DxM:         geom.DxM,
			DyM:         geom.DyM,
			RotationDeg: geom.RotationDeg,
			TRP:         trp,
			Origin:      GridOrigin{XOffsetM: geom.XOffsetM, YOffsetM: geom.YOffsetM, Mode: fg.DimsSource},
		},
		Frames: c.frames,
	}
}

func (n *Normalizer) normalizeSingleGrid(c classified, req request, rep *Report) Grid {
	root := c.root
	grid := c.grid
	rootCenter := asObject(root["center"])
	rootTRP := asObject(root["trp"])
	rootGeom := asObject(root["gridGeom"])
	gridTRP := asObject(grid["trp"])
	origin := asObject(grid["origin"])

	rows := firstOf(1,
		positiveIntAt("grid.rows", grid["rows"]),
		positiveIntAt("root.rows", root["rows"]),
		positiveIntAt("root.height", root["height"]),
	)
	cols := firstOf(1,
		positiveIntAt("grid.cols", grid["cols"]),
		positiveIntAt("root.cols", root["cols"]),
		positiveIntAt("root.width", root["width"]),
	)
	if r, cl := zeroGridDims(rows, cols); r != rows || cl != cols {
		n.logger.Warn("radar grid dimensions out of bounds, using 1x1", "rows", rows, "cols", cols)
		rows, cols = r, cl
	}

	geom := GridGeom{
		XOffsetM: firstOf(0,
			numberAt("grid.origin.xOffsetM", origin["xOffsetM"]),
			numberAt("root.gridGeom.xOffsetM", rootGeom["xOffsetM"]),
			numberAt("root.xOffsetM", root["xOffsetM"]),
		),
		YOffsetM: firstOf(0,
			numberAt("grid.origin.yOffsetM", origin["yOffsetM"]),
			numberAt("root.gridGeom.yOffsetM", rootGeom["yOffsetM"]),
			numberAt("root.yOffsetM", root["yOffsetM"]),
		),
		DxM: firstOf(defaultCellM,
			numberAt("grid.dxM", grid["dxM"]),
			numberAt("root.gridGeom.dxM", rootGeom["dxM"]),
			numberAt("root.dxM", root["dxM"]),
		),
		DyM: firstOf(defaultCellM,
			numberAt("grid.dyM", grid["dyM"]),
			numberAt("root.gridGeom.dyM", rootGeom["dyM"]),
			numberAt("root.dyM", root["dyM"]),
		),
		RotationDeg: firstOf(0,
			numberAt("grid.rotationDeg", grid["rotationDeg"]),
			numberAt("root.gridGeom.rotationDeg", rootGeom["rotationDeg"]),
			numberAt("root.rotationDeg", root["rotationDeg"]),
		),
	}

	trpLat := firstOf(req.center.Lat,
		degreeAt("grid.trp.latDeg", gridTRP["latDeg"], AxisLat),
		degreeAt("root.trp.latDeg", rootTRP["latDeg"], AxisLat),
		degreeAt("root.center.lat", rootCenter["lat"], AxisLat),
	)
	trpLon := firstOf(req.center.Lon,
		degreeAt("grid.trp.lonDeg", gridTRP["lonDeg"], AxisLon),
		degreeAt("root.trp.lonDeg", rootTRP["lonDeg"], AxisLon),
		degreeAt("root.center.lon", rootCenter["lon"], AxisLon),
	)
	center := LatLon{
		Lat: firstOf(trpLat, degreeAt("root.center.lat", rootCenter["lat"], AxisLat)),
		Lon: firstOf(trpLon, degreeAt("root.center.lon", rootCenter["lon"], AxisLon)),
	}

	latest := latestFrame(c.frames)
	levels := make([]int, rows*cols)
	rep.ZeroGrid = true
	if latest != nil {
		decoded, err := DecodeCompressedFrame(latest.Data, rows, cols)
		if err != nil {
			n.logger.Warn("failed to decode radar frame, using empty grid",
				"epoch_ms", latest.Epoch(),
				"rows", rows,
				"cols", cols,
				"error", err,
			)
			rep.FramesSkipped = 1
		} else {
			levels = decoded
			rep.ZeroGrid = false
		}
	}

	maxLevelAll := maxFrameLevel(c.frames)
	if explicit := countAt("root.maxLevelAll", root["maxLevelAll"]); explicit.ok && explicit.value > 0 {
		maxLevelAll = explicit.value
	}

	var receivedAt string
	var updatedFromFrame candidate[int64]
	if latest != nil {
		receivedAt = latest.T
		updatedFromFrame = optional("frame.tEpochMs", latest.TEpochMs)
	}

	trp := TRP{LatDeg: trpLat, LonDeg: trpLon}
	filled := firstOf(int64(countFilled(levels)), countAt("root.filledCells", root["filledCells"]))
	return Grid{
		UpdatedAtMs: stampUpdatedAt(rep,
			countAt("root.updatedAtMs", root["updatedAtMs"]),
			updatedFromFrame,
		),
		Region:     normalizeRegion(root["region"]),
		Center:     center,
		RadiusNm:   resolveRadius(root, rows, cols, geom, req),
		CellSizeNm: cellSizeNm(geom),
		Width:      cols,
		Height:     rows,
		Levels:     levels,

		ReceivedAt:  firstOf("", textAt("root.receivedAt", root["receivedAt"]), nonEmpty("frame.t", receivedAt)),
		ProductID:   firstPtr(countAt("root.productId", root["productId"])),
		ProductName: firstOf("", textAt("root.productName", root["productName"])),
		Site:        firstOf("", textAt("root.site", root["site"])),
		Airport:     firstOf("", textAt("root.airport", root["airport"])),

		Rows: rows,
		Cols: cols,
		Compression: firstOf(string(CodecCompressed),
			textAt("root.compression", root["compression"]),
			textAt("root.dataEncoding", root["dataEncoding"]),
		),
		MaxPrecipLevel: firstPtr(
			countAt("root.maxPrecipLevel", root["maxPrecipLevel"]),
			when("maxLevelAll", maxLevelAll, maxLevelAll > 0),
			decodedMax(levels),
		),
		FilledCells:    &filled,
		Layout:         firstOf(LayoutRowMajor, layoutAt("root.layout", root["layout"])),
		Cells:          slices.Clone(levels),
		CellsTruncated: root["cellsTruncated"] == true,
		TRP:            &trp,
		GridGeom:       &geom,

		Schema:         firstOf("", textAt("root.schema", root["schema"])),
		LevelsEncoding: firstOf("", textAt("root.levelsEncoding", root["levelsEncoding"])),
		DataEncoding:   firstOf("", textAt("root.dataEncoding", root["dataEncoding"])),
		MaxLevelAll:    firstPtr(when("maxLevelAll", maxLevelAll, maxLevelAll > 0)),
		ObservedLevels: normalizeObservedLevels(root["levels"]),
		Grid: &GridInfo{
			Rows:        rows,
			Cols:        cols,
			DxM:         geom.DxM,
			DyM:         geom.DyM,
			RotationDeg: geom.RotationDeg,
			TRP:         trp,
			Origin: GridOrigin{
				XOffsetM: geom.XOffsetM,
				YOffsetM: geom.YOffsetM,
				Mode:     firstOf("", textAt("grid.origin.mode", origin["mode"])),
			},
		},
		Frames: c.frames,
	}
}

func (n *Normalizer) normalizeLegacy(c classified, req request, rep *Report) Grid {
	root := c.root
	rootCenter := asObject(root["center"])
	rootTRP := asObject(root["trp"])
	rootGeom := asObject(root["gridGeom"])

	center := LatLon{
		Lat: firstOf(req.center.Lat,
			degreeAt("root.center.lat", rootCenter["lat"], AxisLat),
			degreeAt("root.trp.latDeg", rootTRP["latDeg"], AxisLat),
			degreeAt("root.centerLat", root["centerLat"], AxisLat),
			degreeAt("root.lat", root["lat"], AxisLat),
		),
		Lon: firstOf(req.center.Lon,
			degreeAt("root.center.lon", rootCenter["lon"], AxisLon),
			degreeAt("root.trp.lonDeg", rootTRP["lonDeg"], AxisLon),
			degreeAt("root.centerLon", root["centerLon"], AxisLon),
			degreeAt("root.lon", root["lon"], AxisLon),
		),
	}
	radius := firstOf(req.radiusNm,
		positiveNumberAt("root.radiusNm", root["radiusNm"]),
		positiveNumberAt("root.radius", root["radius"]),
	)
	cellSize := firstOf(defaultCellSizeNm,
		positiveNumberAt("root.cellSizeNm", root["cellSizeNm"]),
		positiveNumberAt("root.cellSize", root["cellSize"]),
	)

	width := positiveIntAt("root.width", root["width"])
	if !width.ok {
		width = positiveIntAt("root.cols", root["cols"])
	}
	height := positiveIntAt("root.height", root["height"])
	if !height.ok {
		height = positiveIntAt("root.rows", root["rows"])
	}
	if width.ok && height.ok && checkDims(height.value, width.value) != nil {
		n.logger.Warn("legacy radar dimensions out of bounds, deducing from levels",
			"width", width.value, "height", height.value)
		width.ok, height.ok = false, false
	}
	dimsDeclared := width.ok && height.ok

	rawLevels, hasLevels := asArray(root["levels"])
	rawCells, hasCells := asArray(root["cells"])
	if !hasCells {
		rawCells, hasCells = asArray(root["data"])
	}

	var levels []int
	switch {
	case hasLevels:
		levels = make([]int, len(rawLevels))
		for i, v := range rawLevels {
			levels[i] = clampLevel(v)
		}
	case hasCells && dimsDeclared:
		levels = cellsToLevels(rawCells, width.value, height.value)
	}

	w, h := width.value, height.value
	if !dimsDeclared {
		w, h = deduceGridSize(len(levels))
		if checkDims(h, w) != nil {
			w, h = 1, 1
		}
	}
	rep.ZeroGrid = len(levels) == 0
	levels = fitLevels(levels, w*h)

	rows := firstOf(h, positiveIntAt("root.rows", root["rows"]))
	cols := firstOf(w, positiveIntAt("root.cols", root["cols"]))
	var cells []int
	if flatCells(rawCells) && checkDims(rows, cols) == nil {
		cells = make([]int, rows*cols)
		for i := 0; i < len(cells) && i < len(rawCells); i++ {
			cells[i] = clampLevel(rawCells[i])
		}
	}

	dx := firstOf(cellSize*metersPerNm, positiveNumberAt("root.gridGeom.dxM", rootGeom["dxM"]))
	dy := firstOf(cellSize*metersPerNm, positiveNumberAt("root.gridGeom.dyM", rootGeom["dyM"]))
	trp := TRP{
		LatDeg: firstOf(center.Lat, degreeAt("root.trp.latDeg", rootTRP["latDeg"], AxisLat)),
		LonDeg: firstOf(center.Lon, degreeAt("root.trp.lonDeg", rootTRP["lonDeg"], AxisLon)),
	}
	filled := firstOf(int64(countFilled(levels)), countAt("root.filledCells", root["filledCells"]))

	return Grid{
		UpdatedAtMs: stampUpdatedAt(rep, countAt("root.updatedAtMs", root["updatedAtMs"])),
		Region:      normalizeRegion(root["region"]),
		Center:      center,
		RadiusNm:    radius,
		CellSizeNm:  cellSize,
		Width:       w,
		Height:      h,
		Levels:      levels,

		ReceivedAt:  firstOf("", textAt("root.receivedAt", root["receivedAt"])),
		ProductID:   firstPtr(countAt("root.productId", root["productId"])),
		ProductName: firstOf("", textAt("root.productName", root["productName"])),
		Site:        firstOf("", textAt("root.site", root["site"])),
		Airport:     firstOf("", textAt("root.airport", root["airport"])),

		Rows:        rows,
		Cols:        cols,
		Compression: firstOf("", textAt("root.compression", root["compression"])),
		MaxPrecipLevel: firstPtr(
			countAt("root.maxPrecipLevel", root["maxPrecipLevel"]),
			decodedMax(levels),
		),
		FilledCells:    &filled,
		Layout:         firstOf(LayoutRowMajor, layoutAt("root.layout", root["layout"])),
		Cells:          cells,
		CellsTruncated: root["cellsTruncated"] == true,
		TRP:            &trp,
		GridGeom: &GridGeom{
			XOffsetM:    firstOf(0, numberAt("root.gridGeom.xOffsetM", rootGeom["xOffsetM"])),
			YOffsetM:    firstOf(0, numberAt("root.gridGeom.yOffsetM", rootGeom["yOffsetM"])),
			DxM:         dx,
			DyM:         dy,
			RotationDeg: firstOf(0, numberAt("root.gridGeom.rotationDeg", rootGeom["rotationDeg"])),
		},
		ObservedLevels: observedInLevels(levels),
	}
}

// stampUpdatedAt resolves updatedAtMs from the payload, or from the clock when
// no source is present.
func stampUpdatedAt(rep *Report, cands ...candidate[int64]) int64 {
	ms, source := pick(0, cands...)
	if source == "default" {
		rep.ClockStamped = true
		return nowMs()
	}
	return ms
}

// cellsToLevels reads flat row-major numbers, or sparse {x,y,level} objects,
// into a width*height grid. Sparse input that places no cell yields nil.
func cellsToLevels(rawCells []any, width, height int) []int {
	out := make([]int, width*height)
	if flatCells(rawCells) {
		for i := 0; i < len(out) && i < len(rawCells); i++ {
			out[i] = clampLevel(rawCells[i])
		}
		return out
	}

	wrote := false
	for _, raw := range rawCells {
		cell := asObject(raw)
		if cell == nil {
			continue
		}
		x := countAt("x", firstKey(cell, "x", "col", "column"))
		y := countAt("y", firstKey(cell, "y", "row"))
		if !x.ok || !y.ok || x.value >= int64(width) || y.value >= int64(height) {
			continue
		}
		out[y.value*int64(width)+x.value] = clampLevel(firstKey(cell, "level", "intensity", "value"))
		wrote = true
	}
	if !wrote {
		return nil
	}
	return out
}

// flatCells reports whether cells are plain numbers (or numeric strings),
// judged by the first element.
func flatCells(rawCells []any) bool {
	if len(rawCells) == 0 {
		return false
	}
	switch rawCells[0].(type) {
	case float64, json.Number, string, int, int64:
		return true
	default:
		return false
	}
}

// firstKey returns the value of the first key present with a non-null value.
func firstKey(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// resolveRadius prefers an explicit positive radiusNm, then the radius the
// grid geometry spans, then the caller's request.
func resolveRadius(root map[string]any, rows, cols int, geom GridGeom, req request) float64 {
	derived := math.Max(float64(cols)*geom.DxM, float64(rows)*geom.DyM) / (2 * metersPerNm)
	return firstOf(req.radiusNm,
		positiveNumberAt("root.radiusNm", root["radiusNm"]),
		when("geometry", derived, derived > 0 && !math.IsInf(derived, 0) && !math.IsNaN(derived)),
	)
}

func cellSizeNm(geom GridGeom) float64 {
	size := math.Max(geom.DxM, geom.DyM) / metersPerNm
	return firstOf(defaultCellSizeNm, when("geometry", size, size > 0 && !math.IsInf(size, 0)))
}

// latestFrame returns the frame with the greatest epoch, the later frame
// winning ties, or nil for no frames.
func latestFrame(frames []Frame) *Frame {
	idx := -1
	var best int64 = -1
	for i := range frames {
		if e := frames[i].Epoch(); e >= best {
			best, idx = e, i
		}
	}
	if idx < 0 {
		return nil
	}
	return &frames[idx]
}

func maxFrameLevel(frames []Frame) int64 {
	var m int64
	for _, f := range frames {
		m = max(m, derefOr(f.MaxLevel, 0))
	}
	return m
}

func decodedMax(levels []int) candidate[int64] {
	m := 0
	if len(levels) > 0 {
		m = slices.Max(levels)
	}
	return when("levels", int64(m), m > 0)
}

func layoutAt(source string, v any) candidate[Layout] {
	l, ok := normalizeLayout(v)
	return when(source, l, ok)
}
