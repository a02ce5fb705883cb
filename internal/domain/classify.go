package domain

import "fmt"

// Variant tags which upstream payload shape a record was decoded from.
type Variant string

const (
	// VariantMultiFrame: frames carry their own grid descriptor (RLE cells,
	// layout, TRP, geometry).
	VariantMultiFrame Variant = "multi-frame"
	// VariantSingleGrid: one top-level grid descriptor shared by compressed frames.
	VariantSingleGrid Variant = "single-grid"
	// VariantLegacy: a flat levels/cells grid without frames.
	VariantLegacy Variant = "legacy"
)

// classified is a payload tagged with its variant plus the pieces each
// variant's reconciliation needs.
type classified struct {
	variant Variant
	root    map[string]any

	// frames holds the usable frames (multi-frame and single-grid only).
	frames []Frame
	// firstFrameGrid is the raw grid of the first listed frame (multi-frame).
	firstFrameGrid map[string]any
	// grid is the shared top-level grid (single-grid).
	grid map[string]any
}

// Classify reports which payload shape Normalize will reconcile payload as.
func Classify(payload any) (Variant, error) {
	c, err := classify(payload)
	if err != nil {
		return "", err
	}
	return c.variant, nil
}

// classify checks shapes in precedence order: per-frame grids, then a shared
// top-level grid with frames, then the legacy flat grid. A multi-frame
// payload whose frames are all unusable falls through to the next shape.
func classify(payload any) (classified, error) {
	root := asObject(payload)
	if root == nil {
		return classified{}, fmt.Errorf("%w: expected JSON object, got %T", ErrUnrecognizedPayload, payload)
	}

	framesRaw, _ := asArray(root["frames"])
	if len(framesRaw) > 0 {
		firstGrid := asObject(asObject(framesRaw[0])["grid"])
		if firstGrid != nil {
			if frames := parseMultiFrames(framesRaw); len(frames) > 0 {
				return classified{variant: VariantMultiFrame, root: root, frames: frames, firstFrameGrid: firstGrid}, nil
			}
		}
		if grid := asObject(root["grid"]); grid != nil {
			return classified{variant: VariantSingleGrid, root: root, frames: parseSingleGridFrames(framesRaw), grid: grid}, nil
		}
	}

	return classified{variant: VariantLegacy, root: root}, nil
}

// parseMultiFrames keeps frames that carry compressed data or RLE cells.
func parseMultiFrames(framesRaw []any) []Frame {
	frames := make([]Frame, 0, len(framesRaw))
	for _, raw := range framesRaw {
		obj := asObject(raw)
		if obj == nil {
			continue
		}
		grid := asObject(obj["grid"])
		data, _ := asString(obj["data"])
		rle, _ := asString(grid["cellsRle"])
		if data == "" && rle == "" {
			continue
		}

		f := Frame{
			T:             firstOf("", textAt("t", obj["t"]), textAt("receivedAt", obj["receivedAt"])),
			Data:          data,
			ReceivedAt:    firstOf("", textAt("receivedAt", obj["receivedAt"])),
			RawBytes:      firstPtr(countAt("rawBytes", obj["rawBytes"])),
			ZlibBytes:     firstPtr(countAt("zlibBytes", obj["zlibBytes"])),
			ReceiverMs:    firstPtr(countAt("receiverMs", obj["receiverMs"])),
			ItwsGenTimeMs: firstPtr(countAt("itwsGenTimeMs", obj["itwsGenTimeMs"])),
			ItwsExpTimeMs: firstPtr(countAt("itwsExpTimeMs", obj["itwsExpTimeMs"])),
			ProductID:     firstPtr(countAt("productId", obj["productId"])),
			ProductName:   firstOf("", textAt("productName", obj["productName"])),
			Site:          firstOf("", textAt("site", obj["site"])),
			Airport:       firstOf("", textAt("airport", obj["airport"])),
		}
		f.TEpochMs = frameEpoch(obj)
		f.MaxLevel = firstPtr(
			countAt("maxLevel", obj["maxLevel"]),
			countAt("grid.maxLevel", grid["maxLevel"]),
			countAt("grid.itwsMaxPrecipLevel", grid["itwsMaxPrecipLevel"]),
		)
		if grid != nil {
			f.Grid = parseFrameGrid(grid, rle)
		}
		frames = append(frames, f)
	}
	return frames
}

// frameEpoch resolves a frame's ordering timestamp: receive time, then
// generation times, then parsed RFC 3339 receipt and sample times.
func frameEpoch(obj map[string]any) *int64 {
	return firstPtr(
		countAt("receiverMs", obj["receiverMs"]),
		countAt("tEpochMs", obj["tEpochMs"]),
		countAt("itwsGenTimeMs", obj["itwsGenTimeMs"]),
		timeAt("receivedAt", obj["receivedAt"]),
		timeAt("t", obj["t"]),
	)
}

func parseFrameGrid(grid map[string]any, rle string) *FrameGrid {
	g := &FrameGrid{
		Rows:               firstPtr(positiveIntAt("rows", grid["rows"])),
		Cols:               firstPtr(positiveIntAt("cols", grid["cols"])),
		DimsSource:         firstOf("", textAt("dimsSource", grid["dimsSource"])),
		CellsEncoding:      firstOf("", textAt("cellsEncoding", grid["cellsEncoding"])),
		CellsRLE:           rle,
		CellsTotal:         firstPtr(positiveIntAt("cellsTotal", grid["cellsTotal"])),
		NonZeroCells:       firstPtr(countAt("nonZeroCells", grid["nonZeroCells"])),
		ItwsMaxPrecipLevel: firstPtr(countAt("itwsMaxPrecipLevel", grid["itwsMaxPrecipLevel"])),
	}
	if layout, ok := normalizeLayout(grid["layout"]); ok {
		g.Layout = layout
	}
	if raw := asObject(grid["rawDims"]); raw != nil {
		g.RawDims = &RawDims{
			NRows:    firstPtr(positiveIntAt("nrows", raw["nrows"])),
			NCols:    firstPtr(positiveIntAt("ncols", raw["ncols"])),
			GridMaxY: firstPtr(positiveIntAt("gridMaxY", raw["gridMaxY"])),
			GridMaxX: firstPtr(positiveIntAt("gridMaxX", raw["gridMaxX"])),
		}
	}
	g.TRP = parseTRP(asObject(grid["trp"]))
	g.Geom = parseGeom(asObject(grid["geom"]))
	return g
}

// parseTRP requires both coordinates to normalize.
func parseTRP(obj map[string]any) *TRP {
	lat := degreeAt("latDeg", obj["latDeg"], AxisLat)
	lon := degreeAt("lonDeg", obj["lonDeg"], AxisLon)
	if !lat.ok || !lon.ok {
		return nil
	}
	return &TRP{LatDeg: lat.value, LonDeg: lon.value}
}

// parseGeom requires all five geometry fields.
func parseGeom(obj map[string]any) *GridGeom {
	fields := [5]candidate[float64]{
		numberAt("xOffsetM", obj["xOffsetM"]),
		numberAt("yOffsetM", obj["yOffsetM"]),
		numberAt("dxM", obj["dxM"]),
		numberAt("dyM", obj["dyM"]),
		numberAt("rotationDeg", obj["rotationDeg"]),
	}
	for _, f := range fields {
		if !f.ok {
			return nil
		}
	}
	return &GridGeom{
		XOffsetM:    fields[0].value,
		YOffsetM:    fields[1].value,
		DxM:         fields[2].value,
		DyM:         fields[3].value,
		RotationDeg: fields[4].value,
	}
}

// parseSingleGridFrames keeps frames with compressed data. A non-positive
// tEpochMs is treated as absent.
func parseSingleGridFrames(framesRaw []any) []Frame {
	frames := make([]Frame, 0, len(framesRaw))
	for _, raw := range framesRaw {
		obj := asObject(raw)
		data, ok := asString(obj["data"])
		if !ok {
			continue
		}
		epoch := countAt("tEpochMs", obj["tEpochMs"])
		frames = append(frames, Frame{
			T:         firstOf("", textAt("t", obj["t"])),
			TEpochMs:  firstPtr(when(epoch.source, epoch.value, epoch.ok && epoch.value > 0)),
			MaxLevel:  firstPtr(countAt("maxLevel", obj["maxLevel"])),
			RawBytes:  firstPtr(countAt("rawBytes", obj["rawBytes"])),
			ZlibBytes: firstPtr(countAt("zlibBytes", obj["zlibBytes"])),
			Data:      data,
		})
	}
	return frames
}

func timeAt(source string, v any) candidate[int64] {
	ms, ok := parseTimeMs(v)
	return candidate[int64]{source: source, value: ms, ok: ok}
}
