// Package domain decodes upstream weather-radar telemetry into one canonical
// reflectivity grid.
//
// # Data Sources
//
// Three upstream feeds deliver JSON in incompatible shapes:
//
//	Multi-frame history (STARS-style ITWS relay):
//	  { updatedAtMs, levels:[1,3], frames:[{ receiverMs, grid:{ rows, cols,
//	    cellsEncoding:"rle", cellsRle:"0,120 3,4 ...", trp:{latDeg,lonDeg},
//	    geom:{xOffsetM,yOffsetM,dxM,dyM,rotationDeg}, rawDims:{gridMaxY,gridMaxX} }}, ...] }
//
//	Single-grid forecast history:
//	  { schema, grid:{ rows, cols, dxM, dyM, trp, origin }, frames:[{ tEpochMs, data:"<zlib+base64>" }] }
//
//	Legacy flat grid:
//	  { center:{lat,lon}, radiusNm, cellSizeNm, width, height, levels:[...] }
//	  or cells:[...] as flat row-major numbers or sparse {x,y,level} objects.
//
// [Classify] tags a payload with its [Variant]; [Normalizer.Normalize]
// dispatches to one reconciliation function per variant.
//
// # Encodings
//
// Run-length text: whitespace-separated "<level>,<count>" tokens, both
// unsigned decimal. Runs are written row-major and must cover the grid
// exactly. See [DecodeRLE].
//
// Compressed frames: base64 of a zlib (or gzip) stream whose inflated bytes
// are one level per cell. See [DecodeCompressedFrame].
//
// Reflectivity levels are integers 0–6 (0 = no precipitation). Every decoded
// value is clamped into that range.
//
// # Coordinates
//
// Some feeds send latitude/longitude pre-scaled to integer micro-, milli-,
// centi- or deci-microdegrees. [NormalizeDegree] detects this by range:
//
//	40700000  (lat) → 40.7   via 1e6
//	-73900    (lon) → -73.9  via 1e3
//
// # Failure Policy
//
// Frames that fail to decode are skipped in favour of older frames. When no
// frame decodes, or the single frame of a schema without history fails, the
// grid degrades to all zeros so region/center/radius metadata still reach
// the caller. Only an unrecognizable payload is reported as an error
// ([ErrUnrecognizedPayload]).
package domain
