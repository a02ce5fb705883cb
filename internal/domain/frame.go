package domain

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
)

// Codec names the decoder a frame went through.
type Codec string

const (
	CodecRLE        Codec = "rle"
	CodecCompressed Codec = "zlib+base64"
	CodecNone       Codec = ""
)

// RawDims are the raw dimension fields some feeds attach to a frame grid.
// GridMaxY/GridMaxX act as a fallback row/column pair.
type RawDims struct {
	NRows    *int `json:"nrows,omitempty"`
	NCols    *int `json:"ncols,omitempty"`
	GridMaxY *int `json:"gridMaxY,omitempty"`
	GridMaxX *int `json:"gridMaxX,omitempty"`
}

// FrameGrid is the per-frame grid descriptor of multi-frame payloads.
type FrameGrid struct {
	Rows               *int      `json:"rows,omitempty"`
	Cols               *int      `json:"cols,omitempty"`
	DimsSource         string    `json:"dimsSource,omitempty"`
	RawDims            *RawDims  `json:"rawDims,omitempty"`
	Layout             Layout    `json:"layout,omitempty"`
	TRP                *TRP      `json:"trp,omitempty"`
	Geom               *GridGeom `json:"geom,omitempty"`
	CellsEncoding      string    `json:"cellsEncoding,omitempty"`
	CellsRLE           string    `json:"cellsRle,omitempty"`
	CellsTotal         *int      `json:"cellsTotal,omitempty"`
	NonZeroCells       *int64    `json:"nonZeroCells,omitempty"`
	ItwsMaxPrecipLevel *int64    `json:"itwsMaxPrecipLevel,omitempty"`
}

// Frame is one time-stamped sample within a multi-frame payload.
type Frame struct {
	T             string     `json:"t,omitempty"`
	TEpochMs      *int64     `json:"tEpochMs,omitempty"`
	MaxLevel      *int64     `json:"maxLevel,omitempty"`
	RawBytes      *int64     `json:"rawBytes,omitempty"`
	ZlibBytes     *int64     `json:"zlibBytes,omitempty"`
	Data          string     `json:"data,omitempty"`
	ReceiverMs    *int64     `json:"receiverMs,omitempty"`
	ReceivedAt    string     `json:"receivedAt,omitempty"`
	ItwsGenTimeMs *int64     `json:"itwsGenTimeMs,omitempty"`
	ItwsExpTimeMs *int64     `json:"itwsExpTimeMs,omitempty"`
	ProductID     *int64     `json:"productId,omitempty"`
	ProductName   string     `json:"productName,omitempty"`
	Site          string     `json:"site,omitempty"`
	Airport       string     `json:"airport,omitempty"`
	Grid          *FrameGrid `json:"grid,omitempty"`
}

// Epoch is the frame's ordering timestamp in epoch millis, 0 when unknown.
func (f Frame) Epoch() int64 {
	if f.TEpochMs != nil {
		return *f.TEpochMs
	}
	return 0
}

func (f Frame) cellsRLE() string {
	if f.Grid == nil {
		return ""
	}
	return f.Grid.CellsRLE
}

// Dims is a row/column pair. Zero means absent.
type Dims struct {
	Rows int
	Cols int
}

func (d Dims) present() bool { return d.Rows > 0 && d.Cols > 0 }
func (d Dims) cells() int64  { return int64(d.Rows) * int64(d.Cols) }

// DecodedFrame is the grid recovered from one frame.
type DecodedFrame struct {
	Rows   int
	Cols   int
	Levels []int
	Codec  Codec
}

// ResolveDimensions picks the dimensions an RLE payload of total cells is
// decoded with:
//
//  1. declared rows/cols (missing halves taken from fallback) if their
//     product equals total;
//  2. the maximum-dimension hint if its product equals total.
//
// Anything else is ErrDimensionMismatch naming the total and both pairs.
func ResolveDimensions(declared, hint, fallback Dims, total int) (Dims, error) {
	use := Dims{
		Rows: firstOf(fallback.Rows, candidate[int]{source: "declared.rows", value: declared.Rows, ok: declared.Rows > 0}),
		Cols: firstOf(fallback.Cols, candidate[int]{source: "declared.cols", value: declared.Cols, ok: declared.Cols > 0}),
	}
	if use.present() && use.cells() == int64(total) {
		return use, nil
	}
	if hint.present() && hint.cells() == int64(total) {
		return hint, nil
	}
	return Dims{}, fmt.Errorf("%w: decoded=%d rows=%d cols=%d gridMaxY=%d gridMaxX=%d",
		ErrDimensionMismatch, total, use.Rows, use.Cols, hint.Rows, hint.Cols)
}

// DecodeFrame decodes a frame's compressed data when present, otherwise its
// RLE cells. Compressed frames carry no cell total, so they are decoded with
// the fallback dimensions.
func DecodeFrame(f Frame, fallbackRows, fallbackCols int) (DecodedFrame, error) {
	fallback := Dims{Rows: max(1, fallbackRows), Cols: max(1, fallbackCols)}

	if f.Data != "" {
		levels, err := DecodeCompressedFrame(f.Data, fallback.Rows, fallback.Cols)
		if err != nil {
			return DecodedFrame{}, err
		}
		return DecodedFrame{Rows: fallback.Rows, Cols: fallback.Cols, Levels: levels, Codec: CodecCompressed}, nil
	}

	text := f.cellsRLE()
	if text == "" {
		return DecodedFrame{}, ErrMissingFrameData
	}

	total, err := RLETotal(text)
	if err != nil {
		return DecodedFrame{}, err
	}
	var declared, hint Dims
	if g := f.Grid; g != nil {
		declared = Dims{Rows: derefOr(g.Rows, 0), Cols: derefOr(g.Cols, 0)}
		if g.RawDims != nil {
			hint = Dims{Rows: derefOr(g.RawDims.GridMaxY, 0), Cols: derefOr(g.RawDims.GridMaxX, 0)}
		}
	}
	dims, err := ResolveDimensions(declared, hint, fallback, total)
	if err != nil {
		return DecodedFrame{}, err
	}
	levels, err := DecodeRLE(text, dims.Rows, dims.Cols)
	if err != nil {
		return DecodedFrame{}, err
	}
	return DecodedFrame{Rows: dims.Rows, Cols: dims.Cols, Levels: levels, Codec: CodecRLE}, nil
}

// Selection is the outcome of SelectFrame.
type Selection struct {
	Frame   Frame
	Index   int // position of Frame in the input list
	Decoded DecodedFrame
	Skipped int // frames that failed to decode before the winner
	// Fallback is set when no frame decoded; Decoded is then a zero grid of
	// the fallback dimensions and Frame is the first input frame.
	Fallback bool
}

// SelectFrame decodes the most recent frame that decodes cleanly. Frames are
// ordered by epoch descending, ties going to the later list position; each
// failure is logged and the next candidate tried. A nil logger uses
// slog.Default.
func SelectFrame(frames []Frame, fallbackRows, fallbackCols int, logger *slog.Logger) Selection {
	if logger == nil {
		logger = slog.Default()
	}
	order := make([]int, len(frames))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(frames[b].Epoch(), frames[a].Epoch()); c != 0 {
			return c
		}
		return cmp.Compare(b, a)
	})

	skipped := 0
	for _, idx := range order {
		decoded, err := DecodeFrame(frames[idx], fallbackRows, fallbackCols)
		if err != nil {
			logger.Warn("skipping undecodable radar frame",
				"frame_index", idx,
				"epoch_ms", frames[idx].Epoch(),
				"error", err,
			)
			skipped++
			continue
		}
		return Selection{Frame: frames[idx], Index: idx, Decoded: decoded, Skipped: skipped}
	}

	rows, cols := zeroGridDims(max(1, fallbackRows), max(1, fallbackCols))
	sel := Selection{
		Decoded:  DecodedFrame{Rows: rows, Cols: cols, Levels: make([]int, rows*cols), Codec: CodecNone},
		Skipped:  skipped,
		Fallback: true,
	}
	if len(frames) > 0 {
		sel.Frame = frames[0]
	}
	return sel
}

func derefOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
