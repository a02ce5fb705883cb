package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Region is the ITWS product region a grid belongs to.
type Region string

const (
	RegionCONUS  Region = "CONUS"
	RegionAlaska Region = "ALASKA"
	RegionCarib  Region = "CARIB"
	RegionGuam   Region = "GUAM"
	RegionHawaii Region = "HAWAII"
)

// Layout is the cell ordering of a grid.
type Layout string

const (
	LayoutRowMajor    Layout = "row-major"
	LayoutColumnMajor Layout = "column-major"
)

// Reflectivity level bounds. 0 means no precipitation.
const (
	MinLevel = 0
	MaxLevel = 6
)

const (
	metersPerNm       = 1852.0
	defaultCellSizeNm = 0.5
	defaultRadiusNm   = 80.0
	defaultCellM      = metersPerNm * defaultCellSizeNm
)

// LatLon is a WGS-84 position in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TRP is the target reference point a local metric grid is anchored on.
type TRP struct {
	LatDeg float64 `json:"latDeg"`
	LonDeg float64 `json:"lonDeg"`
}

// GridGeom places a grid relative to its TRP, in meters.
type GridGeom struct {
	XOffsetM    float64 `json:"xOffsetM"`
	YOffsetM    float64 `json:"yOffsetM"`
	DxM         float64 `json:"dxM"`
	DyM         float64 `json:"dyM"`
	RotationDeg float64 `json:"rotationDeg"`
}

// GridOrigin is the offset of cell (0,0) from the TRP.
type GridOrigin struct {
	XOffsetM float64 `json:"xOffsetM"`
	YOffsetM float64 `json:"yOffsetM"`
	Mode     string  `json:"mode,omitempty"`
}

// GridInfo summarizes the decoded grid geometry for renderers.
type GridInfo struct {
	Rows        int        `json:"rows"`
	Cols        int        `json:"cols"`
	DxM         float64    `json:"dxM"`
	DyM         float64    `json:"dyM"`
	RotationDeg float64    `json:"rotationDeg"`
	TRP         TRP        `json:"trp"`
	Origin      GridOrigin `json:"origin"`
}

// Grid is the canonical reflectivity record produced by Normalize,
// independent of which upstream schema delivered it.
type Grid struct {
	UpdatedAtMs int64   `json:"updatedAtMs"`
	Region      Region  `json:"region"`
	Center      LatLon  `json:"center"`
	RadiusNm    float64 `json:"radiusNm"`
	CellSizeNm  float64 `json:"cellSizeNm"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Levels      []int   `json:"levels"`

	ReceivedAt  string `json:"receivedAt,omitempty"`
	ProductID   *int64 `json:"productId,omitempty"`
	ProductName string `json:"productName,omitempty"`
	Site        string `json:"site,omitempty"`
	Airport     string `json:"airport,omitempty"`

	Rows           int       `json:"rows,omitempty"`
	Cols           int       `json:"cols,omitempty"`
	Compression    string    `json:"compression,omitempty"`
	MaxPrecipLevel *int64    `json:"maxPrecipLevel,omitempty"`
	FilledCells    *int64    `json:"filledCells,omitempty"`
	Layout         Layout    `json:"layout,omitempty"`
	Cells          []int     `json:"cells,omitempty"`
	CellsTruncated bool      `json:"cellsTruncated,omitempty"`
	TRP            *TRP      `json:"trp,omitempty"`
	GridGeom       *GridGeom `json:"gridGeom,omitempty"`

	Schema         string    `json:"schema,omitempty"`
	LevelsEncoding string    `json:"levelsEncoding,omitempty"`
	DataEncoding   string    `json:"dataEncoding,omitempty"`
	MaxLevelAll    *int64    `json:"maxLevelAll,omitempty"`
	ObservedLevels []int     `json:"observedLevels,omitempty"`
	Grid           *GridInfo `json:"grid,omitempty"`
	Frames         []Frame   `json:"frames,omitempty"`

	// Variant records which upstream schema produced the grid.
	Variant Variant `json:"variant"`
}

// Validate reports the first canonical-grid invariant the record violates.
func (g Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: non-positive dimensions %dx%d", ErrInvalidGrid, g.Width, g.Height)
	}
	if len(g.Levels) != g.Width*g.Height {
		return fmt.Errorf("%w: %d levels for %dx%d grid", ErrInvalidGrid, len(g.Levels), g.Width, g.Height)
	}
	for i, l := range g.Levels {
		if l < MinLevel || l > MaxLevel {
			return fmt.Errorf("%w: level %d at cell %d out of range", ErrInvalidGrid, l, i)
		}
	}
	if g.Center.Lat < -90 || g.Center.Lat > 90 || g.Center.Lon < -180 || g.Center.Lon > 180 {
		return fmt.Errorf("%w: center %.6f,%.6f out of range", ErrInvalidGrid, g.Center.Lat, g.Center.Lon)
	}
	if !(g.RadiusNm > 0) || !(g.CellSizeNm > 0) {
		return fmt.Errorf("%w: radius %g nm / cell size %g nm must be positive", ErrInvalidGrid, g.RadiusNm, g.CellSizeNm)
	}
	if g.UpdatedAtMs < 0 {
		return fmt.Errorf("%w: negative updatedAtMs %d", ErrInvalidGrid, g.UpdatedAtMs)
	}
	prev := 0
	for _, l := range g.ObservedLevels {
		if l < 1 || l > MaxLevel || l <= prev {
			return fmt.Errorf("%w: observed levels %v not strictly ascending in [1,6]", ErrInvalidGrid, g.ObservedLevels)
		}
		prev = l
	}
	return nil
}

// FilledCount returns the number of cells with precipitation.
func (g Grid) FilledCount() int {
	return countFilled(g.Levels)
}

// UpdatedAt returns UpdatedAtMs as a UTC time.
func (g Grid) UpdatedAt() time.Time {
	return time.UnixMilli(g.UpdatedAtMs).UTC()
}

// Clone returns a deep copy so callers never share slices or pointed-to
// values with the original.
func (g Grid) Clone() Grid {
	out := g
	out.Levels = slices.Clone(g.Levels)
	out.Cells = slices.Clone(g.Cells)
	out.ObservedLevels = slices.Clone(g.ObservedLevels)
	out.ProductID = clonePtr(g.ProductID)
	out.MaxPrecipLevel = clonePtr(g.MaxPrecipLevel)
	out.FilledCells = clonePtr(g.FilledCells)
	out.MaxLevelAll = clonePtr(g.MaxLevelAll)
	out.TRP = clonePtr(g.TRP)
	out.GridGeom = clonePtr(g.GridGeom)
	out.Grid = clonePtr(g.Grid)
	if g.Frames != nil {
		out.Frames = make([]Frame, len(g.Frames))
		for i, f := range g.Frames {
			out.Frames[i] = f.clone()
		}
	}
	return out
}

func (f Frame) clone() Frame {
	out := f
	out.TEpochMs = clonePtr(f.TEpochMs)
	out.MaxLevel = clonePtr(f.MaxLevel)
	out.RawBytes = clonePtr(f.RawBytes)
	out.ZlibBytes = clonePtr(f.ZlibBytes)
	out.ReceiverMs = clonePtr(f.ReceiverMs)
	out.ItwsGenTimeMs = clonePtr(f.ItwsGenTimeMs)
	out.ItwsExpTimeMs = clonePtr(f.ItwsExpTimeMs)
	out.ProductID = clonePtr(f.ProductID)
	if f.Grid != nil {
		g := *f.Grid
		g.Rows = clonePtr(f.Grid.Rows)
		g.Cols = clonePtr(f.Grid.Cols)
		g.CellsTotal = clonePtr(f.Grid.CellsTotal)
		g.NonZeroCells = clonePtr(f.Grid.NonZeroCells)
		g.ItwsMaxPrecipLevel = clonePtr(f.Grid.ItwsMaxPrecipLevel)
		g.TRP = clonePtr(f.Grid.TRP)
		g.Geom = clonePtr(f.Grid.Geom)
		if f.Grid.RawDims != nil {
			d := RawDims{
				NRows:    clonePtr(f.Grid.RawDims.NRows),
				NCols:    clonePtr(f.Grid.RawDims.NCols),
				GridMaxY: clonePtr(f.Grid.RawDims.GridMaxY),
				GridMaxX: clonePtr(f.Grid.RawDims.GridMaxX),
			}
			g.RawDims = &d
		}
		out.Grid = &g
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// RawEvent represents an unprocessed radar payload message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized canonical grid destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Sentinel errors. Decoders wrap these with positional detail.
var (
	ErrMalformedLevel      = errors.New("invalid RLE level token")
	ErrMalformedCount      = errors.New("invalid RLE count token")
	ErrRLEOverrun          = errors.New("RLE overruns grid")
	ErrLengthMismatch      = errors.New("length mismatch")
	ErrDimensionMismatch   = errors.New("RLE dimensions mismatch")
	ErrMissingFrameData    = errors.New("frame is missing both compressed data and RLE cells")
	ErrBadEncoding         = errors.New("bad frame encoding")
	ErrUnrecognizedPayload = errors.New("unrecognized radar payload")
	ErrInvalidGrid         = errors.New("invalid canonical grid")
)
