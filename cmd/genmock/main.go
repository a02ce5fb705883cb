// Command genmock writes sample radar payloads, one per upstream schema, for
// local testing of the ingest endpoint and the pipeline. The newest frame of
// each payload encodes the same synthetic storm cell, so all three normalize
// to the same levels.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -rows 64 -cols 64
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/wx-radar-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

var baseTime = time.Date(2024, time.June, 1, 21, 30, 0, 0, time.UTC)

// site is the radar the fixtures pretend to come from.
var site = struct {
	id      string
	airport string
	lat     float64
	lon     float64
}{id: "TDFW", airport: "DFW", lat: 32.8968, lon: -97.0380}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "directory to write payload fixtures to")
	rows := flag.Int("rows", 64, "grid rows")
	cols := flag.Int("cols", 64, "grid columns")
	frames := flag.Int("frames", 3, "frames per multi-frame payload")
	flag.Parse()

	if *outDir == "" || *rows <= 0 || *cols <= 0 || *frames <= 0 {
		flag.Usage()
		return fmt.Errorf("missing or invalid flags: -out, -rows, -cols, -frames")
	}

	clock := clockwork.NewFakeClockAt(baseTime)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	multi, err := multiFramePayload(clock, *rows, *cols, *frames)
	if err != nil {
		return err
	}
	single, err := singleGridPayload(clock, *rows, *cols, *frames)
	if err != nil {
		return err
	}
	legacy := legacyPayload(clock, *rows, *cols, *frames)

	for name, payload := range map[string]any{
		"radar_multi_frame.json": multi,
		"radar_single_grid.json": single,
		"radar_legacy.json":      legacy,
	} {
		path := filepath.Join(*outDir, name)
		if err := writeJSON(path, payload); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		log.Printf("wrote %s", path)
	}

	printStats(stormCell(*rows, *cols, *frames-1))
	return nil
}

// stormCell draws a circular cell whose core intensifies with step, drifting
// east one column per step.
func stormCell(rows, cols, step int) []int {
	levels := make([]int, rows*cols)
	cy := float64(rows) / 2
	cx := float64(cols)/3 + float64(step)
	radius := math.Max(2, float64(min(rows, cols))/4)
	for y := range rows {
		for x := range cols {
			d := math.Hypot(float64(y)-cy, float64(x)-cx) / radius
			if d >= 1 {
				continue
			}
			level := int(math.Ceil((1 - d) * float64(3+step)))
			levels[y*cols+x] = min(domain.MaxLevel, max(1, level))
		}
	}
	return levels
}

func maxLevel(levels []int) int {
	m := 0
	for _, l := range levels {
		m = max(m, l)
	}
	return m
}

func frameTimes(clock clockwork.Clock, frames int) []time.Time {
	out := make([]time.Time, frames)
	for i := range out {
		out[i] = clock.Now().Add(time.Duration(i-frames+1) * 2 * time.Minute)
	}
	return out
}

func multiFramePayload(clock clockwork.Clock, rows, cols, frames int) (map[string]any, error) {
	list := make([]any, 0, frames)
	for i, at := range frameTimes(clock, frames) {
		levels := stormCell(rows, cols, i)
		frame := map[string]any{
			"receiverMs":  at.UnixMilli(),
			"receivedAt":  at.Format(time.RFC3339),
			"productId":   9849,
			"productName": "Precip 5nm",
			"site":        site.id,
			"airport":     site.airport,
			"maxLevel":    maxLevel(levels),
			"grid": map[string]any{
				"rows":          rows,
				"cols":          cols,
				"dimsSource":    "header",
				"layout":        "row-major",
				"cellsEncoding": "rle",
				"cellsRle":      domain.EncodeRLE(levels),
				"trp":           map[string]any{"latDeg": site.lat, "lonDeg": site.lon},
				"geom": map[string]any{
					"xOffsetM":    -float64(cols) / 2 * 926,
					"yOffsetM":    -float64(rows) / 2 * 926,
					"dxM":         926,
					"dyM":         926,
					"rotationDeg": 0,
				},
			},
		}
		list = append(list, frame)
	}
	return map[string]any{
		"schema": "itws-frames-v2",
		"region": "CONUS",
		"frames": list,
	}, nil
}

func singleGridPayload(clock clockwork.Clock, rows, cols, frames int) (map[string]any, error) {
	list := make([]any, 0, frames)
	for i, at := range frameTimes(clock, frames) {
		levels := stormCell(rows, cols, i)
		data, err := domain.EncodeCompressedFrame(levels)
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i, err)
		}
		list = append(list, map[string]any{
			"t":        at.Format(time.RFC3339),
			"tEpochMs": at.UnixMilli(),
			"maxLevel": maxLevel(levels),
			"rawBytes": len(levels),
			"data":     data,
		})
	}
	return map[string]any{
		"updatedAtMs":  clock.Now().UnixMilli(),
		"region":       "CONUS",
		"site":         site.id,
		"center":       map[string]any{"lat": site.lat, "lon": site.lon},
		"dataEncoding": "zlib+base64",
		"grid": map[string]any{
			"rows": rows,
			"cols": cols,
			"trp":  map[string]any{"latDeg": site.lat, "lonDeg": site.lon},
			"geom": map[string]any{"dxM": 926, "dyM": 926},
		},
		"frames": list,
	}, nil
}

func legacyPayload(clock clockwork.Clock, rows, cols, frames int) map[string]any {
	return map[string]any{
		"updatedAtMs": clock.Now().UnixMilli(),
		"region":      "CONUS",
		"site":        site.id,
		"center":      map[string]any{"lat": site.lat, "lon": site.lon},
		"radiusNm":    80,
		"cellSizeNm":  0.5,
		"width":       cols,
		"height":      rows,
		"levels":      stormCell(rows, cols, frames-1),
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(levels []int) {
	counts := make([]int, domain.MaxLevel+1)
	for _, l := range levels {
		counts[l]++
	}
	fmt.Println("\n=== Latest Frame Level Distribution ===")
	for l, c := range counts {
		fmt.Printf("  level %d: %d cells\n", l, c)
	}
}
