// Command validate normalizes radar payload fixtures and checks the results:
// every file must decode and classify, produce a grid that satisfies the
// canonical invariants, and survive serialization unchanged. With -consistent
// all files must also normalize to the same levels, which holds for the
// fixtures written by genmock.
//
// Usage:
//
//	go run ./cmd/validate -consistent data/mock/*.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/wx-radar-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// result is one fixture after normalization.
type result struct {
	path    string
	payload any
	variant domain.Variant
	grid    domain.Grid
	report  domain.Report
	err     error
}

func main() {
	consistent := flag.Bool("consistent", false, "require all payloads to normalize to the same levels")
	lat := flag.Float64("lat", 0, "requested center latitude")
	lon := flag.Float64("lon", 0, "requested center longitude")
	radius := flag.Float64("radius-nm", 80, "requested radius in nautical miles")
	verbose := flag.Bool("v", false, "log normalizer warnings to stderr")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var out io.Writer = io.Discard
	if *verbose {
		out = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if code := run(flag.Args(), domain.LatLon{Lat: *lat, Lon: *lon}, *radius, *consistent, logger); code != 0 {
		os.Exit(code)
	}
}

func run(paths []string, center domain.LatLon, radiusNm float64, consistent bool, logger *slog.Logger) int {
	// Payloads without a timestamp are stamped with this, so reruns agree.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 21, 30, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Println("=== Radar Payload Validation ===")
	fmt.Println()

	normalizer := domain.NewNormalizer(logger)
	results := make([]result, 0, len(paths))
	for _, path := range paths {
		results = append(results, normalizeFile(normalizer, path, center, radiusNm))
	}

	phases := []*phase{
		validateDecoding(results),
		validateGrids(results),
		validateSerialization(results),
	}
	if consistent {
		phases = append(phases, validateConsistency(results))
	}

	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	for _, r := range results {
		if r.err != nil {
			continue
		}
		fmt.Printf("  %-32s %-12s %4dx%-4d filled=%-6d skipped=%d\n",
			filepath.Base(r.path), r.variant, r.grid.Width, r.grid.Height, r.grid.FilledCount(), r.report.FramesSkipped)
	}

	allPassed := true
	for _, p := range phases {
		if p.passed() {
			continue
		}
		allPassed = false
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("\033[31mVALIDATION FAILED\033[0m")
		return 1
	}
	fmt.Println("\033[32mALL CHECKS PASSED\033[0m")
	return 0
}

func normalizeFile(n *domain.Normalizer, path string, center domain.LatLon, radiusNm float64) result {
	r := result{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		r.err = fmt.Errorf("read: %w", err)
		return r
	}
	r.payload, err = domain.DecodePayload(data)
	if err != nil {
		r.err = err
		return r
	}
	r.variant, err = domain.Classify(r.payload)
	if err != nil {
		r.err = err
		return r
	}
	r.grid, r.report, err = n.NormalizeReport(r.payload, center, &radiusNm)
	if err != nil {
		r.err = err
	}
	return r
}

func validateDecoding(results []result) *phase {
	p := &phase{name: "Payload decoding"}
	for _, r := range results {
		if r.err != nil {
			p.errorf("%s: %v", r.path, r.err)
			continue
		}
		if r.report.Variant != r.variant {
			p.errorf("%s: classified as %s but normalized as %s", r.path, r.variant, r.report.Variant)
		}
	}
	return p
}

func validateGrids(results []result) *phase {
	p := &phase{name: "Canonical grid invariants"}
	for _, r := range results {
		if r.err != nil {
			continue
		}
		if err := r.grid.Validate(); err != nil {
			p.errorf("%s: %v", r.path, err)
		}
		if r.report.ZeroGrid {
			p.errorf("%s: no cell data recovered, grid is empty", r.path)
		}
		if r.report.FramesSkipped > 0 {
			p.errorf("%s: %d frames failed to decode", r.path, r.report.FramesSkipped)
		}
		if r.grid.FilledCells != nil && r.variant != domain.VariantMultiFrame && *r.grid.FilledCells != int64(r.grid.FilledCount()) {
			p.errorf("%s: filledCells=%d but %d cells have precipitation", r.path, *r.grid.FilledCells, r.grid.FilledCount())
		}
	}
	return p
}

func validateSerialization(results []result) *phase {
	p := &phase{name: "Serialization round-trip"}
	for _, r := range results {
		if r.err != nil {
			continue
		}
		ev, err := domain.SerializeGrid(r.grid, nil)
		if err != nil {
			p.errorf("%s: %v", r.path, err)
			continue
		}
		var back domain.Grid
		if err := json.Unmarshal(ev.Value, &back); err != nil {
			p.errorf("%s: unmarshal: %v", r.path, err)
			continue
		}
		if diff := cmp.Diff(r.grid, back, cmpopts.EquateEmpty()); diff != "" {
			p.errorf("%s: grid changed after serialization (-want +got):\n%s", r.path, diff)
		}
		if ev.Headers[domain.HeaderVariant] != string(r.variant) {
			p.errorf("%s: variant header %q", r.path, ev.Headers[domain.HeaderVariant])
		}
	}
	return p
}

func validateConsistency(results []result) *phase {
	p := &phase{name: "Cross-schema consistency"}
	var ref *result
	for i := range results {
		r := &results[i]
		if r.err != nil {
			continue
		}
		if ref == nil {
			ref = r
			continue
		}
		if r.grid.Width != ref.grid.Width || r.grid.Height != ref.grid.Height {
			p.errorf("%s: %dx%d grid, %s has %dx%d", r.path, r.grid.Width, r.grid.Height, ref.path, ref.grid.Width, ref.grid.Height)
			continue
		}
		if !slices.Equal(r.grid.Levels, ref.grid.Levels) {
			p.errorf("%s: levels differ from %s (%d vs %d filled)", r.path, ref.path, r.grid.FilledCount(), ref.grid.FilledCount())
		}
	}
	return p
}
