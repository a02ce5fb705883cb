package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// maxRunCount caps a parsed count so accumulation cannot overflow. Any count
// this large overruns every grid the decoder accepts.
const maxRunCount = 1 << 40

// rleRun is one "<level>,<count>" token.
type rleRun struct {
	level int64
	count int64
}

// rleScanner walks RLE text token by token. Bytes <= 0x20 separate tokens.
type rleScanner struct {
	text string
	i    int
}

func isRLESpace(c byte) bool { return c <= ' ' }
func isDigit(c byte) bool    { return c >= '0' && c <= '9' }

// next returns the next run; ok is false at end of input.
func (s *rleScanner) next() (run rleRun, ok bool, err error) {
	n := len(s.text)
	for s.i < n && isRLESpace(s.text[s.i]) {
		s.i++
	}
	if s.i >= n {
		return rleRun{}, false, nil
	}

	sawLevel := false
	for s.i < n {
		c := s.text[s.i]
		if c == ',' {
			if !sawLevel {
				break
			}
			s.i++
			break
		}
		if !isDigit(c) {
			return rleRun{}, false, fmt.Errorf("%w at index %d", ErrMalformedLevel, s.i)
		}
		sawLevel = true
		if run.level <= MaxLevel {
			run.level = run.level*10 + int64(c-'0')
		}
		s.i++
	}
	if !sawLevel {
		return rleRun{}, false, fmt.Errorf("%w at index %d", ErrMalformedLevel, s.i)
	}

	sawCount := false
	for s.i < n {
		c := s.text[s.i]
		if isRLESpace(c) {
			break
		}
		if !isDigit(c) {
			return rleRun{}, false, fmt.Errorf("%w at index %d", ErrMalformedCount, s.i)
		}
		sawCount = true
		if run.count < maxRunCount {
			run.count = run.count*10 + int64(c-'0')
		}
		s.i++
	}
	if !sawCount {
		return rleRun{}, false, fmt.Errorf("%w at index %d", ErrMalformedCount, s.i)
	}
	return run, true, nil
}

// RLETotal returns the number of cells the RLE text describes without
// materializing them. It fails on the same malformed tokens as DecodeRLE.
func RLETotal(text string) (int, error) {
	s := rleScanner{text: text}
	var total int64
	for {
		run, ok, err := s.next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return int(total), nil
		}
		total += run.count
		if total > maxRunCount {
			total = maxRunCount
		}
	}
}

// DecodeRLE expands "<level>,<count>" runs into a row-major grid of
// rows*cols levels, each clamped into [0,6]. The runs must cover the grid
// exactly: a run past the end is ErrRLEOverrun, a short total is
// ErrLengthMismatch.
func DecodeRLE(text string, rows, cols int) ([]int, error) {
	if err := checkDims(rows, cols); err != nil {
		return nil, err
	}
	expected := int64(rows) * int64(cols)
	out := make([]int, expected)
	s := rleScanner{text: text}
	var pos int64
	for {
		run, ok, err := s.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		end := pos + run.count
		if end > expected {
			return nil, fmt.Errorf("%w: pos=%d count=%d end=%d expected=%d", ErrRLEOverrun, pos, run.count, end, expected)
		}
		if run.level != 0 {
			level := clampInt(run.level)
			for i := pos; i < end; i++ {
				out[i] = level
			}
		}
		pos = end
	}
	if pos != expected {
		return nil, fmt.Errorf("RLE %w: decoded=%d expected=%d", ErrLengthMismatch, pos, expected)
	}
	return out, nil
}

// EncodeRLE is the inverse of DecodeRLE for levels already in [0,6].
func EncodeRLE(levels []int) string {
	var b strings.Builder
	for i := 0; i < len(levels); {
		j := i + 1
		for j < len(levels) && levels[j] == levels[i] {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(clampInt(int64(levels[i]))))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(j - i))
		i = j
	}
	return b.String()
}
