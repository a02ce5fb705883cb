package domain

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// DecodeCompressedFrame decodes base64 text, inflates it (zlib, or gzip when
// the gzip magic is present) and maps each byte to a level in [0,6]. The
// inflated length must be exactly rows*cols.
func DecodeCompressedFrame(b64 string, rows, cols int) ([]int, error) {
	if err := checkDims(rows, cols); err != nil {
		return nil, err
	}
	compressed, err := decodeBase64(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrBadEncoding, err)
	}

	zr, err := newInflater(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrBadEncoding, err)
	}
	defer zr.Close()

	expected := rows * cols
	// Read one byte past the grid so an oversized stream is reported as a
	// length mismatch without inflating all of it.
	raw, err := io.ReadAll(io.LimitReader(zr, int64(expected)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrBadEncoding, err)
	}
	if len(raw) != expected {
		return nil, fmt.Errorf("bad length %d, expected %d: %w", len(raw), expected, ErrLengthMismatch)
	}

	levels := make([]int, expected)
	for i, b := range raw {
		levels[i] = clampInt(int64(b))
	}
	return levels, nil
}

// EncodeCompressedFrame is the inverse of DecodeCompressedFrame: one byte per
// level, zlib-compressed, standard base64.
func EncodeCompressedFrame(levels []int) (string, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	raw := make([]byte, len(levels))
	for i, l := range levels {
		raw[i] = byte(clampInt(int64(l)))
	}
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compress frame: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress frame: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func newInflater(compressed []byte) (io.ReadCloser, error) {
	if len(compressed) >= 2 && compressed[0] == 0x1f && compressed[1] == 0x8b {
		return gzip.NewReader(bytes.NewReader(compressed))
	}
	return zlib.NewReader(bytes.NewReader(compressed))
}

// decodeBase64 accepts padded or unpadded standard base64 and ignores
// embedded whitespace.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, s)
	if strings.HasSuffix(s, "=") || len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
