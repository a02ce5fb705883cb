package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRLE(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		rows, cols int
		expected   []int
	}{
		{"basic runs", "0,4 3,2", 2, 3, []int{0, 0, 0, 0, 3, 3}},
		{"single run", "5,4", 2, 2, []int{5, 5, 5, 5}},
		{"level clamped", "9,2 0,1", 1, 3, []int{6, 6, 0}},
		{"huge level saturates", "99999999999999999999,1", 1, 1, []int{6}},
		{"zero count run", "4,0 1,2", 1, 2, []int{1, 1}},
		{"tabs and newlines separate", "1,1\t2,1\n3,1\r\n", 1, 3, []int{1, 2, 3}},
		{"leading and trailing space", "  2,2  ", 1, 2, []int{2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels, err := DecodeRLE(tt.text, tt.rows, tt.cols)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, levels)
		})
	}
}

func TestDecodeRLE_Errors(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		rows, cols int
		target     error
		msg        string
	}{
		{"bad level", "0,4 x,2", 2, 3, ErrMalformedLevel, "at index 4"},
		{"missing level", ",3", 1, 3, ErrMalformedLevel, "at index 0"},
		{"missing comma", "12", 1, 3, ErrMalformedCount, "at index 2"},
		{"bad count", "1,2x", 1, 3, ErrMalformedCount, "at index 3"},
		{"empty count", "1, 2,2", 1, 3, ErrMalformedCount, "at index 2"},
		{"overrun", "1,5", 2, 2, ErrRLEOverrun, "pos=0 count=5 end=5 expected=4"},
		{"shortfall", "1,3", 2, 2, ErrLengthMismatch, "decoded=3 expected=4"},
		{"empty text", "", 1, 1, ErrLengthMismatch, "decoded=0 expected=1"},
		{"non-positive rows", "1,1", 0, 1, ErrDimensionMismatch, "rows=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRLE(tt.text, tt.rows, tt.cols)
			require.ErrorIs(t, err, tt.target)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRLETotal(t *testing.T) {
	total, err := RLETotal("0,4 3,2")
	require.NoError(t, err)
	assert.Equal(t, 6, total)

	total, err = RLETotal("   ")
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	_, err = RLETotal("1,a")
	require.ErrorIs(t, err, ErrMalformedCount)
}

func TestEncodeRLE(t *testing.T) {
	t.Run("groups runs", func(t *testing.T) {
		assert.Equal(t, "0,4 3,2", EncodeRLE([]int{0, 0, 0, 0, 3, 3}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, EncodeRLE(nil))
	})

	t.Run("decodes back", func(t *testing.T) {
		levels := []int{0, 1, 1, 2, 6, 6, 6, 0, 0}
		decoded, err := DecodeRLE(EncodeRLE(levels), 3, 3)
		require.NoError(t, err)
		assert.Equal(t, levels, decoded)
	})
}
