package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Header keys set on every serialized grid.
const (
	HeaderVariant   = "variant"
	HeaderRegion    = "region"
	HeaderUpdatedAt = "updated_at"
	HeaderFilled    = "filled_cells"
)

// SerializeGrid marshals a canonical grid into an OutputEvent. The key is
// carried through from the source message so grids for the same feed land on
// the same partition.
func SerializeGrid(g Grid, key []byte) (OutputEvent, error) {
	value, err := json.Marshal(g)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("marshal grid: %w", err)
	}
	return OutputEvent{
		Key:   key,
		Value: value,
		Headers: map[string]string{
			HeaderVariant:   string(g.Variant),
			HeaderRegion:    string(g.Region),
			HeaderUpdatedAt: g.UpdatedAt().Format(time.RFC3339Nano),
			HeaderFilled:    strconv.Itoa(g.FilledCount()),
		},
	}, nil
}
