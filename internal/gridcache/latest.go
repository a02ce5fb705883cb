package gridcache

import (
	"sync"
	"time"

	"github.com/couchcryptid/wx-radar-etl/internal/domain"
)

// Snapshot is the most recent grid accepted by the service.
type Snapshot struct {
	ID       string
	Grid     domain.Grid
	StoredAt time.Time
}

// Latest holds the most recently normalized grid. It is written by both the
// ingest endpoint and the pipeline, and read by the radar GET endpoint.
type Latest struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// Store replaces the held grid if it is not older than the current one.
// It reports whether the grid was kept.
func (l *Latest) Store(id string, g domain.Grid, storedAt time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.snap != nil && g.UpdatedAtMs < l.snap.Grid.UpdatedAtMs {
		return false
	}
	l.snap = &Snapshot{ID: id, Grid: g.Clone(), StoredAt: storedAt}
	return true
}

// Get returns a copy of the held grid, or false if none has been stored.
func (l *Latest) Get() (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.snap == nil {
		return Snapshot{}, false
	}
	s := *l.snap
	s.Grid = s.Grid.Clone()
	return s, true
}
