// Background scan lifecycle tracking: an enum-with-String() state plus a
// simple keyed-by-scan_id map, since status is polled, not streamed.
package pipeline

import (
	"sync"
	"time"

	"github.com/blastshield/engine/internal/model"
)

// ScanState is the lifecycle of a background scan. Transitions are
// monotonic: queued -> running -> {complete | failed}.
type ScanState int

const (
	StateQueued ScanState = iota
	StateRunning
	StateComplete
	StateFailed
)

func (s ScanState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ScanStatus is the polled view of a background scan.
type ScanStatus struct {
	ScanID   string
	State    ScanState
	Progress float64
	Report   *model.ScanReport
	Error    string
}

// stateTable is the bounded-lifetime in-memory map of scan_id -> status.
// Entries older than entryTTL are evicted lazily on access, since many
// concurrent scan_ids can accumulate over a long-lived process.
type stateTable struct {
	mu      sync.RWMutex
	entries map[string]*stateEntry
}

type stateEntry struct {
	status    ScanStatus
	updatedAt time.Time
}

const entryTTL = 30 * time.Minute

func newStateTable() *stateTable {
	return &stateTable{entries: make(map[string]*stateEntry)}
}

func (t *stateTable) put(scanID string, status ScanStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[scanID] = &stateEntry{status: status, updatedAt: time.Now()}
}

func (t *stateTable) get(scanID string) (ScanStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictExpiredLocked()

	e, ok := t.entries[scanID]
	if !ok {
		return ScanStatus{}, false
	}
	return e.status, true
}

func (t *stateTable) evictExpiredLocked() {
	now := time.Now()
	for id, e := range t.entries {
		if now.Sub(e.updatedAt) > entryTTL {
			delete(t.entries, id)
		}
	}
}
