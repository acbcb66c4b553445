// Package audit writes the append-only, best-effort NDJSON audit trail of
// completed scans: a writer that owns only the write, never the
// lifecycle of what backs it, paired with a "never let telemetry abort
// the operation it's observing" never-fail discipline — adapted from an
// external HTTP event design to a local append-only sink, since no scan
// detail may leave the process.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/blastshield/engine/internal/bslog"
	"github.com/blastshield/engine/internal/model"
)

// Sink is an append-only destination for AuditEntry records, one JSON
// object per line (NDJSON), so a partially-written log remains parseable
// line by line.
type Sink struct {
	mu  sync.Mutex
	w   io.Writer
	log *bslog.Logger
}

// NewFileSink opens path for appending (creating it if absent) and
// returns a Sink writing to it. The returned closer must be called at
// shutdown; a failure to open the file degrades to a discarding Sink
// rather than aborting the caller.
func NewFileSink(path string, log *bslog.Logger) (*Sink, io.Closer) {
	if log == nil {
		log = bslog.NewNop()
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Warn("audit: could not open sink file, falling back to discard")
		return &Sink{w: io.Discard, log: log}, nopCloser{}
	}
	return &Sink{w: f, log: log}, f
}

// NewWriterSink wraps an arbitrary io.Writer, primarily for tests.
func NewWriterSink(w io.Writer) *Sink {
	return &Sink{w: w, log: bslog.NewNop()}
}

// Record appends one AuditEntry. It never returns an error and never
// panics: a write failure is logged and swallowed, since losing an audit
// line must never fail the scan it describes.
func (s *Sink) Record(entry model.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(entry)
	if err != nil {
		s.log.Warn("audit: failed to marshal entry")
		return
	}
	line = append(line, '\n')
	if _, err := s.w.Write(line); err != nil {
		s.log.Warn("audit: failed to write entry")
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
