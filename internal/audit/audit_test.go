package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
)

func TestSink_RecordWritesOneNDJSONLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	s.Record(model.AuditEntry{ScanID: "scan-1", FilesScanned: 3, RiskScore: 42})
	s.Record(model.AuditEntry{ScanID: "scan-2", FilesScanned: 1, RiskScore: 0})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first model.AuditEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "scan-1", first.ScanID)
	require.Equal(t, 3, first.FilesScanned)

	var second model.AuditEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, "scan-2", second.ScanID)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

var errWriteFailed = &writeError{}

type writeError struct{}

func (*writeError) Error() string { return "simulated write failure" }

func TestSink_RecordNeverPanicsOnWriteFailure(t *testing.T) {
	s := NewWriterSink(failingWriter{})
	require.NotPanics(t, func() {
		s.Record(model.AuditEntry{ScanID: "scan-1"})
	})
}

func TestNewFileSink_UnwritablePathFallsBackToDiscard(t *testing.T) {
	s, closer := NewFileSink("/nonexistent-dir-xyz/audit.ndjson", nil)
	defer closer.Close()
	require.NotPanics(t, func() {
		s.Record(model.AuditEntry{ScanID: "scan-1"})
	})
}
