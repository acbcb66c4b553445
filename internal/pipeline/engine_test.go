package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/config"
	"github.com/blastshield/engine/internal/model"
)

func newTestEngine(t *testing.T) (*Engine, func()) {
	t.Helper()
	cfg := config.Default()
	cfg.AuditLogPath = t.TempDir() + "/audit.ndjson"
	e, closer := NewEngine(cfg, nil)
	return e, func() { _ = closer() }
}

// S4: clean code produces an empty issue set and a zero risk score.
func TestScan_CleanCodeProducesEmptyReport(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	files := []model.FileInput{{Path: "clean.py", Content: []byte("def add(a, b):\n    return a + b\n")}}
	resp, err := e.Scan(context.Background(), files, ScanModeFull)
	require.Nil(t, err)
	require.NotNil(t, resp.Report)
	require.Empty(t, resp.Report.Issues)
	require.Equal(t, 0, resp.Report.RiskScore)
	require.True(t, resp.Report.DeterministicOnly)
}

func TestScan_VulnerableCodeProducesIssuesDeterministicOnly(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	files := []model.FileInput{{Path: "app.py", Content: []byte("def run(user_input):\n    return eval(user_input)\n")}}
	resp, err := e.Scan(context.Background(), files, ScanModeFull)
	require.Nil(t, err)
	require.NotEmpty(t, resp.Report.Issues)
	require.Greater(t, resp.Report.RiskScore, 0)
	require.False(t, resp.Report.LLMUsed)
	for _, i := range resp.Report.Issues {
		require.NotEmpty(t, i.Explanation)
		require.NotEmpty(t, i.Risk)
	}
}

func TestScan_EmptyFileSetIsRequestError(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	_, err := e.Scan(context.Background(), nil, ScanModeFull)
	require.NotNil(t, err)
	require.Equal(t, model.ErrEmptyFileSet, err.Code)
}

func TestScan_OversizeFileSkippedNotFatal(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()
	e.cfg.MaxFileSizeBytes = 4

	files := []model.FileInput{{Path: "big.py", Content: []byte("def add(a, b):\n    return a + b\n")}}
	resp, err := e.Scan(context.Background(), files, ScanModeFull)
	require.Nil(t, err)
	require.NotNil(t, resp.Report)
	oversizeFound := false
	for _, i := range resp.Report.Issues {
		if i.RuleID == "oversize_file" {
			oversizeFound = true
		}
	}
	require.True(t, oversizeFound)
}

func TestScan_BackgroundDispatchAboveThreshold(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()
	e.cfg.BackgroundFileThreshold = 1

	files := []model.FileInput{
		{Path: "a.py", Content: []byte("def a():\n    return 1\n")},
		{Path: "b.py", Content: []byte("def b():\n    return 2\n")},
	}
	resp, err := e.Scan(context.Background(), files, ScanModeFull)
	require.Nil(t, err)
	require.Nil(t, resp.Report)
	require.NotEmpty(t, resp.ScanID)

	require.Eventually(t, func() bool {
		status, serr := e.Status(resp.ScanID)
		return serr == nil && status.State == StateComplete
	}, 2*time.Second, 10*time.Millisecond)
}

// A --rule-config override of io_sinks must actually change which calls
// unsanitized_io flags, since the engine wires ruleCfg.IOSinks/Sanitisers
// into the flowfacts analyser rather than a hardcoded default.
func TestScan_RuleConfigIOSinksOverrideAffectsUnsanitizedIO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("io_sinks:\n  - custom_sink\n"), 0o644))

	cfg := config.Default()
	cfg.AuditLogPath = filepath.Join(t.TempDir(), "audit.ndjson")
	cfg.RuleConfigPath = path
	e, closer := NewEngine(cfg, nil)
	defer func() { _ = closer() }()

	files := []model.FileInput{{Path: "app.py", Content: []byte("def run(x):\n    return custom_sink(x)\n")}}
	resp, err := e.Scan(context.Background(), files, ScanModeFull)
	require.Nil(t, err)

	found := false
	for _, i := range resp.Report.Issues {
		if i.RuleID == "unsanitized_io" {
			found = true
		}
	}
	require.True(t, found, "custom io_sinks override should make unsanitized_io fire on custom_sink")
}

func TestStatus_UnknownScanIDReturnsError(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	_, err := e.Status("does-not-exist")
	require.NotNil(t, err)
	require.Equal(t, model.ErrUnknownScanID, err.Code)
}

func TestPRScan_AlwaysInlineWithSummary(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	files := []model.FileInput{{Path: "app.py", Content: []byte("def run(user_input):\n    return eval(user_input)\n")}}
	report, summary, err := e.PRScan(context.Background(), files)
	require.Nil(t, err)
	require.NotEmpty(t, report.Issues)
	require.Contains(t, summary, "BlastShield found")
}

func TestScanLegacy_ConvertsCombinedStringToSingleFile(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	resp, err := e.ScanLegacy(context.Background(), model.LegacyFileInput{Combined: "def add(a, b):\n    return a + b\n"}, ScanModeFull)
	require.Nil(t, err)
	require.NotNil(t, resp.Report)
	require.Empty(t, resp.Report.Issues)
}

func TestHealth_ReportsOKAndEngineVersion(t *testing.T) {
	e, cleanup := newTestEngine(t)
	defer cleanup()

	h := e.Health()
	require.Equal(t, "ok", h.Status)
	require.Equal(t, EngineVersion, h.Engine)
	require.Equal(t, "none", h.Model)
}
