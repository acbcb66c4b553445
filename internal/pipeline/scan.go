package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/blastshield/engine/internal/config"
	"github.com/blastshield/engine/internal/model"
)

// ScanMode selects full-repository or PR-diff framing; both run the same
// nine stages, scan_mode only affects inline-vs-background dispatch and
// the PR-framed summary.
type ScanMode string

const (
	ScanModeFull ScanMode = "full"
	ScanModePR   ScanMode = "pr"
)

// ScanResponse is the immediate reply to Scan: report is present iff the
// scan ran inline.
type ScanResponse struct {
	Message string
	ScanID  string
	Report  *model.ScanReport
}

// Scan accepts a file set and either runs it inline (file count at or
// below background_file_threshold) or dispatches it to a background
// goroutine and returns immediately with a scan_id to poll.
func (e *Engine) Scan(ctx context.Context, files []model.FileInput, mode ScanMode) (ScanResponse, *model.EngineError) {
	if err := validateInput(files); err != nil {
		return ScanResponse{}, err
	}

	scanID := newScanID()

	if len(files) <= e.cfg.BackgroundFileThreshold || mode == ScanModePR {
		report := e.runScan(ctx, scanID, files)
		return ScanResponse{Message: "scan complete", ScanID: scanID, Report: &report}, nil
	}

	e.states.put(scanID, ScanStatus{ScanID: scanID, State: StateQueued, Progress: 0})
	go e.runBackground(scanID, files)
	return ScanResponse{Message: "scan accepted, poll status for results", ScanID: scanID}, nil
}

// runBackground executes a scan off the request thread, recording its
// lifecycle transitions (queued -> running -> {complete|failed}) in the
// state table as it goes.
func (e *Engine) runBackground(scanID string, files []model.FileInput) {
	if err := e.bgSem.Acquire(context.Background(), 1); err != nil {
		e.states.put(scanID, ScanStatus{ScanID: scanID, State: StateFailed, Error: "scan scheduler unavailable"})
		return
	}
	defer e.bgSem.Release(1)

	e.states.put(scanID, ScanStatus{ScanID: scanID, State: StateRunning, Progress: 0.1})

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("background scan panicked", zap.String("scan_id", scanID))
			e.states.put(scanID, ScanStatus{ScanID: scanID, State: StateFailed, Error: fmt.Sprintf("internal error: %v", r)})
		}
	}()

	report := e.runScan(context.Background(), scanID, files)
	e.states.put(scanID, ScanStatus{ScanID: scanID, State: StateComplete, Progress: 1.0, Report: &report})
}

// PRScan is identical to Scan but always runs inline and additionally
// produces a PR-framed summary string.
func (e *Engine) PRScan(ctx context.Context, files []model.FileInput) (model.ScanReport, string, *model.EngineError) {
	if err := validateInput(files); err != nil {
		return model.ScanReport{}, "", err
	}
	report := e.runScan(ctx, newScanID(), files)
	return report, prSummary(report), nil
}

func prSummary(report model.ScanReport) string {
	if len(report.Issues) == 0 {
		return "BlastShield found no issues in this pull request."
	}
	counts := map[model.Severity]int{}
	for _, i := range report.Issues {
		counts[i.Severity]++
	}
	return fmt.Sprintf(
		"BlastShield found %d issue(s) (critical: %d, high: %d, medium: %d, low: %d). Overall risk score: %d/100.",
		len(report.Issues), counts[model.SeverityCritical], counts[model.SeverityHigh],
		counts[model.SeverityMedium], counts[model.SeverityLow], report.RiskScore,
	)
}

// ScanLegacy accepts the deprecated single-string ingestion shape,
// converting it to a single FileInput{Path: "combined"} before entering
// the pipeline exactly once at this boundary; nothing downstream ever
// sees LegacyFileInput again.
func (e *Engine) ScanLegacy(ctx context.Context, legacy model.LegacyFileInput, mode ScanMode) (ScanResponse, *model.EngineError) {
	return e.Scan(ctx, []model.FileInput{{Path: "combined", Content: []byte(legacy.Combined)}}, mode)
}

// Status returns the polled lifecycle of a background scan.
func (e *Engine) Status(scanID string) (ScanStatus, *model.EngineError) {
	status, ok := e.states.get(scanID)
	if !ok {
		return ScanStatus{}, model.NewEngineError(model.ErrUnknownScanID, "no scan found for scan_id %q", scanID)
	}
	return status, nil
}

// HealthResponse is Health's fixed-shape reply.
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Engine string `json:"engine"`
}

// Health reports engine liveness and its configured model id, never
// requiring any stage to run.
func (e *Engine) Health() HealthResponse {
	modelID := e.cfg.LLMModelID
	if e.cfg.LLMProvider == "" || e.cfg.LLMProvider == config.LLMProviderNone {
		modelID = "none"
	}
	return HealthResponse{Status: "ok", Model: modelID, Engine: EngineVersion}
}
