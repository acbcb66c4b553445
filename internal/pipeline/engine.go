// Package pipeline orchestrates the nine analysis stages into the four
// operations an HTTP host calls: Scan, PRScan, Status, Health. A panic in
// the rule engine is recovered into a rule_error violation, and a panic
// in a background scan marks that scan failed; panics in the other
// stages are not recovered.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/blastshield/engine/internal/audit"
	"github.com/blastshield/engine/internal/bslog"
	"github.com/blastshield/engine/internal/cache"
	"github.com/blastshield/engine/internal/callgraph"
	"github.com/blastshield/engine/internal/config"
	"github.com/blastshield/engine/internal/fallback"
	"github.com/blastshield/engine/internal/flowfacts"
	"github.com/blastshield/engine/internal/harness"
	"github.com/blastshield/engine/internal/llmrefine"
	"github.com/blastshield/engine/internal/model"
	"github.com/blastshield/engine/internal/pyast"
	"github.com/blastshield/engine/internal/rules"
)

// EngineVersion is surfaced verbatim by Health.
const EngineVersion = "0.1.0"

// Engine wires every stage together and owns the process-wide cache,
// audit sink, and background scan-state table.
type Engine struct {
	cfg       config.Config
	log       *bslog.Logger
	cache     *cache.Cache
	auditSink *audit.Sink
	llmClient llmrefine.CompletionClient
	states    *stateTable
	ruleCfg   rules.Config
	// bgSem bounds how many background scans may run concurrently,
	// grounded on the same bounded-fan-out idea used for LLM
	// calls, applied here to whole background scans since this engine's
	// LLM refiner issues one combined call per scan rather than one per
	// violation.
	bgSem *semaphore.Weighted
}

const maxConcurrentBackgroundScans = 4

// NewEngine builds an Engine from a resolved Config. The returned
// function closes the audit sink; the caller calls it at shutdown.
func NewEngine(cfg config.Config, log *bslog.Logger) (*Engine, func() error) {
	if log == nil {
		log = bslog.NewNop()
	}
	sink, closer := audit.NewFileSink(cfg.AuditLogPath, log)
	ruleCfg := rules.DefaultConfig()
	if cfg.RuleConfigPath != "" {
		loaded, err := rules.LoadConfigFromYAML(cfg.RuleConfigPath)
		if err != nil {
			log.Warn(fmt.Sprintf("rule config %s unreadable, using defaults: %v", cfg.RuleConfigPath, err))
		} else {
			ruleCfg = loaded
		}
	}
	return &Engine{
		cfg:       cfg,
		log:       log,
		cache:     cache.New(4096, cfg.CacheTTL),
		auditSink: sink,
		llmClient: newLLMClient(cfg),
		states:    newStateTable(),
		ruleCfg:   ruleCfg,
		bgSem:     semaphore.NewWeighted(maxConcurrentBackgroundScans),
	}, closer.Close
}

// runScan executes all nine stages against files and returns the
// completed report. It never returns an error: every stage failure is
// recovered and downgraded into a violation or a degraded-mode flag, per
// the request-validation propagation policy.
func (e *Engine) runScan(ctx context.Context, scanID string, files []model.FileInput) model.ScanReport {
	start := time.Now()
	done := e.log.Timed("scan", zapField("scan_id", scanID))
	defer done()

	accepted, skipped := partitionBySize(files, e.cfg.MaxFileSizeBytes)

	asts, parseViolations := e.extractWithCache(ctx, accepted)

	builder := callgraph.New(e.cfg.MaxGraphDepth)
	graph := builder.Build(asts)

	facts := flowfacts.New(flowfacts.Config{
		Sinks:      e.ruleCfg.IOSinks,
		Sanitisers: e.ruleCfg.Sanitisers,
	}).Analyze(asts)

	ruleViolations := e.runRulesRecovered(rules.Context{
		ASTs:      asts,
		Graph:     graph,
		FlowFacts: facts,
		Config:    e.ruleCfg,
	})

	violations := make([]model.RuleViolation, 0, len(skipped)+len(parseViolations)+len(ruleViolations))
	violations = append(violations, skipped...)
	violations = append(violations, parseViolations...)
	violations = append(violations, ruleViolations...)

	var testFailures map[string]bool
	if e.cfg.TestHarnessEnabled {
		h := harness.New(harness.Config{
			Enabled:         true,
			AllowNetwork:    false,
			SandboxEnabled:  true,
			MaxParams:       6,
			MaxBodyLines:    200,
			PerCallTimeout:  e.cfg.TestHarnessTimeout,
		}, e.log)
		testFailures = h.Run(ctx, asts, accepted)
	}

	breakdown := scoreViolations(violations, graph, e.cfg.MaxGraphDepth, testFailures)

	issues, llmUsed, tokensSpent := e.explainViolations(ctx, violations, graph, facts, accepted, breakdown.TotalScore)

	report := model.ScanReport{
		Issues:            issues,
		RiskScore:         breakdown.TotalScore,
		RiskBreakdown:     breakdown,
		Summary:           summarize(breakdown.TotalScore, len(issues)),
		LLMUsed:           llmUsed,
		DeterministicOnly: !llmUsed,
		Audit: model.AuditEntry{
			ScanID:            scanID,
			FilesScanned:      len(accepted),
			ViolationsFound:   len(violations),
			RiskScore:         breakdown.TotalScore,
			LLMInvoked:        llmUsed,
			LLMTokensUsed:     tokensSpent,
			DurationMS:        time.Since(start).Milliseconds(),
			DeterministicOnly: !llmUsed,
		},
	}

	e.auditSink.Record(report.Audit)
	return report
}

// extractWithCache runs AST extraction only for files whose (path,
// content) pair is not already cached, then merges cached and freshly
// parsed results back into the original file order — preserving I1/I5
// determinism regardless of which files happened to hit the cache.
func (e *Engine) extractWithCache(ctx context.Context, files []model.FileInput) ([]*model.ModuleAST, []model.RuleViolation) {
	asts := make([]*model.ModuleAST, len(files))
	violations := make([][]model.RuleViolation, len(files))

	var misses []model.FileInput
	missIndex := make([]int, 0, len(files))
	for i, f := range files {
		if ast, vs, ok := e.cache.Get(f); ok {
			asts[i] = ast
			violations[i] = vs
			continue
		}
		misses = append(misses, f)
		missIndex = append(missIndex, i)
	}

	if len(misses) > 0 {
		missASTs, missViolations := pyast.New(e.log).ExtractAll(ctx, misses)
		byFile := groupViolationsByFile(missViolations)
		for j, idx := range missIndex {
			ast := missASTs[j]
			vs := byFile[misses[j].Path]
			asts[idx] = ast
			violations[idx] = vs
			e.cache.Put(misses[j], ast, vs)
		}
	}

	allViolations := make([]model.RuleViolation, 0, len(files))
	for _, vs := range violations {
		allViolations = append(allViolations, vs...)
	}
	return asts, allViolations
}

func groupViolationsByFile(vs []model.RuleViolation) map[string][]model.RuleViolation {
	out := make(map[string][]model.RuleViolation, len(vs))
	for _, v := range vs {
		out[v.File] = append(out[v.File], v)
	}
	return out
}

// runRulesRecovered runs the rule engine, converting an internal rule
// panic into a rule_error violation rather than aborting the scan.
func (e *Engine) runRulesRecovered(ctx rules.Context) (violations []model.RuleViolation) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("rule engine panicked, recording rule_error")
			violations = append(violations, model.RuleViolation{
				RuleID:      "rule_error",
				Severity:    model.SeverityLow,
				Title:       "rule evaluation failed",
				Description: fmt.Sprintf("rule engine panic: %v", r),
			})
		}
	}()
	return rules.Run(ctx)
}

// explainViolations runs the LLM refiner when gated in, and falls back
// to the deterministic template explainer for everything it does not
// cover.
func (e *Engine) explainViolations(ctx context.Context, violations []model.RuleViolation, graph *model.CallGraph, facts map[string]*model.FlowFacts, files []model.FileInput, totalScore int) ([]model.Issue, bool, int) {
	if len(violations) == 0 {
		return []model.Issue{}, false, 0
	}

	if !llmrefine.ShouldInvoke(totalScore, violations, e.cfg.LLMRiskThreshold) {
		return fallback.ExplainAll(violations), false, 0
	}

	whitelist := make([]string, 0, len(files))
	for _, f := range files {
		whitelist = append(whitelist, f.Path)
	}

	refiner := llmrefine.New(e.llmClient, llmrefine.Config{
		RiskThreshold:    e.cfg.LLMRiskThreshold,
		MaxTokensPerScan: e.cfg.LLMMaxTokensPerScan,
		SubgraphHops:     2,
		MaxRetries:       e.cfg.LLMMaxRetries,
		InitialBackoff:   1 * time.Second,
	}, e.log)

	refinements, tokensSpent, err := refiner.Refine(ctx, violations, graph, facts, whitelist)
	if err != nil {
		e.log.Warn("llm refiner fell back to deterministic explanations")
		return fallback.ExplainAll(violations), false, tokensSpent
	}

	issues := make([]model.Issue, 0, len(violations))
	for _, v := range violations {
		if r, ok := refinements[llmrefine.ViolationKey(v.RuleID, v.File, v.Line)]; ok {
			issues = append(issues, model.Issue{
				ID:          fmt.Sprintf("%s:%s:%d", v.RuleID, v.File, v.Line),
				Severity:    v.Severity,
				File:        v.File,
				Line:        v.Line,
				RuleID:      v.RuleID,
				Issue:       v.Title,
				Explanation: r.Explanation,
				Risk:        r.Risk,
				Evidence:    v.Evidence,
				Patches:     r.Patches,
			})
			continue
		}
		issues = append(issues, fallback.Explain(v))
	}
	return issues, true, tokensSpent
}

func summarize(totalScore, issueCount int) string {
	if issueCount == 0 {
		return "No issues detected."
	}
	return fmt.Sprintf("%d issue(s) found; overall risk score %d/100 (%s).", issueCount, totalScore, bucketName(totalScore))
}

func newScanID() string {
	return uuid.New().String()
}
