package llmrefine

import (
	"context"
	"time"

	"github.com/blastshield/engine/internal/bslog"
	"github.com/blastshield/engine/internal/model"
)

// Config controls the refiner's invocation gate and resource limits.
type Config struct {
	RiskThreshold     int
	MaxTokensPerScan  int
	SubgraphHops      int
	MaxRetries        int
	InitialBackoff    time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		RiskThreshold:    50,
		MaxTokensPerScan: 20000,
		SubgraphHops:     2,
		MaxRetries:       3,
		InitialBackoff:   1 * time.Second,
	}
}

// Refiner invokes a CompletionClient to enrich violations, gated by
// a risk-score threshold, retried with exponential backoff (1s, 2s, 4s).
type Refiner struct {
	client       CompletionClient
	cfg          Config
	log          *bslog.Logger
	tokensSpent  int
}

// New returns a Refiner. client may be nil, in which case ShouldInvoke
// still reports the gate decision but Refine always falls back.
func New(client CompletionClient, cfg Config, log *bslog.Logger) *Refiner {
	if log == nil {
		log = bslog.NewNop()
	}
	return &Refiner{client: client, cfg: cfg, log: log}
}

// ShouldInvoke implements the invocation gate: total risk score at or above the
// threshold, or any critical-severity violation present.
func ShouldInvoke(totalScore int, violations []model.RuleViolation, threshold int) bool {
	if totalScore >= threshold {
		return true
	}
	for _, v := range violations {
		if v.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

// Refine invokes the LLM and returns validated refinements keyed by
// ViolationKey(rule_id, file, line). On any error, timeout, budget exhaustion, or validation
// rejection, it returns a nil map and the caller falls back to
// internal/fallback — Refine itself never aborts the scan.
func (r *Refiner) Refine(ctx context.Context, violations []model.RuleViolation, graph *model.CallGraph, facts map[string]*model.FlowFacts, fileWhitelist []string) (map[string]Refinement, int, error) {
	if r.client == nil {
		return nil, 0, ErrBudgetExhausted
	}
	if r.tokensSpent >= r.cfg.MaxTokensPerScan {
		return nil, 0, ErrBudgetExhausted
	}

	userPrompt, err := buildUserPrompt(violations, graph, facts, fileWhitelist, r.cfg.SubgraphHops)
	if err != nil {
		return nil, 0, err
	}
	userPrompt = userPrompt + "\n\n" + responseSchemaHint

	raw, err := r.callWithBackoff(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, 0, err
	}

	spent := estimateTokens(systemPrompt) + estimateTokens(userPrompt) + estimateTokens(raw)
	r.tokensSpent += spent

	refinements, err := Validate(raw, violations, fileWhitelist)
	if err != nil {
		r.log.Warn("llm response rejected by validator")
		return nil, spent, err
	}
	return refinements, spent, nil
}

// callWithBackoff retries a transient client error up to MaxRetries
// times, doubling the delay each attempt (1s, 2s, 4s by default).
func (r *Refiner) callWithBackoff(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	backoff := r.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
		raw, err := r.client.Chat(ctx, systemPrompt, userPrompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// estimateTokens is a cheap, deterministic token-count approximation
// (character count / 4) used only to enforce the per-scan budget; an
// exact tokenizer is not part of any example in the retrieved pack.
func estimateTokens(s string) int {
	return len(s) / 4
}
