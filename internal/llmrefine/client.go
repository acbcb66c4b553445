// Package llmrefine invokes an LLM to enrich deterministic violations with
// an explanation, risk narrative, and advisory patches, gated by a
// threshold and validated by all-or-nothing response rules. Provider
// access goes through a single narrow interface (Chat(ctx, systemPrompt,
// userPrompt)) with an exponential-backoff retry loop, and a concrete
// OpenAI-style secret-loading client shape for CompletionClient's
// provider implementations.
package llmrefine

import (
	"context"
	"errors"
)

// CompletionClient is the capability every LLM provider implements: a
// single structured chat turn, narrowed to the one call shape the
// refiner needs.
type CompletionClient interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrBudgetExhausted is returned by Refiner.Refine when the per-scan token
// budget has already been spent; it is not a scan failure, only a signal
// to fall back.
var ErrBudgetExhausted = errors.New("llmrefine: token budget exhausted")
