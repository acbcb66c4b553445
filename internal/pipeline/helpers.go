package pipeline

import (
	"go.uber.org/zap"

	"github.com/blastshield/engine/internal/config"
	"github.com/blastshield/engine/internal/llmrefine"
	"github.com/blastshield/engine/internal/model"
	"github.com/blastshield/engine/internal/scorer"
)

func zapField(key, value string) zap.Field {
	return zap.String(key, value)
}

func scoreViolations(violations []model.RuleViolation, graph *model.CallGraph, maxGraphDepth int, testFailures map[string]bool) model.RiskBreakdown {
	return scorer.Score(violations, graph, maxGraphDepth, testFailures)
}

func bucketName(totalScore int) string {
	return string(scorer.Bucket(totalScore))
}

// newLLMClient wires the configured CompletionClient implementation.
// Absence of a provider or credentials resolves to deterministic-only
// (nil client), matching "absence forces deterministic-only".
func newLLMClient(cfg config.Config) llmrefine.CompletionClient {
	switch cfg.LLMProvider {
	case config.LLMProviderOpenAI:
		if cfg.LLMAPIKey == "" {
			return nil
		}
		return llmrefine.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMModelID, float32(cfg.LLMTemperature), cfg.LLMMaxTokensPerScan)
	case config.LLMProviderGemini:
		if cfg.LLMAPIKey == "" {
			return nil
		}
		return llmrefine.NewGeminiClient(cfg.LLMAPIKey, cfg.LLMModelID)
	case config.LLMProviderMock:
		return &llmrefine.MockClient{}
	default:
		return nil
	}
}
