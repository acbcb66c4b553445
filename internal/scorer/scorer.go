// Package scorer computes the explainable 0-100 risk score from
// the rule engine's violations and the call graph's impact factors, in a
// precedence-ordered pure-function style that combines many typed facts
// into one explainable number. Implemented on the standard library only:
// round-half-to-even is a pure numeric transform with no natural
// third-party fit anywhere in the retrieved pack.
package scorer

import (
	"fmt"
	"math"

	"github.com/blastshield/engine/internal/model"
)

// Score computes the RiskBreakdown for a set of violations, in the exact
// order the rule engine emitted them (contribution order is part of the
// contract). testFailures, keyed by GraphNodeID, marks nodes for which
// the test harness observed a regression; pass nil when the harness did
// not run.
func Score(violations []model.RuleViolation, graph *model.CallGraph, maxGraphDepth int, testFailures map[string]bool) model.RiskBreakdown {
	if maxGraphDepth <= 0 {
		maxGraphDepth = 1
	}

	contributions := make([]model.ViolationContribution, 0, len(violations))
	var weightedSum, maxPossible float64

	for _, v := range violations {
		base := model.BaseWeight(v.Severity)

		blastFactor := 0.3 * clamp01(float64(blastRadius(graph, v.GraphNodeID, maxGraphDepth))/float64(maxGraphDepth))
		stateFactor := 0.0
		if mutatesSharedState(graph, v.GraphNodeID) {
			stateFactor = 0.2
		}
		testFactor := 0.0
		if testFailures[v.GraphNodeID] {
			testFactor = 0.3
		}
		asyncFactor := 0.0
		if crossesAsyncBoundary(graph, v.GraphNodeID) {
			asyncFactor = 0.2
		}

		total := 1.0 + blastFactor + stateFactor + testFactor + asyncFactor
		weighted := base * total

		weightedSum += weighted
		maxPossible += base * 2.0

		contributions = append(contributions, model.ViolationContribution{
			RuleID:              v.RuleID,
			File:                v.File,
			Line:                v.Line,
			BaseWeight:          base,
			BlastRadiusFactor:   blastFactor,
			StateMutationFactor: stateFactor,
			TestFailureFactor:   testFactor,
			AsyncBoundaryFactor: asyncFactor,
			TotalFactor:         total,
			WeightedScore:       weighted,
		})
	}

	totalScore := 0
	if maxPossible > 0 {
		raw := weightedSum / maxPossible * 100
		totalScore = int(math.Min(100, roundHalfToEven(raw)))
	}

	return model.RiskBreakdown{
		TotalScore:       totalScore,
		MaxPossibleScore: maxPossible,
		Contributions:    contributions,
		Formula:          "total = min(100, round_half_even(Σ(base_weight × (1 + 0.3×blast_radius_ratio + 0.2×state_mutation + 0.3×test_failure + 0.2×async_boundary)) / Σ(base_weight × 2.0) × 100))",
		Summary:          summarize(totalScore, len(violations)),
	}
}

// Bucket maps a total score into the fixed four-way severity bucket of
// Bands: [0,20] Low, (20,50] Medium, (50,80] High, (80,100] Critical.
func Bucket(totalScore int) model.Severity {
	switch {
	case totalScore <= 20:
		return model.SeverityLow
	case totalScore <= 50:
		return model.SeverityMedium
	case totalScore <= 80:
		return model.SeverityHigh
	default:
		return model.SeverityCritical
	}
}

func summarize(totalScore int, violationCount int) string {
	return fmt.Sprintf("%d violation(s), risk score %d/100 (%s)", violationCount, totalScore, Bucket(totalScore))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func blastRadius(graph *model.CallGraph, nodeID string, maxDepth int) int {
	if graph == nil || nodeID == "" {
		return 0
	}
	if _, ok := graph.Nodes[nodeID]; !ok {
		return 0
	}
	return graph.BlastRadius(nodeID, maxDepth)
}

func mutatesSharedState(graph *model.CallGraph, nodeID string) bool {
	if graph == nil || nodeID == "" {
		return false
	}
	for _, set := range graph.SharedState {
		if set.Writers[nodeID] {
			return true
		}
	}
	return false
}

func crossesAsyncBoundary(graph *model.CallGraph, nodeID string) bool {
	if graph == nil || nodeID == "" {
		return false
	}
	for _, e := range graph.Edges[nodeID] {
		if e.AsyncBoundaryCrossing {
			return true
		}
	}
	for _, caller := range graph.ReverseEdges[nodeID] {
		for _, e := range graph.Edges[caller] {
			if e.Callee == nodeID && e.AsyncBoundaryCrossing {
				return true
			}
		}
	}
	return false
}

// roundHalfToEven implements banker's rounding so the score is identical
// across platforms regardless of floating-point rounding-mode defaults.
func roundHalfToEven(v float64) float64 {
	floor := math.Floor(v)
	diff := v - floor
	switch {
	case diff < 0.5:
		return floor
	case diff > 0.5:
		return floor + 1
	default:
		if math.Mod(floor, 2) == 0 {
			return floor
		}
		return floor + 1
	}
}
