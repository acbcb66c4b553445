package rules

import (
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// raceConditionRule fires when a shared-state entry has two or more
// writers that are each reachable from an async entry point, or when the
// writer set overlaps with the set of functions crossing an async
// boundary.
type raceConditionRule struct{}

func (raceConditionRule) ID() string { return "race_condition" }

func (raceConditionRule) Evaluate(ctx Context) []model.RuleViolation {
	var out []model.RuleViolation

	paths := pathIndex(ctx.ASTs)
	asyncReachable := computeAsyncReachable(ctx.Graph)
	boundaryCrossers := computeBoundaryCrossers(ctx.Graph)

	for varFQN, set := range ctx.Graph.SharedState {
		writers := sortedKeys(set.Writers)
		if len(writers) < 2 && !anyIn(writers, boundaryCrossers) {
			continue
		}

		reachableWriters := 0
		for _, w := range writers {
			if asyncReachable[w] {
				reachableWriters++
			}
		}
		overlapsBoundary := anyIn(writers, boundaryCrossers)

		if reachableWriters < 2 && !overlapsBoundary {
			continue
		}

		primary, ok := ctx.Graph.Nodes[writers[0]]
		if !ok {
			continue
		}
		file := fileForFQN(paths, writers[0])

		evidence := []string{
			fmt.Sprintf("shared variable %q has %d writer(s): %v", varFQN, len(writers), writers),
		}
		for _, w := range writers {
			evidence = append(evidence, fmt.Sprintf("function %q mutates it without exclusive access", w))
		}

		out = append(out, model.RuleViolation{
			RuleID:           "race_condition",
			Severity:         model.SeverityCritical,
			File:             file,
			Line:             primary.StartLine,
			EndLine:          primary.EndLine,
			Title:            "Potential race condition on shared state",
			Description:      fmt.Sprintf("%q is written by multiple functions reachable from async entry points, with no exclusive access among them", varFQN),
			AffectedFunction: writers[0],
			GraphNodeID:      varFQN,
			Evidence:         evidence,
		})
	}
	return out
}

// computeAsyncReachable returns the set of function FQNs reachable from
// any async entry point.
func computeAsyncReachable(cg *model.CallGraph) map[string]bool {
	reachable := map[string]bool{}
	for ep := range cg.EntryPoints {
		fn, ok := cg.Nodes[ep]
		if !ok || !fn.IsAsync {
			continue
		}
		bfsMark(cg, ep, reachable)
	}
	return reachable
}

func bfsMark(cg *model.CallGraph, start string, visited map[string]bool) {
	if visited[start] {
		return
	}
	visited[start] = true
	for _, callee := range cg.GetCallees(start) {
		if callee == model.ExternalNode {
			continue
		}
		bfsMark(cg, callee, visited)
	}
}

// computeBoundaryCrossers returns the set of caller FQNs with at least
// one outgoing async-boundary-crossing edge.
func computeBoundaryCrossers(cg *model.CallGraph) map[string]bool {
	crossers := map[string]bool{}
	for caller, edges := range cg.Edges {
		for _, e := range edges {
			if e.AsyncBoundaryCrossing {
				crossers[caller] = true
				break
			}
		}
	}
	return crossers
}

func anyIn(items []string, set map[string]bool) bool {
	for _, i := range items {
		if set[i] {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// simple insertion sort, n is always small (function counts per var)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
