package llmrefine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blastshield/engine/internal/model"
)

// systemPrompt is the fixed instruction set the refiner requires: no new
// rule_ids, no new file paths, and patches confined to the violation's
// ±5 line envelope.
const systemPrompt = `You are a static-analysis report refiner. You receive structured facts about already-detected violations, never raw source beyond the lines spanning each violation.

Rules you must follow exactly:
1. Never invent a rule_id that is not already present in the input violations.
2. Never reference a file path that is not in the provided file whitelist.
3. Any patch you suggest must have start_line and end_line fully inside [violation.line - 5, violation.end_line + 5].
4. Respond with JSON only, matching the schema you were given. No prose outside the JSON.`

// violationFact is the structured, source-minimized representation of
// one violation sent to the model — line ranges only, no source text
// beyond what the caller's FileInput windows explicitly include.
type violationFact struct {
	RuleID           string   `json:"rule_id"`
	Severity         string   `json:"severity"`
	File             string   `json:"file"`
	Line             int      `json:"line"`
	EndLine          int      `json:"end_line"`
	AffectedFunction string   `json:"affected_function"`
	Evidence         []string `json:"evidence"`
	Subgraph         []string `json:"subgraph_nhops"`
	FlowFacts        []string `json:"flow_facts"`
}

// buildUserPrompt serializes the violations, their N-hop subgraphs, and
// relevant flow facts into the JSON payload the model reasons over, plus
// the file whitelist it is forbidden to go outside of.
func buildUserPrompt(violations []model.RuleViolation, graph *model.CallGraph, facts map[string]*model.FlowFacts, fileWhitelist []string, hops int) (string, error) {
	items := make([]violationFact, 0, len(violations))
	for _, v := range violations {
		items = append(items, violationFact{
			RuleID:           v.RuleID,
			Severity:         string(v.Severity),
			File:             v.File,
			Line:             v.Line,
			EndLine:          v.EndLine,
			AffectedFunction: v.AffectedFunction,
			Evidence:         v.Evidence,
			Subgraph:         nHopSubgraph(graph, v.GraphNodeID, hops),
			FlowFacts:        describeFlowFacts(facts[v.GraphNodeID]),
		})
	}

	payload := struct {
		Violations    []violationFact `json:"violations"`
		FileWhitelist []string        `json:"file_whitelist"`
	}{Violations: items, FileWhitelist: fileWhitelist}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llmrefine: marshal prompt payload: %w", err)
	}
	return string(encoded), nil
}

// nHopSubgraph returns the FQNs reachable from nodeID within hops edges,
// rendered as "caller -> callee" strings — the subgraph the refiner is
// allowed to reason about without seeing the full call graph.
func nHopSubgraph(graph *model.CallGraph, nodeID string, hops int) []string {
	if graph == nil || nodeID == "" || hops <= 0 {
		return nil
	}
	visited := map[string]bool{nodeID: true}
	frontier := []string{nodeID}
	var edges []string
	for h := 0; h < hops && len(frontier) > 0; h++ {
		var next []string
		for _, n := range frontier {
			for _, e := range graph.Edges[n] {
				edges = append(edges, fmt.Sprintf("%s -> %s", n, e.Callee))
				if e.Callee != model.ExternalNode && !visited[e.Callee] {
					visited[e.Callee] = true
					next = append(next, e.Callee)
				}
			}
		}
		frontier = next
	}
	return edges
}

func describeFlowFacts(f *model.FlowFacts) []string {
	if f == nil {
		return nil
	}
	var out []string
	if f.NullableReturn {
		out = append(out, "function has a path returning None despite a non-optional annotation")
	}
	for _, s := range f.TaintedSinks {
		out = append(out, fmt.Sprintf("parameter %q reaches sink %q at line %d", s.Param, s.Sink, s.SinkLine))
	}
	for _, m := range f.MutatedSharedContainers {
		out = append(out, fmt.Sprintf("mutates shared container %q at line %d (%s)", m.Variable, m.Line, m.Kind))
	}
	return out
}

// responseSchemaHint is appended to the user prompt describing the exact
// JSON shape expected back, since CompletionClient has no native
// structured-output mode to rely on.
var responseSchemaHint = strings.TrimSpace(`
Respond with exactly this JSON shape:
{
  "refinements": [
    {
      "rule_id": "string, must match one of the input violations",
      "file": "string, must be in file_whitelist",
      "line": 0,
      "explanation": "string",
      "risk": "string",
      "patches": [{"file": "string", "start_line": 0, "end_line": 0, "new_code": "string"}]
    }
  ]
}`)
