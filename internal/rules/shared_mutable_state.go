package rules

import (
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// sharedMutableStateRule fires on any module-level container mutated from
// inside a function body, independent of concurrency reachability — the
// race_condition rule covers the async-reachable overlap case at higher
// severity; this rule covers the general mutation hygiene case.
type sharedMutableStateRule struct{}

func (sharedMutableStateRule) ID() string { return "shared_mutable_state" }

func (sharedMutableStateRule) Evaluate(ctx Context) []model.RuleViolation {
	var out []model.RuleViolation
	for _, ast := range ctx.ASTs {
		if ast.ParseError {
			continue
		}
		for _, fn := range ast.AllFunctions() {
			fqn := ast.ModuleID + "::" + fn.QualifiedName
			facts := ctx.FlowFacts[fqn]
			if facts == nil {
				continue
			}
			for _, m := range facts.MutatedSharedContainers {
				out = append(out, model.RuleViolation{
					RuleID:           "shared_mutable_state",
					Severity:         model.SeverityMedium,
					File:             ast.Path,
					Line:             m.Line,
					EndLine:          m.Line,
					Title:            "Module-level container mutated from a function",
					Description:      fmt.Sprintf("%q mutates shared module-level variable %q", fn.QualifiedName, m.Variable),
					AffectedFunction: fqn,
					GraphNodeID:      fqn,
					Evidence: []string{
						fmt.Sprintf("variable %q is defined at module scope", m.Variable),
						fmt.Sprintf("mutated (%s) at line %d inside %q", m.Kind, m.Line, fn.QualifiedName),
					},
				})
			}
		}
	}
	return out
}
