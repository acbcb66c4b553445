package rules

import (
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// unsanitizedIORule fires when flowfacts reports a tainted parameter
// reaching an I/O sink without an intervening sanitiser call.
type unsanitizedIORule struct{}

func (unsanitizedIORule) ID() string { return "unsanitized_io" }

func (unsanitizedIORule) Evaluate(ctx Context) []model.RuleViolation {
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
			for _, sink := range facts.TaintedSinks {
				out = append(out, model.RuleViolation{
					RuleID:           "unsanitized_io",
					Severity:         model.SeverityHigh,
					File:             ast.Path,
					Line:             sink.SinkLine,
					EndLine:          sink.SinkLine,
					Title:            "Unsanitised input reaches an I/O sink",
					Description:      fmt.Sprintf("parameter %q of %q flows unsanitised into %q", sink.Param, fn.QualifiedName, sink.Sink),
					AffectedFunction: fqn,
					GraphNodeID:      fqn,
					Evidence: []string{
						fmt.Sprintf("parameter %q is unsanitised", sink.Param),
						fmt.Sprintf("flows to call site %q at line %d", sink.Sink, sink.SinkLine),
					},
				})
			}
		}
	}
	return out
}
