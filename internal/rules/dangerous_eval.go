package rules

import (
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// dangerousEvalRule fires when a function body calls eval or exec with an
// argument that is not a literal string constant: an identifier, an
// f-string, a concatenation, or any other expression that could carry
// caller-controlled data. A call whose sole argument is a literal string
// (eval("1+1")) never executes anything but its own fixed text and does
// not fire.
type dangerousEvalRule struct{}

func (dangerousEvalRule) ID() string { return "dangerous_eval" }

var dangerousCallables = map[string]bool{"eval": true, "exec": true}

func (dangerousEvalRule) Evaluate(ctx Context) []model.RuleViolation {
	var out []model.RuleViolation
	for _, ast := range ctx.ASTs {
		if ast.ParseError {
			continue
		}
		for _, fn := range ast.AllFunctions() {
			fqn := ast.ModuleID + "::" + fn.QualifiedName
			for _, cs := range fn.CallSites {
				name := cs.Callee
				if dot := lastDot(name); dot >= 0 {
					name = name[dot+1:]
				}
				if !dangerousCallables[name] {
					continue
				}
				if cs.ArgIsLiteralString {
					continue
				}
				out = append(out, model.RuleViolation{
					RuleID:           "dangerous_eval",
					Severity:         model.SeverityCritical,
					File:             ast.Path,
					Line:             cs.Line,
					EndLine:          cs.Line,
					Title:            "Dynamic code execution",
					Description:      fmt.Sprintf("%q calls %q with a non-literal argument, executing arbitrary code at runtime", fn.QualifiedName, cs.Callee),
					AffectedFunction: fqn,
					GraphNodeID:      fqn,
					Evidence: []string{
						fmt.Sprintf("call site %q at line %d", cs.Callee, cs.Line),
						fmt.Sprintf("%q's argument is not a literal string, so its runtime value is not fixed", name),
					},
				})
			}
		}
	}
	return out
}
