package rules

import (
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// blockingIOInAsyncRule fires when an async function directly calls a
// configured blocking sink (a synchronous sleep, network, filesystem, or
// DB-connect call) without awaiting it, stalling the event loop.
type blockingIOInAsyncRule struct{}

func (blockingIOInAsyncRule) ID() string { return "blocking_io_in_async" }

func (blockingIOInAsyncRule) Evaluate(ctx Context) []model.RuleViolation {
	var out []model.RuleViolation
	for _, ast := range ctx.ASTs {
		if ast.ParseError {
			continue
		}
		for _, fn := range ast.AllFunctions() {
			if !fn.IsAsync {
				continue
			}
			fqn := ast.ModuleID + "::" + fn.QualifiedName
			for _, cs := range fn.CallSites {
				if cs.Awaited {
					continue
				}
				sink, ok := matchesAny(cs.Callee, ctx.Config.BlockingSinks)
				if !ok {
					continue
				}
				out = append(out, model.RuleViolation{
					RuleID:           "blocking_io_in_async",
					Severity:         model.SeverityHigh,
					File:             ast.Path,
					Line:             cs.Line,
					EndLine:          cs.Line,
					Title:            "Blocking call inside an async function",
					Description:      fmt.Sprintf("%q calls blocking %q without yielding to the event loop", fn.QualifiedName, sink),
					AffectedFunction: fqn,
					GraphNodeID:      fqn,
					Evidence: []string{
						fmt.Sprintf("%q is declared async", fn.QualifiedName),
						fmt.Sprintf("call to blocking %q at line %d is not awaited", sink, cs.Line),
					},
				})
			}
		}
	}
	return out
}

func matchesAny(callee string, names []string) (string, bool) {
	for _, n := range names {
		if callee == n || hasSuffixDot(callee, n) {
			return n, true
		}
	}
	return "", false
}
