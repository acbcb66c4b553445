package rules

import (
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// missingAwaitRule fires inside an async function on a call site whose
// callee is itself async but was not awaited.
type missingAwaitRule struct{}

func (missingAwaitRule) ID() string { return "missing_await" }

func (missingAwaitRule) Evaluate(ctx Context) []model.RuleViolation {
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
				calleeFQN, resolved := resolveCalleeForCallSite(ctx.Graph, fqn, cs)
				if !resolved {
					continue
				}
				calleeFn, ok := ctx.Graph.Nodes[calleeFQN]
				if !ok || !calleeFn.IsAsync {
					continue
				}
				out = append(out, model.RuleViolation{
					RuleID:           "missing_await",
					Severity:         model.SeverityHigh,
					File:             ast.Path,
					Line:             cs.Line,
					EndLine:          cs.Line,
					Title:            "Async call site is missing await",
					Description:      fmt.Sprintf("%q calls async function %q without awaiting it", fn.QualifiedName, cs.Callee),
					AffectedFunction: fqn,
					GraphNodeID:      fqn,
					Evidence: []string{
						fmt.Sprintf("function %q is declared async", fn.Name),
						fmt.Sprintf("call to %q at line %d is not awaited", cs.Callee, cs.Line),
						fmt.Sprintf("%q is itself an async function", calleeFQN),
					},
				})
			}
		}
	}
	return out
}

// resolveCalleeForCallSite finds the resolved callee FQN for a given call
// site by scanning the caller's outgoing edges for a matching line and
// callee name — the graph already carries this resolution from the
// builder, so rules never re-resolve call sites themselves.
func resolveCalleeForCallSite(cg *model.CallGraph, callerFQN string, cs model.CallSite) (string, bool) {
	name := cs.Callee
	if idx := lastDot(name); idx >= 0 {
		name = name[idx+1:]
	}
	for _, e := range cg.Edges[callerFQN] {
		if e.CallSiteLine != cs.Line || e.Callee == model.ExternalNode {
			continue
		}
		if fn, ok := cg.Nodes[e.Callee]; ok && fn.Name == name {
			return e.Callee, true
		}
	}
	return "", false
}
