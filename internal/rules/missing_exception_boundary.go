package rules

import (
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// missingExceptionBoundaryRule fires when an entry-point function's
// top-level body has no try/except around its fallible calls, or wraps
// one in a bare except that swallows the error without re-raising.
// Non-entry-point functions are never flagged: an internal helper is
// expected to let its caller's boundary handle failures.
type missingExceptionBoundaryRule struct{}

func (missingExceptionBoundaryRule) ID() string { return "missing_exception_boundary" }

func (missingExceptionBoundaryRule) Evaluate(ctx Context) []model.RuleViolation {
	var out []model.RuleViolation
	for _, ast := range ctx.ASTs {
		if ast.ParseError {
			continue
		}
		for _, fn := range ast.AllFunctions() {
			if len(fn.CallSites) == 0 {
				continue
			}
			fqn := ast.ModuleID + "::" + fn.QualifiedName
			if !ctx.Graph.EntryPoints[fqn] {
				continue
			}

			if !fn.Exceptions.HasTry {
				out = append(out, model.RuleViolation{
					RuleID:           "missing_exception_boundary",
					Severity:         model.SeverityMedium,
					File:             ast.Path,
					Line:             fn.StartLine,
					EndLine:          fn.EndLine,
					Title:            "No exception boundary around fallible calls",
					Description:      fmt.Sprintf("%q makes %d call(s) with no enclosing try block", fn.QualifiedName, len(fn.CallSites)),
					AffectedFunction: fqn,
					GraphNodeID:      fqn,
					Evidence: []string{
						fmt.Sprintf("%q contains %d call site(s)", fn.QualifiedName, len(fn.CallSites)),
						"no try statement encloses the function body",
					},
				})
				continue
			}

			if fn.Exceptions.HasBareExcept && !fn.Exceptions.ReRaises {
				out = append(out, model.RuleViolation{
					RuleID:           "missing_exception_boundary",
					Severity:         model.SeverityMedium,
					File:             ast.Path,
					Line:             fn.StartLine,
					EndLine:          fn.EndLine,
					Title:            "Bare except swallows all errors",
					Description:      fmt.Sprintf("%q has a bare except clause that does not re-raise", fn.QualifiedName),
					AffectedFunction: fqn,
					GraphNodeID:      fqn,
					Evidence: []string{
						fmt.Sprintf("%q has a bare `except:` clause", fn.QualifiedName),
						"the handler neither narrows the exception type nor re-raises",
					},
				})
			}
		}
	}
	return out
}
