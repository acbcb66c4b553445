package rules

import (
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// retryWithoutBackoffRule fires on a while/for loop whose body calls a
// configured blocking sink and either has no sleep-equivalent call at all
// between attempts, or whose only sleep-equivalent call takes a
// constant-only argument (no identifier operand) rather than a growing
// delay — the engine has no constant-folding, so a sleep-equivalent call
// with any identifier argument is treated as a (possibly increasing)
// computed delay and does not fire.
type retryWithoutBackoffRule struct{}

func (retryWithoutBackoffRule) ID() string { return "retry_without_backoff" }

func (retryWithoutBackoffRule) Evaluate(ctx Context) []model.RuleViolation {
	var out []model.RuleViolation
	for _, ast := range ctx.ASTs {
		if ast.ParseError {
			continue
		}
		for _, fn := range ast.AllFunctions() {
			fqn := ast.ModuleID + "::" + fn.QualifiedName
			for _, loop := range loopsIn(fn.Statements) {
				blockingLine, hasBlocking := findCall(loop, ctx.Config.BlockingSinks)
				if !hasBlocking {
					continue
				}
				sleepStmt, hasSleep := findCallStmt(loop, ctx.Config.SleepEquivalents)
				if hasSleep && len(sleepStmt.CallArgs) > 0 {
					// A sleep call with an identifier argument may be
					// computing a growing delay; assume backoff is present.
					continue
				}

				var evidence []string
				var description string
				if !hasSleep {
					description = fmt.Sprintf("%q retries a blocking call with no pause between attempts", fn.QualifiedName)
					evidence = []string{
						fmt.Sprintf("loop at line %d calls a blocking sink at line %d", loop.Line, blockingLine),
						"no sleep-equivalent call appears anywhere in the loop body",
					}
				} else {
					description = fmt.Sprintf("%q retries a blocking call with a fixed sleep interval", fn.QualifiedName)
					evidence = []string{
						fmt.Sprintf("loop at line %d calls a blocking sink at line %d", loop.Line, blockingLine),
						fmt.Sprintf("the only pause between attempts is a constant-argument sleep at line %d", sleepStmt.Line),
					}
				}

				out = append(out, model.RuleViolation{
					RuleID:           "retry_without_backoff",
					Severity:         model.SeverityMedium,
					File:             ast.Path,
					Line:             loop.Line,
					EndLine:          loop.Line,
					Title:            "Retry loop without exponential backoff",
					Description:      description,
					AffectedFunction: fqn,
					GraphNodeID:      fqn,
					Evidence:         evidence,
				})
			}
		}
	}
	return out
}

// loopsIn returns every for/while statement, including nested ones,
// within the given top-level statement list.
func loopsIn(stmts []*model.Statement) []*model.Statement {
	var out []*model.Statement
	for _, s := range stmts {
		if s.Type == model.StatementFor || s.Type == model.StatementWhile {
			out = append(out, s)
		}
		out = append(out, loopsIn(s.Nested)...)
		out = append(out, loopsIn(s.ElseBranch)...)
	}
	return out
}

// findCall reports the line of the first call within loop (including its
// nested blocks) whose CallTarget matches one of the configured names,
// and whether one was found at all.
func findCall(loop *model.Statement, names []string) (int, bool) {
	s, ok := findCallStmt(loop, names)
	if !ok {
		return 0, false
	}
	return s.Line, true
}

// findCallStmt returns the first call statement within loop (including
// its nested blocks) whose CallTarget matches one of the configured
// names, and whether one was found at all.
func findCallStmt(loop *model.Statement, names []string) (*model.Statement, bool) {
	for _, s := range loop.AllStatements() {
		if s == loop {
			continue
		}
		if s.CallTarget == "" {
			continue
		}
		for _, n := range names {
			if s.CallTarget == n || hasSuffixDot(s.CallTarget, n) {
				return s, true
			}
		}
	}
	return nil, false
}
