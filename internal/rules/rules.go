// Package rules implements eight fixed deterministic rules.
// The Rule interface and fixed-registration-order dispatch follow a
// matcher-dispatch shape (call-matcher/variable-matcher/dataflow),
// compiled into eight built-in Go functions rather than a loaded,
// user-extensible rule DSL — exactly eight fixed rules.
package rules

import (
	"sort"

	"github.com/blastshield/engine/internal/model"
)

// Context bundles the AST/graph/flow facts a rule function consumes. A
// rule is a deterministic pure function over this context: (R1) no rule
// mutates it, (R3) rules never consult wall-clock, RNG, or environment.
type Context struct {
	ASTs      []*model.ModuleAST
	Graph     *model.CallGraph
	FlowFacts map[string]*model.FlowFacts
	Config    Config
}

// Rule is one deterministic pattern detector.
type Rule interface {
	ID() string
	Evaluate(ctx Context) []model.RuleViolation
}

// Registry returns all eight rules in their fixed registration order:
// race_condition, missing_await, dangerous_eval,
// unsanitized_io, shared_mutable_state, missing_exception_boundary,
// retry_without_backoff, blocking_io_in_async.
func Registry() []Rule {
	return []Rule{
		raceConditionRule{},
		missingAwaitRule{},
		dangerousEvalRule{},
		unsanitizedIORule{},
		sharedMutableStateRule{},
		missingExceptionBoundaryRule{},
		retryWithoutBackoffRule{},
		blockingIOInAsyncRule{},
	}
}

// Run evaluates every registered rule in order, sorting each rule's own
// output into ascending (file, line) order before concatenating — so the
// overall violation order is (rule registration order, file, line)
// regardless of per-file analysis parallelism upstream.
func Run(ctx Context) []model.RuleViolation {
	var all []model.RuleViolation
	for _, r := range Registry() {
		vs := r.Evaluate(ctx)
		sort.SliceStable(vs, func(i, j int) bool {
			if vs[i].File != vs[j].File {
				return vs[i].File < vs[j].File
			}
			return vs[i].Line < vs[j].Line
		})
		all = append(all, vs...)
	}
	return all
}

// fqnOf resolves a function's fully qualified name given its owning
// module id, matching the "module::dotted" scheme used throughout
// internal/callgraph.
func fqnOf(moduleID string, fn *model.FunctionDef) string {
	return moduleID + "::" + fn.QualifiedName
}

// pathIndex maps a module id to the source file path it was parsed from,
// so rules can recover (File, Line) from a bare FQN without threading the
// ModuleAST list through every helper.
func pathIndex(asts []*model.ModuleAST) map[string]string {
	out := make(map[string]string, len(asts))
	for _, ast := range asts {
		out[ast.ModuleID] = ast.Path
	}
	return out
}

// splitFQN separates a "module::qualified.name" FQN into its module id and
// dotted qualified name. Module ids never contain "::" (pyast.moduleID
// replaces "/" with "."), so the first occurrence is authoritative.
func splitFQN(fqn string) (moduleID, qualifiedName string) {
	for i := 0; i < len(fqn)-1; i++ {
		if fqn[i] == ':' && fqn[i+1] == ':' {
			return fqn[:i], fqn[i+2:]
		}
	}
	return fqn, ""
}

// fileForFQN resolves the source path owning an FQN, falling back to the
// module id itself if the path index has no entry (defensive only; every
// FQN the builder produces comes from an indexed ModuleAST).
func fileForFQN(paths map[string]string, fqn string) string {
	mod, _ := splitFQN(fqn)
	if p, ok := paths[mod]; ok {
		return p
	}
	return mod
}

// lastDot returns the index of the final "." in s, or -1 if absent —
// used to strip a receiver/module prefix off a dotted callee name.
func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// hasSuffixDot reports whether s ends with ".suffix" exactly, so that
// configured sink/sanitiser names match a dotted callee's tail without
// false-matching an unrelated longer name.
func hasSuffixDot(s, suffix string) bool {
	return len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix && s[len(s)-len(suffix)-1] == '.'
}
