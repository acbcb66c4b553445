// Package flowfacts runs intra-procedural, path-insensitive data-flow
// analysis over a FunctionDef's Statement list: a forward taint-state
// machine over a def-use chain, narrowed to three fact kinds: nullable
// return, tainted sink, shared-container mutation.
package flowfacts

import (
	"github.com/blastshield/engine/internal/model"
)

// Config lists the sink/sanitiser allow-lists the analyser consults.
type Config struct {
	Sinks      []string
	Sanitisers []string
}

// DefaultConfig returns the built-in sink/sanitiser allow-list. eval and
// exec are deliberately absent: dangerous_eval already owns every
// eval/exec call site, so including them here would double-report the
// same line as unsanitized_io.
func DefaultConfig() Config {
	return Config{
		Sinks: []string{
			"os.system",
			"subprocess.run", "subprocess.call", "subprocess.Popen",
			"open",
		},
		Sanitisers: []string{
			"shlex.quote", "html.escape", "bleach.clean",
			"sanitize", "escape", "quote",
		},
	}
}

// Analyzer runs the data-flow analysis for a batch of FunctionDefs.
type Analyzer struct {
	cfg Config
}

// New returns an Analyzer that uses the sink/sanitiser allow-lists in cfg;
// pass DefaultConfig() for the built-in lists.
func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze produces one FlowFacts per function, keyed by fully qualified
// name, for every function in every module.
func (a *Analyzer) Analyze(asts []*model.ModuleAST) map[string]*model.FlowFacts {
	out := map[string]*model.FlowFacts{}
	for _, ast := range asts {
		if ast.ParseError {
			continue
		}
		moduleVars := map[string]bool{}
		for _, assign := range ast.Assignments {
			moduleVars[assign.Name] = true
		}
		for _, fn := range ast.AllFunctions() {
			fqn := ast.ModuleID + "::" + fn.QualifiedName
			out[fqn] = a.analyzeFunction(fn, moduleVars)
		}
	}
	return out
}

func (a *Analyzer) analyzeFunction(fn *model.FunctionDef, moduleVars map[string]bool) *model.FlowFacts {
	facts := &model.FlowFacts{FunctionFQN: fn.QualifiedName}

	flat := flatten(fn.Statements)
	chain := model.BuildDefUseChains(flat)

	facts.NullableReturn = nullableReturn(fn, flat)
	facts.TaintedSinks = a.taintedSinks(fn, flat, chain)
	facts.MutatedSharedContainers = mutatedContainers(flat, moduleVars)

	return facts
}

func flatten(stmts []*model.Statement) []*model.Statement {
	var out []*model.Statement
	for _, s := range stmts {
		out = append(out, s.AllStatements()...)
	}
	return out
}

// nullableReturn flags a function with a declared non-optional return
// annotation that nonetheless contains a path yielding None, a bare
// return, or reaches the end of its body without returning.
func nullableReturn(fn *model.FunctionDef, flat []*model.Statement) bool {
	if fn.ReturnAnn == "" || isOptionalAnnotation(fn.ReturnAnn) {
		return false
	}
	sawReturn := false
	for _, s := range flat {
		if s.Type != model.StatementReturn {
			continue
		}
		sawReturn = true
		if s.ReturnsNil {
			return true
		}
	}
	// End-of-body fall-through: no top-level return as the last
	// statement implies an implicit `return None` path.
	if len(fn.Statements) == 0 {
		return true
	}
	last := fn.Statements[len(fn.Statements)-1]
	if last.Type != model.StatementReturn && last.Type != model.StatementRaise {
		return true
	}
	return !sawReturn && fn.ReturnAnn != ""
}

func isOptionalAnnotation(ann string) bool {
	return containsAny(ann, []string{"Optional[", "| None", "None |"})
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// taintedSinks walks the function's call sites in source order, tracking
// which parameters remain tainted (forward taint propagation through
// direct use, simple alias assignment, and call arguments), and reports
// a TaintedSink for each sink call reached by a still-tainted value with
// no sanitiser interposed: source -> propagate -> sanitizer clears ->
// sink detects, specialised to "parameter is the taint source" rather
// than a configurable source list.
func (a *Analyzer) taintedSinks(fn *model.FunctionDef, flat []*model.Statement, chain *model.DefUseChain) []model.TaintedSink {
	tainted := map[string]bool{}
	for _, p := range fn.Params {
		tainted[p.Name] = true
	}
	if len(tainted) == 0 {
		return nil
	}

	var out []model.TaintedSink
	for _, s := range flat {
		switch s.Type {
		case model.StatementAssignment:
			sanitised := false
			for _, cs := range fn.CallSites {
				if cs.Line == s.Line && a.isSanitizerCall(&model.Statement{CallTarget: cs.Callee}) {
					sanitised = true
				}
			}
			if sanitised && s.Def != "" {
				// clean = sanitize(cmd): the assigned name holds sanitised data.
				delete(tainted, s.Def)
				continue
			}
			a.propagateAssignment(s, tainted)
		case model.StatementCall, model.StatementExpression:
			if s.CallTarget == "" {
				continue
			}
			if a.isSanitizerCall(s) {
				clearTaintedArgs(s, tainted)
				continue
			}
			if sinkName, ok := a.matchSink(s.CallTarget); ok {
				for _, arg := range s.CallArgs {
					if tainted[arg] {
						out = append(out, model.TaintedSink{
							Param:    arg,
							Sink:     sinkName,
							SinkLine: s.Line,
						})
					}
				}
			}
		}
	}
	_ = chain
	return out
}

// propagateAssignment marks Def tainted if any Use is already tainted
// (direct use or simple alias), and clears Def otherwise.
func (a *Analyzer) propagateAssignment(s *model.Statement, tainted map[string]bool) {
	if s.Def == "" {
		return
	}
	for _, u := range s.Uses {
		if tainted[u] {
			tainted[s.Def] = true
			return
		}
	}
	delete(tainted, s.Def)
}

func (a *Analyzer) isSanitizerCall(s *model.Statement) bool {
	for _, san := range a.cfg.Sanitisers {
		if s.CallTarget == san || hasSuffixDot(s.CallTarget, san) {
			return true
		}
	}
	return false
}

func clearTaintedArgs(s *model.Statement, tainted map[string]bool) {
	for _, arg := range s.CallArgs {
		delete(tainted, arg)
	}
}

func (a *Analyzer) matchSink(callTarget string) (string, bool) {
	for _, sink := range a.cfg.Sinks {
		if callTarget == sink || hasSuffixDot(callTarget, sink) {
			return sink, true
		}
	}
	return "", false
}

func hasSuffixDot(s, suffix string) bool {
	return len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix && s[len(s)-len(suffix)-1] == '.'
}

// mutatedContainers reports every statement that mutates a module-level
// container: a call to a mutating method on it, or an indexed assignment
// to it.
func mutatedContainers(flat []*model.Statement, moduleVars map[string]bool) []model.MutatedContainer {
	var out []model.MutatedContainer
	for _, s := range flat {
		switch s.Type {
		case model.StatementAssignment:
			if s.Def != "" && moduleVars[s.Def] {
				out = append(out, model.MutatedContainer{Variable: s.Def, Line: s.Line, Kind: "assign"})
				continue
			}
			for _, u := range s.Uses {
				if moduleVars[u] {
					out = append(out, model.MutatedContainer{Variable: u, Line: s.Line, Kind: "index_assign"})
				}
			}
		case model.StatementCall, model.StatementExpression:
			for _, u := range s.Uses {
				if moduleVars[u] && isMutatingMethodName(s.CallTarget) {
					out = append(out, model.MutatedContainer{Variable: u, Line: s.Line, Kind: "mutating_call"})
				}
			}
		}
	}
	return out
}

var mutatingMethodNames = map[string]bool{
	"append": true, "extend": true, "update": true, "add": true,
	"pop": true, "remove": true, "clear": true, "insert": true,
	"sort": true, "setdefault": true, "popitem": true,
}

func isMutatingMethodName(callTarget string) bool {
	name := callTarget
	for i := len(callTarget) - 1; i >= 0; i-- {
		if callTarget[i] == '.' {
			name = callTarget[i+1:]
			break
		}
	}
	return mutatingMethodNames[name]
}
