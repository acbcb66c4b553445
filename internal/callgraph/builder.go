// Package callgraph builds the inter-procedural CallGraph from a set of
// ModuleAST facts already in memory, via a three-pass algorithm (module
// registry -> import/call extraction -> resolution) narrowed to the
// three resolution mechanisms: same-module lookup,
// resolved-import lookup, and entry-point decorator detection.
package callgraph

import (
	"github.com/blastshield/engine/internal/model"
)

// EntryPointDecorators is the configurable allow-list of decorator names
// (bare or dotted-suffix) that mark a function as externally reachable.
var EntryPointDecorators = []string{
	"route", "get", "post", "put", "delete", "patch",
	"app.route", "app.get", "app.post", "app.put", "app.delete",
	"router.get", "router.post", "celery.task", "task",
}

// Builder constructs a CallGraph from a set of ModuleASTs, resolving each
// CallSite against same-module functions, resolved imports, or the
// external sentinel.
type Builder struct {
	MaxGraphDepth int
}

// New returns a Builder bounded by maxGraphDepth for blast-radius BFS.
func New(maxGraphDepth int) *Builder {
	if maxGraphDepth <= 0 {
		maxGraphDepth = 20
	}
	return &Builder{MaxGraphDepth: maxGraphDepth}
}

// Build runs the 3-pass algorithm: register modules, resolve imports per
// module, then link every call site to its resolved callee (or the
// external sentinel) while simultaneously computing the shared-state map.
func (b *Builder) Build(asts []*model.ModuleAST) *model.CallGraph {
	cg := model.NewCallGraph()

	registry := buildModuleRegistry(asts)
	for _, ast := range asts {
		if ast.ParseError {
			continue
		}
		registerFunctions(cg, ast)
	}

	for _, ast := range asts {
		if ast.ParseError {
			continue
		}
		imports := resolveImports(ast, registry)
		linkCallSites(cg, ast, imports, registry)
		markEntryPoints(cg, ast)
		recordSharedState(cg, ast)
	}

	return cg
}

// moduleRegistry maps a short (unqualified) function name within a module
// to its fully qualified name, and a module id to the set of names it
// exports — the minimum index the resolver needs for same-module and
// resolved-import lookups.
type moduleRegistry struct {
	// byModule[moduleID][shortName] = qualifiedName
	byModule map[string]map[string]string
}

func buildModuleRegistry(asts []*model.ModuleAST) *moduleRegistry {
	r := &moduleRegistry{byModule: map[string]map[string]string{}}
	for _, ast := range asts {
		names := map[string]string{}
		for _, fn := range ast.AllFunctions() {
			names[fn.Name] = ast.ModuleID + "::" + fn.QualifiedName
			names[fn.QualifiedName] = ast.ModuleID + "::" + fn.QualifiedName
		}
		r.byModule[ast.ModuleID] = names
	}
	return r
}

func registerFunctions(cg *model.CallGraph, ast *model.ModuleAST) {
	for _, fn := range ast.AllFunctions() {
		fqn := ast.ModuleID + "::" + fn.QualifiedName
		cg.Nodes[fqn] = fn
		cg.NodeModule[fqn] = ast.ModuleID
	}
}

// importAliases maps a local alias used within one module to the module
// id it refers to, resolved from that module's ImportStmt list.
type importAliases map[string]string

func resolveImports(ast *model.ModuleAST, registry *moduleRegistry) importAliases {
	aliases := importAliases{}
	for _, imp := range ast.Imports {
		for alias, name := range imp.Names {
			if alias == "*" {
				continue
			}
			if imp.FromImport {
				// "from module import name [as alias]": alias refers to
				// a symbol inside imp.TargetModule.
				if _, ok := registry.byModule[imp.TargetModule]; ok {
					aliases[alias] = imp.TargetModule
				}
				_ = name
			} else {
				// "import module [as alias]": alias refers to the module.
				if _, ok := registry.byModule[name]; ok {
					aliases[alias] = name
				}
			}
		}
	}
	return aliases
}

func linkCallSites(cg *model.CallGraph, ast *model.ModuleAST, aliases importAliases, registry *moduleRegistry) {
	for _, fn := range ast.AllFunctions() {
		callerFQN := ast.ModuleID + "::" + fn.QualifiedName
		for _, cs := range fn.CallSites {
			calleeFQN, resolved := resolveCallSite(cs, ast, aliases, registry)
			if !resolved {
				calleeFQN = model.ExternalNode
			}
			async := calleeAsync(cg, calleeFQN) != fn.IsAsync
			if fn.IsAsync && !cs.Awaited {
				async = true
			}
			cg.AddEdge(callerFQN, model.EdgeMeta{
				Callee:                calleeFQN,
				CallSiteLine:          cs.Line,
				Awaited:               cs.Awaited,
				AsyncBoundaryCrossing: async,
			})
		}
	}
}

func calleeAsync(cg *model.CallGraph, fqn string) bool {
	if fn, ok := cg.Nodes[fqn]; ok {
		return fn.IsAsync
	}
	return false
}

// resolveCallSite resolves a CallSite to a fully qualified function name
// using, in order: (1) same-module lookup by short name, (2) resolved
// import alias lookup (receiver or dotted callee prefix resolves to an
// imported module, remainder resolves within it).
func resolveCallSite(cs model.CallSite, ast *model.ModuleAST, aliases importAliases, registry *moduleRegistry) (string, bool) {
	callee := cs.Callee
	// Strip a receiver prefix like "self." for method calls within the
	// same module; these resolve via same-module lookup on the bare name.
	name := callee
	if idx := lastDot(callee); idx >= 0 {
		name = callee[idx+1:]
	}

	if names, ok := registry.byModule[ast.ModuleID]; ok {
		if fqn, ok := names[name]; ok {
			return fqn, true
		}
		if fqn, ok := names[callee]; ok {
			return fqn, true
		}
	}

	if cs.Receiver != "" {
		if mod, ok := aliases[cs.Receiver]; ok {
			if names, ok := registry.byModule[mod]; ok {
				if fqn, ok := names[name]; ok {
					return fqn, true
				}
			}
		}
	}
	if mod, ok := aliases[callee]; ok {
		if names, ok := registry.byModule[mod]; ok {
			if fqn, ok := names[name]; ok {
				return fqn, true
			}
		}
	}

	return "", false
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

func markEntryPoints(cg *model.CallGraph, ast *model.ModuleAST) {
	for _, fn := range ast.AllFunctions() {
		fqn := ast.ModuleID + "::" + fn.QualifiedName
		if fn.Name == "main" {
			cg.EntryPoints[fqn] = true
			continue
		}
		for _, d := range fn.Decorators {
			if isEntryPointDecorator(d) {
				cg.EntryPoints[fqn] = true
				break
			}
		}
	}
}

func isEntryPointDecorator(d string) bool {
	for _, allowed := range EntryPointDecorators {
		if d == allowed || hasSuffixDot(d, allowed) {
			return true
		}
	}
	return false
}

func hasSuffixDot(d, allowed string) bool {
	return len(d) > len(allowed) && d[len(d)-len(allowed):] == allowed && d[len(d)-len(allowed)-1] == '.'
}

// recordSharedState populates cg.SharedState from each function's
// GlobalAccess list, restricted to names that are actual module-level
// assignments in this module (the extractor records every bare-name
// access; here we filter to genuinely shared state).
func recordSharedState(cg *model.CallGraph, ast *model.ModuleAST) {
	moduleVars := map[string]bool{}
	for _, a := range ast.Assignments {
		moduleVars[a.Name] = true
	}
	if len(moduleVars) == 0 {
		return
	}
	for _, fn := range ast.AllFunctions() {
		fqn := ast.ModuleID + "::" + fn.QualifiedName
		for _, acc := range fn.GlobalAccess {
			if !moduleVars[acc.Name] {
				continue
			}
			set := cg.SharedStateFor(ast.ModuleID + "::" + acc.Name)
			if acc.Write {
				set.Writers[fqn] = true
			} else {
				set.Readers[fqn] = true
			}
		}
		// Mutating-method calls on a module-level receiver also count as
		// writes, per the shared-state definition.
		for _, cs := range fn.CallSites {
			if cs.Receiver != "" && moduleVars[cs.Receiver] && isMutatingMethod(cs.Callee) {
				set := cg.SharedStateFor(ast.ModuleID + "::" + cs.Receiver)
				set.Writers[fqn] = true
			}
		}
	}
}

var mutatingMethods = map[string]bool{
	"append": true, "extend": true, "update": true, "add": true,
	"pop": true, "remove": true, "clear": true, "insert": true,
	"sort": true, "setdefault": true, "popitem": true,
}

func isMutatingMethod(callee string) bool {
	name := callee
	if idx := lastDot(callee); idx >= 0 {
		name = callee[idx+1:]
	}
	return mutatingMethods[name]
}
