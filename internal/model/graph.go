package model

// EdgeMeta carries per-edge properties beyond the plain adjacency: which
// call site produced it, whether it was awaited, and whether it crosses
// a sync/async boundary.
type EdgeMeta struct {
	Callee                string `json:"callee"`
	CallSiteLine          int    `json:"call_site_line"`
	Awaited               bool   `json:"awaited"`
	AsyncBoundaryCrossing bool   `json:"async_boundary_crossing"`
}

// VarAccessSet is the reader/writer set for one shared module-level
// variable.
type VarAccessSet struct {
	Readers map[string]bool
	Writers map[string]bool
}

// CallGraph is the inter-procedural graph produced by the call-graph
// builder. Nodes are keyed by fully qualified function name
// ("module::function"). Edges carry EdgeMeta so downstream stages never
// need to re-derive awaited/async-boundary facts.
type CallGraph struct {
	Nodes        map[string]*FunctionDef
	NodeModule   map[string]string // FQN -> module id, for (file,line) lookups
	Edges        map[string][]EdgeMeta
	ReverseEdges map[string][]string
	EntryPoints  map[string]bool
	// SharedState maps a module-qualified variable name ("module::var")
	// to the set of functions that read/write it.
	SharedState map[string]*VarAccessSet
}

// ExternalNode is the sentinel callee used for unresolved call sites;
// they terminate blast-radius BFS.
const ExternalNode = "<external>"

// NewCallGraph returns an empty, fully initialized CallGraph.
func NewCallGraph() *CallGraph {
	return &CallGraph{
		Nodes:        map[string]*FunctionDef{},
		NodeModule:   map[string]string{},
		Edges:        map[string][]EdgeMeta{},
		ReverseEdges: map[string][]string{},
		EntryPoints:  map[string]bool{},
		SharedState:  map[string]*VarAccessSet{},
	}
}

// AddEdge registers a directed edge, keeping forward and reverse indices
// consistent. Duplicate (caller, callee, line) edges are not de-duplicated
// here; callers construct one edge per call site.
func (cg *CallGraph) AddEdge(caller string, meta EdgeMeta) {
	cg.Edges[caller] = append(cg.Edges[caller], meta)
	if !containsStr(cg.ReverseEdges[meta.Callee], caller) {
		cg.ReverseEdges[meta.Callee] = append(cg.ReverseEdges[meta.Callee], caller)
	}
}

// GetCallees returns the callee FQNs reachable directly from caller.
func (cg *CallGraph) GetCallees(caller string) []string {
	edges := cg.Edges[caller]
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Callee)
	}
	return out
}

// GetCallers returns all functions with a direct edge into callee.
func (cg *CallGraph) GetCallers(callee string) []string {
	return cg.ReverseEdges[callee]
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// SharedStateFor returns (creating if necessary) the access set for a
// module-qualified variable name.
func (cg *CallGraph) SharedStateFor(qualifiedVar string) *VarAccessSet {
	if cg.SharedState[qualifiedVar] == nil {
		cg.SharedState[qualifiedVar] = &VarAccessSet{Readers: map[string]bool{}, Writers: map[string]bool{}}
	}
	return cg.SharedState[qualifiedVar]
}

// BlastRadius is the maximum BFS depth reachable from fqn through
// outgoing edges, bounded by maxDepth. Cycles are permitted; each node is
// visited at most once.
func (cg *CallGraph) BlastRadius(fqn string, maxDepth int) int {
	visited := map[string]bool{fqn: true}
	frontier := []string{fqn}
	depth := 0
	for depth < maxDepth && len(frontier) > 0 {
		var next []string
		for _, n := range frontier {
			for _, callee := range cg.GetCallees(n) {
				if callee == ExternalNode || visited[callee] {
					continue
				}
				visited[callee] = true
				next = append(next, callee)
			}
		}
		if len(next) == 0 {
			break
		}
		depth++
		frontier = next
	}
	return depth
}

// FlowFacts is the per-function output of the data-flow analyser.
type FlowFacts struct {
	FunctionFQN          string
	NullableReturn        bool
	TaintedSinks          []TaintedSink
	MutatedSharedContainers []MutatedContainer
}

// TaintedSink is one instance of tainted data reaching a dangerous sink
// without an intervening sanitiser.
type TaintedSink struct {
	Param       string
	Sink        string
	SinkLine    int
	ViaAlias    string // not set by internal/flowfacts; for an alias flow, Param names the alias passed to the sink
}

// MutatedContainer is one mutation of a module-level shared container from
// within a function body.
type MutatedContainer struct {
	Variable string
	Line     int
	Kind     string // "assign", "index_assign", "mutating_call"
}
