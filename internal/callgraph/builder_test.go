package callgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
	"github.com/blastshield/engine/internal/pyast"
)

func TestBuild_SameModuleResolutionAndEntryPoint(t *testing.T) {
	src := `
@app.route("/x")
def main():
    helper()

def helper():
    pass
`
	asts, _ := pyast.New(nil).ExtractAll(context.Background(), []model.FileInput{{Path: "s.py", Content: []byte(src)}})
	cg := New(20).Build(asts)

	mainFQN := "s::main"
	helperFQN := "s::helper"
	require.Contains(t, cg.Nodes, mainFQN)
	require.Contains(t, cg.Nodes, helperFQN)
	require.Contains(t, cg.GetCallees(mainFQN), helperFQN)
	require.True(t, cg.EntryPoints[mainFQN])
}

func TestBuild_UnresolvedCallGoesToExternal(t *testing.T) {
	src := "def run():\n    mystery_call()\n"
	asts, _ := pyast.New(nil).ExtractAll(context.Background(), []model.FileInput{{Path: "s.py", Content: []byte(src)}})
	cg := New(20).Build(asts)
	require.Contains(t, cg.GetCallees("s::run"), model.ExternalNode)
}

func TestBuild_SharedStateWriters(t *testing.T) {
	src := `
state = {}

async def a():
    state['k'] = 1

async def b():
    state['k'] = 2
`
	asts, _ := pyast.New(nil).ExtractAll(context.Background(), []model.FileInput{{Path: "s.py", Content: []byte(src)}})
	cg := New(20).Build(asts)
	set := cg.SharedState["s::state"]
	require.NotNil(t, set)
	require.True(t, set.Writers["s::a"])
	require.True(t, set.Writers["s::b"])
}

func TestBlastRadius(t *testing.T) {
	cg := model.NewCallGraph()
	cg.AddEdge("a", model.EdgeMeta{Callee: "b"})
	cg.AddEdge("b", model.EdgeMeta{Callee: "c"})
	cg.AddEdge("c", model.EdgeMeta{Callee: "a"}) // cycle
	require.Equal(t, 2, cg.BlastRadius("a", 20))
}
