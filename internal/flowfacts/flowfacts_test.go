package flowfacts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
	"github.com/blastshield/engine/internal/pyast"
)

func parseFunc(t *testing.T, src string, name string) (*model.FunctionDef, []*model.ModuleAST) {
	t.Helper()
	asts, _ := pyast.New(nil).ExtractAll(context.Background(), []model.FileInput{{Path: "s.py", Content: []byte(src)}})
	require.Len(t, asts, 1)
	for _, fn := range asts[0].AllFunctions() {
		if fn.Name == name {
			return fn, asts
		}
	}
	t.Fatalf("function %s not found", name)
	return nil, nil
}

func TestTaintedSink_DirectUse(t *testing.T) {
	// eval/exec are deliberately absent from the default sink list: they
	// are owned exclusively by the dangerous_eval rule.
	_, asts := parseFunc(t, "def run(x):\n    return os.system(x)\n", "run")
	facts := New(DefaultConfig()).Analyze(asts)
	f := facts["s::run"]
	require.NotNil(t, f)
	require.Len(t, f.TaintedSinks, 1)
	require.Equal(t, "os.system", f.TaintedSinks[0].Sink)
	require.Equal(t, "x", f.TaintedSinks[0].Param)
}

func TestTaintedSink_EvalExcludedFromDefaultSinks(t *testing.T) {
	_, asts := parseFunc(t, "def run(x):\n    return eval(x)\n", "run")
	facts := New(DefaultConfig()).Analyze(asts)
	f := facts["s::run"]
	require.NotNil(t, f)
	require.Empty(t, f.TaintedSinks)
}

func TestTaintedSink_ClearedBySanitizer(t *testing.T) {
	_, asts := parseFunc(t, "def run(cmd):\n    clean = sanitize(cmd)\n    os.system(clean)\n", "run")
	facts := New(DefaultConfig()).Analyze(asts)
	f := facts["s::run"]
	require.NotNil(t, f)
	require.Empty(t, f.TaintedSinks)
}

func TestSharedContainerMutation(t *testing.T) {
	src := "state = {}\n\ndef write():\n    state['k'] = 1\n"
	asts, _ := pyast.New(nil).ExtractAll(context.Background(), []model.FileInput{{Path: "s.py", Content: []byte(src)}})
	facts := New(DefaultConfig()).Analyze(asts)
	f := facts["s::write"]
	require.NotNil(t, f)
	require.NotEmpty(t, f.MutatedSharedContainers)
}
