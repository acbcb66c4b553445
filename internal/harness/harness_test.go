package harness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
)

func TestSynthesizeBoundaryInputs_SkipsDefaultedParams(t *testing.T) {
	params := []model.Param{
		{Name: "required", HasDefault: false},
		{Name: "optional", HasDefault: true},
	}
	calls := SynthesizeBoundaryInputs(params)
	require.NotEmpty(t, calls)
	for _, c := range calls {
		require.NotContains(t, c.ArgList, ",")
	}
}

func TestSynthesizeBoundaryInputs_NoRequiredParams(t *testing.T) {
	calls := SynthesizeBoundaryInputs([]model.Param{{Name: "self"}, {Name: "x", HasDefault: true}})
	require.Empty(t, calls)
}

func TestBuildHarnessScript_EmbedsTargetCall(t *testing.T) {
	fn := &model.FunctionDef{Name: "run", QualifiedName: "run"}
	calls := []BoundaryCall{{Profile: "none", ArgList: "None"}}
	script, err := buildHarnessScript([]byte("def run(x):\n    return x\n"), fn, calls)
	require.NoError(t, err)
	require.Contains(t, script, `"run"`)
	require.Contains(t, script, "_target(None)")
}

func TestTouchesNetwork(t *testing.T) {
	fn := &model.FunctionDef{CallSites: []model.CallSite{{Callee: "requests.get"}}}
	require.True(t, touchesNetwork(fn))

	clean := &model.FunctionDef{CallSites: []model.CallSite{{Callee: "json.dumps"}}}
	require.False(t, touchesNetwork(clean))
}

func TestEligible_RejectsNestedAndOversized(t *testing.T) {
	h := New(DefaultConfig(), nil)
	nested := &model.FunctionDef{Name: "inner", QualifiedName: "outer.inner"}
	require.False(t, h.eligible(nested))

	tooManyParams := &model.FunctionDef{Name: "f", QualifiedName: "f", Params: make([]model.Param, 10)}
	require.False(t, h.eligible(tooManyParams))

	ok := &model.FunctionDef{Name: "f", QualifiedName: "f", StartLine: 1, EndLine: 5}
	require.True(t, h.eligible(ok))
}
