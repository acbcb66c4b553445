package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/callgraph"
	"github.com/blastshield/engine/internal/flowfacts"
	"github.com/blastshield/engine/internal/model"
	"github.com/blastshield/engine/internal/pyast"
)

func buildContext(t *testing.T, src string) Context {
	t.Helper()
	asts, _ := pyast.New(nil).ExtractAll(context.Background(), []model.FileInput{{Path: "s.py", Content: []byte(src)}})
	require.Len(t, asts, 1)
	graph := callgraph.New(20).Build(asts)
	facts := flowfacts.New(flowfacts.DefaultConfig()).Analyze(asts)
	return Context{ASTs: asts, Graph: graph, FlowFacts: facts, Config: DefaultConfig()}
}

func findRule(vs []model.RuleViolation, ruleID string) []model.RuleViolation {
	var out []model.RuleViolation
	for _, v := range vs {
		if v.RuleID == ruleID {
			out = append(out, v)
		}
	}
	return out
}

// S1: a direct eval() call on a tainted parameter fires dangerous_eval
// only. eval/exec are owned exclusively by dangerous_eval, so the same
// call site must not also fire unsanitized_io.
func TestScenario_DangerousEvalAndUnsanitizedIO(t *testing.T) {
	ctx := buildContext(t, "def run(user_input):\n    return eval(user_input)\n")
	vs := Run(ctx)

	evals := findRule(vs, "dangerous_eval")
	require.Len(t, evals, 1)
	require.Equal(t, model.SeverityCritical, evals[0].Severity)

	io := findRule(vs, "unsanitized_io")
	require.Empty(t, io)
}

// A literal-string argument to eval/exec never fires dangerous_eval: its
// runtime value is fixed at the call site, so there is nothing dynamic
// about it.
func TestDangerousEval_LiteralStringArgumentDoesNotFire(t *testing.T) {
	ctx := buildContext(t, "def run():\n    return eval('1+1')\n")
	vs := Run(ctx)
	require.Empty(t, findRule(vs, "dangerous_eval"))
}

// S2: missing_await on an async function calling another async function
// without awaiting it.
func TestScenario_MissingAwait(t *testing.T) {
	src := "async def fetch():\n    return 1\n\nasync def run():\n    fetch()\n"
	ctx := buildContext(t, src)
	vs := Run(ctx)

	ma := findRule(vs, "missing_await")
	require.Len(t, ma, 1)
	require.Equal(t, model.SeverityHigh, ma[0].Severity)
	require.Contains(t, ma[0].AffectedFunction, "run")
}

// S3: shared_mutable_state fires on a module-level container mutated by
// two functions reachable from async entry points, and race_condition
// escalates it to critical.
func TestScenario_SharedStateRace(t *testing.T) {
	src := "counters = {}\n\n" +
		"@app.route\n" +
		"async def handler_a():\n    bump_a()\n\n" +
		"@app.route\n" +
		"async def handler_b():\n    bump_b()\n\n" +
		"def bump_a():\n    counters['a'] = 1\n\n" +
		"def bump_b():\n    counters['b'] = 1\n"
	ctx := buildContext(t, src)
	vs := Run(ctx)

	shared := findRule(vs, "shared_mutable_state")
	require.NotEmpty(t, shared)

	race := findRule(vs, "race_condition")
	require.Len(t, race, 1)
	require.Equal(t, model.SeverityCritical, race[0].Severity)
}

func TestRun_StableOrderWithinRule(t *testing.T) {
	src := "def a(x):\n    eval(x)\n\ndef b(y):\n    eval(y)\n"
	ctx := buildContext(t, src)
	vs := Run(ctx)
	evals := findRule(vs, "dangerous_eval")
	require.Len(t, evals, 2)
	require.LessOrEqual(t, evals[0].Line, evals[1].Line)
}

func TestRetryWithoutBackoff(t *testing.T) {
	src := "def poll():\n    while True:\n        requests.get('x')\n        time.sleep(1)\n"
	ctx := buildContext(t, src)
	vs := Run(ctx)
	retries := findRule(vs, "retry_without_backoff")
	require.Len(t, retries, 1)
}

func TestMissingExceptionBoundary(t *testing.T) {
	src := "def main():\n    do_thing()\n"
	ctx := buildContext(t, src)
	vs := Run(ctx)
	boundary := findRule(vs, "missing_exception_boundary")
	require.Len(t, boundary, 1)
}

func TestMissingExceptionBoundary_NonEntryPointNeverFires(t *testing.T) {
	src := "def run():\n    do_thing()\n"
	ctx := buildContext(t, src)
	vs := Run(ctx)
	boundary := findRule(vs, "missing_exception_boundary")
	require.Empty(t, boundary)
}
