package scorer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
)

func TestScore_EmptyViolations(t *testing.T) {
	b := Score(nil, model.NewCallGraph(), 20, nil)
	require.Equal(t, 0, b.TotalScore)
	require.Empty(t, b.Contributions)
}

func TestScore_SingleCriticalNoFactors(t *testing.T) {
	graph := model.NewCallGraph()
	graph.Nodes["m::f"] = &model.FunctionDef{QualifiedName: "f"}
	vs := []model.RuleViolation{{RuleID: "dangerous_eval", Severity: model.SeverityCritical, GraphNodeID: "m::f"}}
	b := Score(vs, graph, 20, nil)
	// factors = 1.0 (no blast radius, no shared state, no test failure, no async boundary)
	// weighted = 10 * 1.0 = 10; max_possible = 10*2 = 20; total = round(10/20*100) = 50
	require.Equal(t, 50, b.TotalScore)
	require.Equal(t, model.SeverityMedium, Bucket(b.TotalScore))
}

func TestScore_Monotonicity(t *testing.T) {
	graph := model.NewCallGraph()
	graph.Nodes["m::f"] = &model.FunctionDef{QualifiedName: "f"}
	one := Score([]model.RuleViolation{
		{RuleID: "dangerous_eval", Severity: model.SeverityLow, GraphNodeID: "m::f"},
	}, graph, 20, nil)
	two := Score([]model.RuleViolation{
		{RuleID: "dangerous_eval", Severity: model.SeverityLow, GraphNodeID: "m::f"},
		{RuleID: "dangerous_eval", Severity: model.SeverityCritical, GraphNodeID: "m::f"},
	}, graph, 20, nil)
	require.GreaterOrEqual(t, two.TotalScore, one.TotalScore)
}

func TestBucket_Boundaries(t *testing.T) {
	require.Equal(t, model.SeverityLow, Bucket(20))
	require.Equal(t, model.SeverityMedium, Bucket(21))
	require.Equal(t, model.SeverityMedium, Bucket(50))
	require.Equal(t, model.SeverityHigh, Bucket(51))
	require.Equal(t, model.SeverityHigh, Bucket(80))
	require.Equal(t, model.SeverityCritical, Bucket(81))
}

func TestRoundHalfToEven(t *testing.T) {
	require.Equal(t, 2.0, roundHalfToEven(2.5))
	require.Equal(t, 4.0, roundHalfToEven(3.5))
	require.Equal(t, 0.0, roundHalfToEven(0.49))
	require.Equal(t, 1.0, roundHalfToEven(0.51))
}
