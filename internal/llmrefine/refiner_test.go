package llmrefine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
)

func TestShouldInvoke_ThresholdOrCritical(t *testing.T) {
	require.True(t, ShouldInvoke(75, nil, 70))
	require.False(t, ShouldInvoke(10, nil, 70))
	require.True(t, ShouldInvoke(10, []model.RuleViolation{{Severity: model.SeverityCritical}}, 70))
}

func TestValidate_AcceptsWellFormedResponse(t *testing.T) {
	violations := []model.RuleViolation{{RuleID: "dangerous_eval", File: "a.py", Line: 10, EndLine: 10}}
	raw, _ := json.Marshal(map[string]any{
		"refinements": []map[string]any{
			{
				"rule_id":     "dangerous_eval",
				"file":        "a.py",
				"line":        10,
				"explanation": "eval is dangerous",
				"risk":        "arbitrary code execution",
				"patches": []map[string]any{
					{"file": "a.py", "start_line": 9, "end_line": 11, "new_code": "# TODO: sanitise input"},
				},
			},
		},
	})
	refs, err := Validate(string(raw), violations, []string{"a.py"})
	require.NoError(t, err)
	require.Contains(t, refs, ViolationKey("dangerous_eval", "a.py", 10))
}

func TestValidate_KeysByRuleFileAndLineNotBareRuleID(t *testing.T) {
	violations := []model.RuleViolation{
		{RuleID: "dangerous_eval", File: "a.py", Line: 10, EndLine: 10},
		{RuleID: "dangerous_eval", File: "a.py", Line: 50, EndLine: 50},
	}
	raw := `{"refinements":[
		{"rule_id":"dangerous_eval","file":"a.py","line":10,"explanation":"x1","risk":"y1"},
		{"rule_id":"dangerous_eval","file":"a.py","line":50,"explanation":"x2","risk":"y2"}
	]}`
	refs, err := Validate(raw, violations, []string{"a.py"})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, "x1", refs[ViolationKey("dangerous_eval", "a.py", 10)].Explanation)
	require.Equal(t, "x2", refs[ViolationKey("dangerous_eval", "a.py", 50)].Explanation)
}

func TestValidate_RejectsUnknownFile(t *testing.T) {
	violations := []model.RuleViolation{{RuleID: "dangerous_eval", File: "a.py", Line: 10, EndLine: 10}}
	raw := `{"refinements":[{"rule_id":"dangerous_eval","file":"b.py","line":10,"explanation":"x","risk":"y"}]}`
	_, err := Validate(raw, violations, []string{"a.py"})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "V1", ve.Code)
}

func TestValidate_RejectsUnknownRuleID(t *testing.T) {
	violations := []model.RuleViolation{{RuleID: "dangerous_eval", File: "a.py", Line: 10, EndLine: 10}}
	raw := `{"refinements":[{"rule_id":"missing_await","file":"a.py","line":10,"explanation":"x","risk":"y"}]}`
	_, err := Validate(raw, violations, []string{"a.py"})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "V3", ve.Code)
}

func TestValidate_RejectsPatchOutsideEnvelope(t *testing.T) {
	violations := []model.RuleViolation{{RuleID: "dangerous_eval", File: "a.py", Line: 10, EndLine: 10}}
	raw := `{"refinements":[{"rule_id":"dangerous_eval","file":"a.py","line":10,"explanation":"x","risk":"y","patches":[{"file":"a.py","start_line":1,"end_line":2,"new_code":"z"}]}]}`
	_, err := Validate(raw, violations, []string{"a.py"})
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "V2", ve.Code)
}

func TestValidate_RejectsMalformedJSON(t *testing.T) {
	_, err := Validate("not json", nil, nil)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "V4", ve.Code)
}

func TestRefine_FallsBackOnValidatorRejection(t *testing.T) {
	mock := &MockClient{Response: `{"refinements":[{"rule_id":"unknown_rule","file":"a.py","line":1,"explanation":"x","risk":"y"}]}`}
	r := New(mock, DefaultConfig(), nil)
	violations := []model.RuleViolation{{RuleID: "dangerous_eval", File: "a.py", Line: 1, EndLine: 1, GraphNodeID: "a::f"}}
	graph := model.NewCallGraph()
	refs, _, err := r.Refine(context.Background(), violations, graph, nil, []string{"a.py"})
	require.Error(t, err)
	require.Nil(t, refs)
}

func TestRefine_NilClientExhaustsImmediately(t *testing.T) {
	r := New(nil, DefaultConfig(), nil)
	_, _, err := r.Refine(context.Background(), nil, model.NewCallGraph(), nil, nil)
	require.ErrorIs(t, err, ErrBudgetExhausted)
}
