package fallback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blastshield/engine/internal/model"
)

func TestExplain_AllEightRuleIDsNonEmpty(t *testing.T) {
	ruleIDs := []string{
		"race_condition",
		"missing_await",
		"dangerous_eval",
		"unsanitized_io",
		"shared_mutable_state",
		"missing_exception_boundary",
		"retry_without_backoff",
		"blocking_io_in_async",
	}
	for _, id := range ruleIDs {
		v := model.RuleViolation{
			RuleID:           id,
			Severity:         model.SeverityHigh,
			File:             "app/worker.py",
			Line:             42,
			EndLine:          42,
			Title:            id,
			AffectedFunction: "do_work",
			Evidence:         []string{"line 42: something happened"},
		}
		issue := Explain(v)
		require.NotEmpty(t, issue.Explanation, id)
		require.NotEmpty(t, issue.Risk, id)
		require.Contains(t, issue.Explanation, "app/worker.py")
		require.Contains(t, issue.Explanation, "do_work")
	}
}

func TestExplain_UnknownRuleIDUsesGenericTemplate(t *testing.T) {
	v := model.RuleViolation{
		RuleID:           "some_future_rule",
		File:             "a.py",
		Line:             1,
		AffectedFunction: "f",
	}
	issue := Explain(v)
	require.NotEmpty(t, issue.Explanation)
	require.NotEmpty(t, issue.Risk)
	require.Contains(t, issue.Explanation, "some_future_rule")
	require.Empty(t, issue.Patches)
}

func TestExplain_PatchHintStaysWithinLineEnvelope(t *testing.T) {
	v := model.RuleViolation{RuleID: "dangerous_eval", File: "a.py", Line: 10, EndLine: 10}
	issue := Explain(v)
	require.Len(t, issue.Patches, 1)
	require.Equal(t, 10, issue.Patches[0].StartLine)
	require.Equal(t, 10, issue.Patches[0].EndLine)
	require.Contains(t, issue.Patches[0].NewCode, "TODO")
}

func TestExplainAll_PreservesOrderAndCount(t *testing.T) {
	violations := []model.RuleViolation{
		{RuleID: "dangerous_eval", File: "a.py", Line: 1},
		{RuleID: "missing_await", File: "a.py", Line: 2},
		{RuleID: "race_condition", File: "a.py", Line: 3},
	}
	issues := ExplainAll(violations)
	require.Len(t, issues, 3)
	for i, v := range violations {
		require.Equal(t, v.RuleID, issues[i].RuleID)
		require.Equal(t, v.Line, issues[i].Line)
	}
}

func TestExplainAll_EmptyInputProducesEmptyOutput(t *testing.T) {
	issues := ExplainAll(nil)
	require.NotNil(t, issues)
	require.Len(t, issues, 0)
}
