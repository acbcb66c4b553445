// Response validation: reject the entire response —
// triggering fallback — if any one of V1-V5 holds. Follows the same
// strict, all-or-nothing JSON-IR decode discipline used elsewhere in this
// codebase: unmarshal into a typed struct and reject the whole payload on
// any decode error, never accepting a partially-valid result.
package llmrefine

import (
	"encoding/json"
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// Refinement is one model-proposed enrichment of a single violation.
type Refinement struct {
	RuleID      string        `json:"rule_id"`
	File        string        `json:"file"`
	Line        int           `json:"line"`
	Explanation string        `json:"explanation"`
	Risk        string        `json:"risk"`
	Patches     []model.Patch `json:"patches"`
}

// response is the raw envelope the model is instructed to return.
type response struct {
	Refinements []Refinement `json:"refinements"`
}

// ValidationError names which of V1-V5 rejected the response.
type ValidationError struct {
	Code   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("llmrefine: validation %s: %s", e.Code, e.Detail)
}

// ViolationKey identifies one violation uniquely within a scan — bare
// rule_id is not enough, since a single scan routinely carries multiple
// violations of the same rule_id across different files/lines.
func ViolationKey(ruleID, file string, line int) string {
	return fmt.Sprintf("%s|%s|%d", ruleID, file, line)
}

// Validate parses and checks raw against V1-V5, given the deterministic
// violation set it must stay within. Returns the validated refinements
// keyed by ViolationKey(rule_id, file, line), or a ValidationError naming
// the first violated rule. Partial acceptance is never supported: any
// single failure rejects the whole response, preserving I4.
func Validate(raw string, violations []model.RuleViolation, fileWhitelist []string) (map[string]Refinement, error) {
	var resp response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &ValidationError{Code: "V4", Detail: "response is not valid JSON matching the expected schema: " + err.Error()}
	}

	allowedFiles := toSet(fileWhitelist)
	allowedRules := map[string]bool{}
	byKey := map[string]model.RuleViolation{}
	for _, v := range violations {
		allowedRules[v.RuleID] = true
		byKey[ViolationKey(v.RuleID, v.File, v.Line)] = v
	}

	out := make(map[string]Refinement, len(resp.Refinements))
	for _, r := range resp.Refinements {
		if r.RuleID == "" || r.File == "" || r.Explanation == "" || r.Risk == "" {
			return nil, &ValidationError{Code: "V5", Detail: fmt.Sprintf("refinement for rule_id %q is missing a mandatory field", r.RuleID)}
		}
		if !allowedFiles[r.File] {
			return nil, &ValidationError{Code: "V1", Detail: fmt.Sprintf("file %q is not in the input whitelist", r.File)}
		}
		if !allowedRules[r.RuleID] {
			return nil, &ValidationError{Code: "V3", Detail: fmt.Sprintf("rule_id %q is not in the deterministic violation set", r.RuleID)}
		}
		key := ViolationKey(r.RuleID, r.File, r.Line)
		v, ok := byKey[key]
		if !ok {
			// rule_id is known but this (file, line) pair does not match
			// any violation of it: treat as an unknown reference, same as V3.
			return nil, &ValidationError{Code: "V3", Detail: fmt.Sprintf("rule_id %q at %s:%d does not match any deterministic violation", r.RuleID, r.File, r.Line)}
		}
		for _, p := range r.Patches {
			if !withinEnvelope(p, v) {
				return nil, &ValidationError{Code: "V2", Detail: fmt.Sprintf("patch for %q at [%d,%d] falls outside the ±5 line envelope of violation at [%d,%d]", r.RuleID, p.StartLine, p.EndLine, v.Line, v.EndLine)}
			}
		}
		out[key] = r
	}
	return out, nil
}

// withinEnvelope checks V2: a patch's line range must be fully contained
// in [violation.line - 5, violation.end_line + 5].
func withinEnvelope(p model.Patch, v model.RuleViolation) bool {
	lo := v.Line - 5
	hi := v.EndLine + 5
	return p.StartLine >= lo && p.EndLine <= hi && p.StartLine <= p.EndLine
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}
