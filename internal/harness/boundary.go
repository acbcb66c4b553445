package harness

import (
	"fmt"
	"strings"

	"github.com/blastshield/engine/internal/model"
)

// BoundaryCall is one synthesized invocation: ArgList is the Python
// positional-argument literal list for the target call.
type BoundaryCall struct {
	Profile string
	ArgList string
}

// boundaryProfile names one boundary-condition sweep applied uniformly
// across a function's parameter list, with an annotation-aware literal
// chooser for a handful of explicitly recognized annotations.
type boundaryProfile struct {
	name    string
	literal func(ann string) string
}

// boundaryProfiles implements the fallback list: None, empty string, a
// long string, zero, negative, an oversized integer, an empty collection,
// a collection of nulls, and known-malicious strings.
var boundaryProfiles = []boundaryProfile{
	{"none", func(string) string { return "None" }},
	{"empty_string", func(ann string) string { return literalForKind(ann, `""`, "[]", "{}") }},
	{"long_string", func(ann string) string { return literalForKind(ann, `"`+strings.Repeat("A", 4096)+`"`, "[]", "{}") }},
	{"zero", func(ann string) string { return literalForKind(ann, "0", "[]", "{}") }},
	{"negative", func(ann string) string { return literalForKind(ann, "-1", "[]", "{}") }},
	{"oversized_int", func(ann string) string { return literalForKind(ann, "10**18", "[]", "{}") }},
	{"empty_collection", func(ann string) string { return literalForKind(ann, `""`, "[]", "{}") }},
	{"collection_of_nulls", func(ann string) string { return literalForKind(ann, "None", "[None, None]", `{"a": None}`) }},
	{"malicious_strings", func(ann string) string {
		return literalForKind(ann, `"'; DROP TABLE users; --"`, `["../../etc/passwd"]`, `{"__proto__": "x"}`)
	}},
}

// literalForKind picks the scalar/sequence/mapping literal matching a
// parameter's annotation, falling back to the scalar literal when the
// annotation gives no hint (most Python code is unannotated).
func literalForKind(ann, scalar, sequence, mapping string) string {
	switch {
	case strings.Contains(ann, "List") || strings.Contains(ann, "list") || strings.Contains(ann, "Sequence"):
		return sequence
	case strings.Contains(ann, "Dict") || strings.Contains(ann, "dict") || strings.Contains(ann, "Mapping"):
		return mapping
	default:
		return scalar
	}
}

// SynthesizeBoundaryInputs produces one BoundaryCall per boundary profile,
// applying that profile's literal to every parameter (skipping parameters
// that already carry a default, since a boundary sweep on a defaulted
// parameter is redundant with its natural default).
func SynthesizeBoundaryInputs(params []model.Param) []BoundaryCall {
	required := make([]model.Param, 0, len(params))
	for _, p := range params {
		if p.Name == "self" || p.Name == "cls" {
			continue
		}
		if p.HasDefault {
			continue
		}
		required = append(required, p)
	}
	if len(required) == 0 {
		return nil
	}

	calls := make([]BoundaryCall, 0, len(boundaryProfiles))
	for _, prof := range boundaryProfiles {
		args := make([]string, len(required))
		for i, p := range required {
			args[i] = prof.literal(p.Annotation)
		}
		calls = append(calls, BoundaryCall{Profile: prof.name, ArgList: strings.Join(args, ", ")})
	}
	return calls
}

// DescribeCalls renders a short human-readable summary of the profiles
// exercised, used for audit/debug logging rather than the scorer.
func DescribeCalls(calls []BoundaryCall) string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Profile
	}
	return fmt.Sprintf("[%s]", strings.Join(names, ", "))
}
