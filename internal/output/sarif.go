package output

import (
	"encoding/json"
	"fmt"
	"io"

	sarif "github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/blastshield/engine/internal/model"
)

// SARIFFormatter renders a ScanReport's issues as SARIF 2.1.0, for CI
// tools (GitHub code scanning, etc.) that consume machine-readable
// findings rather than the JSON report shape.
type SARIFFormatter struct {
	writer io.Writer
}

// NewSARIFFormatter returns a formatter writing to w.
func NewSARIFFormatter(w io.Writer) *SARIFFormatter {
	return &SARIFFormatter{writer: w}
}

// Format writes report's issues as one SARIF run.
func (f *SARIFFormatter) Format(report model.ScanReport) error {
	doc, err := sarif.New(sarif.Version210)
	if err != nil {
		return err
	}

	run := sarif.NewRunWithInformationURI("BlastShield", "https://github.com/blastshield/engine")
	f.addRules(report.Issues, run)
	for _, issue := range report.Issues {
		f.addResult(issue, run)
	}
	doc.AddRun(run)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

func (f *SARIFFormatter) addRules(issues []model.Issue, run *sarif.Run) {
	seen := make(map[string]bool)
	for _, issue := range issues {
		if seen[issue.RuleID] {
			continue
		}
		seen[issue.RuleID] = true

		rule := run.AddRule(issue.RuleID).
			WithDescription(issue.Issue).
			WithName(issue.RuleID).
			WithHelpURI("https://github.com/blastshield/engine")
		rule.WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(severityToLevel(issue.Severity)))
		rule.WithProperties(map[string]interface{}{
			"tags":              []string{"security"},
			"security-severity": severityToScore(issue.Severity),
			"precision":         "high",
		})
	}
}

func (f *SARIFFormatter) addResult(issue model.Issue, run *sarif.Run) {
	message := issue.Explanation
	if message == "" {
		message = issue.Issue
	}

	result := run.CreateResultForRule(issue.RuleID).WithMessage(sarif.NewTextMessage(message))

	region := sarif.NewRegion().WithStartLine(issue.Line)
	location := sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(issue.File)).
			WithRegion(region),
	)
	result.AddLocation(location)

	if len(issue.Patches) > 0 {
		result.WithMessage(sarif.NewTextMessage(fmt.Sprintf("%s (%d patch hint(s) suggested)", message, len(issue.Patches))))
	}
}

func severityToLevel(s model.Severity) string {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return "error"
	case model.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

func severityToScore(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "9.0"
	case model.SeverityHigh:
		return "7.0"
	case model.SeverityMedium:
		return "5.0"
	default:
		return "3.0"
	}
}
