package output

import (
	"fmt"
	"io"

	"github.com/blastshield/engine/internal/model"
)

// TextFormatter renders a ScanReport as human-readable text for
// terminal consumers.
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter returns a formatter writing to w.
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the report header, one line per issue, then the
// summary.
func (f *TextFormatter) Format(report model.ScanReport) {
	if len(report.Issues) == 0 {
		fmt.Fprintln(f.writer, "BlastShield: no issues found.")
		return
	}

	fmt.Fprintln(f.writer, "BlastShield Security Scan")
	fmt.Fprintln(f.writer)
	for _, issue := range report.Issues {
		fmt.Fprintf(f.writer, "[%s] %s:%d %s (%s)\n", issue.Severity, issue.File, issue.Line, issue.Issue, issue.RuleID)
		if issue.Explanation != "" {
			fmt.Fprintf(f.writer, "    %s\n", issue.Explanation)
		}
		if issue.Risk != "" {
			fmt.Fprintf(f.writer, "    risk: %s\n", issue.Risk)
		}
		for _, p := range issue.Patches {
			fmt.Fprintf(f.writer, "    patch hint (%s:%d-%d): %s\n", p.File, p.StartLine, p.EndLine, p.NewCode)
		}
	}
	fmt.Fprintln(f.writer)
	fmt.Fprintln(f.writer, report.Summary)
}
