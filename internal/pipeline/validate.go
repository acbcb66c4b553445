package pipeline

import (
	"fmt"

	"github.com/blastshield/engine/internal/model"
)

// validateInput performs the one class of error that is allowed to bubble
// to the caller: request-level validation. Everything past this
// point is recovered locally and downgraded into a violation instead.
func validateInput(files []model.FileInput) *model.EngineError {
	if len(files) == 0 {
		return model.NewEngineError(model.ErrEmptyFileSet, "no files were submitted for scanning")
	}
	return nil
}

// partitionBySize splits files by the per-file byte cap. Oversize files
// are not a request-level failure (resolving the apparent tension between
// the "non-fatal skipped-file marker" and the input-validation listing
// in favor of the more operational of the two): each is skipped with
// a synthetic low-severity violation instead of aborting the whole scan.
func partitionBySize(files []model.FileInput, maxFileSizeBytes int64) (accepted []model.FileInput, skipped []model.RuleViolation) {
	for _, f := range files {
		if int64(len(f.Content)) > maxFileSizeBytes {
			skipped = append(skipped, model.RuleViolation{
				RuleID:   "oversize_file",
				Severity: model.SeverityLow,
				File:     f.Path,
				Title:    "file skipped: exceeds size cap",
				Description: fmt.Sprintf(
					"file %q (%d bytes) exceeds the %d byte per-file cap and was excluded from analysis",
					f.Path, len(f.Content), maxFileSizeBytes,
				),
			})
			continue
		}
		accepted = append(accepted, f)
	}
	return accepted, skipped
}
