package output

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Spinner wraps an indeterminate progressbar.ProgressBar for
// long-running operations with no known total, such as polling a
// background scan to completion.
type Spinner struct {
	bar    *progressbar.ProgressBar
	active bool
}

// NewSpinner starts a spinner described by description, or falls back
// to a single descriptive line when w is not a TTY.
func NewSpinner(w io.Writer, description string) *Spinner {
	if !IsTTY(w) {
		fmt.Fprintf(w, "%s...\n", description)
		return &Spinner{active: false}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSpinnerType(14),
	)
	return &Spinner{bar: bar, active: true}
}

// Tick advances the spinner one frame; a no-op in non-TTY mode.
func (s *Spinner) Tick() {
	if s.active {
		_ = s.bar.Add(1)
	}
}

// Finish completes and clears the spinner.
func (s *Spinner) Finish() {
	if s.active {
		_ = s.bar.Finish()
	}
}
