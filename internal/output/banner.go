package output

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

// BannerOptions configures the startup banner display.
type BannerOptions struct {
	ShowBanner  bool
	ShowVersion bool
	ShowTagline bool
}

// DefaultBannerOptions returns the full banner: logo, version, tagline.
func DefaultBannerOptions() BannerOptions {
	return BannerOptions{ShowBanner: true, ShowVersion: true, ShowTagline: true}
}

// PrintBanner writes the BlastShield logo and version line to w.
func PrintBanner(w io.Writer, version string, opts BannerOptions) {
	if w == nil {
		return
	}

	if !opts.ShowBanner {
		if opts.ShowVersion {
			fmt.Fprintf(w, "BlastShield v%s\n", version)
		}
		if opts.ShowTagline {
			fmt.Fprintln(w, "Deterministic-first Python SAST engine")
		}
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w, ASCIILogo())
	if opts.ShowVersion {
		fmt.Fprintf(w, "BlastShield v%s\n", version)
	}
	if opts.ShowTagline {
		fmt.Fprintln(w, "Deterministic-first Python SAST engine")
	}
	fmt.Fprintln(w)
}

// ASCIILogo renders "BlastShield" with go-figure's standard font.
func ASCIILogo() string {
	fig := figure.NewFigure("BlastShield", "standard", true)
	return fig.String()
}

// CompactBanner is a single-line banner for non-TTY output.
func CompactBanner(version string) string {
	return fmt.Sprintf("BlastShield v%s | deterministic-first Python SAST engine", version)
}

// ShouldShowBanner reports whether the full ASCII banner should print:
// never with --no-banner, only on a TTY otherwise.
func ShouldShowBanner(isTTY bool, noBannerFlag bool) bool {
	if noBannerFlag {
		return false
	}
	return isTTY
}
