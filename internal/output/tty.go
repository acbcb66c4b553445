// Package output renders ScanReports for the CLI: a startup banner, a
// plain-text summary (which does not wrap to the terminal width), and an
// optional SARIF document for CI consumers.
package output

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IsTTY reports whether w is connected to a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// TerminalWidth returns the terminal width, or 80 if it cannot be
// determined.
func TerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		width, _, err := term.GetSize(int(f.Fd()))
		if err == nil && width > 0 {
			return width
		}
	}
	return 80
}
