package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blastshield/engine/internal/output"
)

var (
	Version = "0.1.0"

	verboseFlag  bool
	noBannerFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "blastshield",
	Short: "Deterministic-first Python SAST engine",
	Long: `BlastShield - a Python source-code security scanner.

Runs eight deterministic rules over a call graph and data-flow analysis,
scores findings by risk, and optionally refines explanations with an LLM
gated by risk threshold. Results are always produced by the deterministic
stages; the LLM can only enrich, never gate, a finding.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verboseFlag, _ = cmd.Flags().GetBool("verbose") //nolint:all

		if cmd.Name() == "help" || (len(os.Args) == 1 || (len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h"))) {
			if output.ShouldShowBanner(output.IsTTY(os.Stderr), noBannerFlag) {
				output.PrintBanner(os.Stderr, Version, output.DefaultBannerOptions())
			} else if output.IsTTY(os.Stderr) && !noBannerFlag {
				fmt.Fprintln(os.Stderr, output.CompactBanner(Version))
				fmt.Fprintln(os.Stderr)
			}
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Verbose logging")
	rootCmd.PersistentFlags().BoolVar(&noBannerFlag, "no-banner", false, "Disable startup banner")
}
