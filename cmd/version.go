package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blastshield/engine/internal/output"
	"github.com/blastshield/engine/internal/pipeline"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and engine information",
	Run: func(cmd *cobra.Command, _ []string) {
		noBanner, _ := cmd.Parent().PersistentFlags().GetBool("no-banner")
		if output.ShouldShowBanner(output.IsTTY(os.Stderr), noBanner) {
			output.PrintBanner(os.Stderr, Version, output.DefaultBannerOptions())
		} else if output.IsTTY(os.Stderr) && !noBanner {
			fmt.Fprintln(os.Stderr, output.CompactBanner(Version))
			fmt.Fprintln(os.Stderr)
		}

		fmt.Printf("CLI version: %s\n", Version)
		fmt.Printf("Engine version: %s\n", pipeline.EngineVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
