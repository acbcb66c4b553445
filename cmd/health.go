package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/blastshield/engine/internal/config"
	"github.com/blastshield/engine/internal/pipeline"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report engine liveness and configured model",
	RunE: func(_ *cobra.Command, _ []string) error {
		engine, closer := pipeline.NewEngine(config.FromEnv(), nil)
		defer closer()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(engine.Health())
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
