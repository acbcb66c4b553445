package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blastshield/engine/internal/config"
	"github.com/blastshield/engine/internal/pipeline"
)

// statusCmd demonstrates the Status operation against a freshly
// constructed Engine. Since this CLI has no persistent server process,
// a scan_id only resolves within the same `scan` invocation that issued
// it (e.g. a background-threshold-exceeding scan polled by a caller
// embedding this engine in a long-lived process); it cannot look up a
// scan_id from an earlier `blastshield scan` invocation.
var statusCmd = &cobra.Command{
	Use:   "status <scan-id>",
	Short: "Poll the lifecycle of a background scan",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, args []string) error {
	engine, closer := pipeline.NewEngine(config.FromEnv(), nil)
	defer closer()

	status, serr := engine.Status(args[0])
	if serr != nil {
		return fmt.Errorf("%s: %s", serr.Code, serr.Message)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}
