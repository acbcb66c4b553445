package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blastshield/engine/internal/config"
	"github.com/blastshield/engine/internal/model"
	"github.com/blastshield/engine/internal/output"
	"github.com/blastshield/engine/internal/pipeline"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a Python project for security vulnerabilities",
	Long: `Scan walks a project directory, collecting every .py file, and runs
the full nine-stage analysis pipeline over them.

Examples:
  # Scan a project, human-readable text to stdout
  blastshield scan --project /path/to/project

  # Scan a pull request's changed files, PR-framed summary
  blastshield scan --project . --pr --files a.py --files b.py

  # SARIF output for CI/CD integration
  blastshield scan --project . --output sarif --output-file results.sarif`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("project", "p", ".", "Project path to scan")
	scanCmd.Flags().StringArray("files", nil, "Scan only these files (relative to --project); repeatable. Implies --pr framing")
	scanCmd.Flags().Bool("pr", false, "Run in PR-scan mode: always inline, summary framed for a pull request")
	scanCmd.Flags().String("output", "text", "Output format: text, json, sarif")
	scanCmd.Flags().String("output-file", "", "Write output to this file instead of stdout")
	scanCmd.Flags().Int("fail-on", 0, "Exit non-zero if risk score is at or above this threshold (0 disables)")
	scanCmd.Flags().String("rule-config", "", "Path to a YAML file overriding rule allow-lists (sink/sanitiser/sleep-equivalent lists)")
}

func runScan(cmd *cobra.Command, _ []string) error {
	projectPath, _ := cmd.Flags().GetString("project")
	filesFlag, _ := cmd.Flags().GetStringArray("files")
	prMode, _ := cmd.Flags().GetBool("pr")
	outputFormat, _ := cmd.Flags().GetString("output")
	outputFile, _ := cmd.Flags().GetString("output-file")
	failOn, _ := cmd.Flags().GetInt("fail-on")
	ruleConfigPath, _ := cmd.Flags().GetString("rule-config")

	files, err := collectFiles(projectPath, filesFlag)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .py files found under %s", projectPath)
	}

	cfg := config.FromEnv()
	if ruleConfigPath != "" {
		cfg.RuleConfigPath = ruleConfigPath
	}
	engine, closer := pipeline.NewEngine(cfg, nil)
	defer closer()

	ctx := context.Background()
	spinner := output.NewSpinner(os.Stderr, "Scanning")

	var report model.ScanReport
	if prMode || len(filesFlag) > 0 {
		r, _, serr := engine.PRScan(ctx, files)
		if serr != nil {
			spinner.Finish()
			return fmt.Errorf("scan failed: %s", serr.Message)
		}
		report = r
	} else {
		resp, serr := engine.Scan(ctx, files, pipeline.ScanModeFull)
		if serr != nil {
			spinner.Finish()
			return fmt.Errorf("scan failed: %s", serr.Message)
		}
		if resp.Report != nil {
			report = *resp.Report
		} else {
			report, err = pollUntilComplete(engine, resp.ScanID, spinner)
			if err != nil {
				spinner.Finish()
				return err
			}
		}
	}
	spinner.Finish()

	if err := writeReport(report, outputFormat, outputFile); err != nil {
		return err
	}

	if failOn > 0 && report.RiskScore >= failOn {
		return fmt.Errorf("risk score %d meets or exceeds --fail-on threshold %d", report.RiskScore, failOn)
	}
	return nil
}

func pollUntilComplete(engine *pipeline.Engine, scanID string, spinner *output.Spinner) (model.ScanReport, error) {
	for {
		status, serr := engine.Status(scanID)
		if serr != nil {
			return model.ScanReport{}, fmt.Errorf("status poll failed: %s", serr.Message)
		}
		switch status.State {
		case pipeline.StateComplete:
			return *status.Report, nil
		case pipeline.StateFailed:
			return model.ScanReport{}, fmt.Errorf("background scan failed: %s", status.Error)
		default:
			spinner.Tick()
		}
	}
}

// collectFiles walks projectPath for *.py files, or resolves an
// explicit --files list relative to it.
func collectFiles(projectPath string, only []string) ([]model.FileInput, error) {
	if len(only) > 0 {
		files := make([]model.FileInput, 0, len(only))
		for _, rel := range only {
			full := filepath.Join(projectPath, rel)
			content, err := os.ReadFile(full)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", full, err)
			}
			files = append(files, model.FileInput{Path: rel, Content: content})
		}
		return files, nil
	}

	var files []model.FileInput
	err := filepath.WalkDir(projectPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "__pycache__" || d.Name() == ".venv" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(projectPath, path)
		if err != nil {
			rel = path
		}
		files = append(files, model.FileInput{Path: rel, Content: content})
		return nil
	})
	return files, err
}

func writeReport(report model.ScanReport, format, outputFile string) error {
	w := os.Stdout
	var closer func() error
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("opening %s: %w", outputFile, err)
		}
		w = f
		closer = f.Close
	}
	defer func() {
		if closer != nil {
			_ = closer()
		}
	}()

	switch format {
	case "sarif":
		return output.NewSARIFFormatter(w).Format(report)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		output.NewTextFormatter(w).Format(report)
		return nil
	}
}
