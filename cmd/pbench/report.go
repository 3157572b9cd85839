package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/report"
	"github.com/proteobench/benchcore/internal/store"
	"github.com/proteobench/benchcore/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Generate a summary report for a benchmark run",
	Long: `Generate a summary report of one run in Markdown format.

The report includes:
- Run status, tool, input and pull request
- Summary metrics at every observation cutoff
- Top errors and warnings from the run's event log

The report is saved to artifacts/reports/<run-id>/summary.md`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "output directory for report (default: artifacts/reports/<run-id>)")
	reportCmd.Flags().String("event-log", "", "path to event log file (default: looked up in events-dir)")
}

func runReport(cmd *cobra.Command, args []string) error {
	runID := args[0]
	dbPath := viper.GetString("db")

	util.InfoLog("=== Generating Summary Report ===")
	util.InfoLog("Database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	eventLogPath, _ := cmd.Flags().GetString("event-log")
	if eventLogPath == "" {
		eventLogPath = findEventLog(GetConfigString("events-dir", "artifacts"), run.EventRunID)
	}

	util.InfoLog("Analyzing run...")
	summaryReport, err := report.GenerateSummaryReport(db, runID, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summaryReport.DatabasePath = dbPath

	if run.DatapointJSON != "" {
		dp, err := datapoint.Parse([]byte(run.DatapointJSON))
		if err != nil {
			util.WarnLog("Stored datapoint is unreadable: %v", err)
		} else {
			for k, m := range dp.Results {
				summaryReport.AddCutoff(k, m)
			}
		}
	}

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		outputDir = filepath.Join("artifacts", "reports", runID)
	}
	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summaryReport, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Summary:")
	util.InfoLog("  Status: %s", run.Status)
	util.InfoLog("  Cutoffs: %d", len(summaryReport.Cutoffs))
	if len(summaryReport.TopErrors) > 0 {
		util.WarnLog("  Distinct errors: %d", len(summaryReport.TopErrors))
	}
	if summaryReport.Warnings > 0 {
		util.WarnLog("  Warnings: %d", summaryReport.Warnings)
	}

	return nil
}

// findEventLog returns the event log written by the run with the given
// event run id, or "" when there is none.
func findEventLog(dir, eventRunID string) string {
	if len(eventRunID) < 6 {
		return ""
	}
	matches, err := filepath.Glob(filepath.Join(dir, "events-*-"+eventRunID[len(eventRunID)-6:]+".jsonl"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}
