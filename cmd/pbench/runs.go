package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proteobench/benchcore/internal/store"
	"github.com/proteobench/benchcore/internal/util"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List benchmark runs recorded in the database",
	Long: `List the runs of the selected module, newest first.

Each run shows its datapoint id, tool, status, number of features and
median absolute epsilon. Submitted runs also show their pull request.

Examples:
  # Last 10 runs
  pbench runs --limit 10

  # Every module, as CSV
  pbench runs --all-modules --output csv > runs.csv
`,
	RunE: runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntP("limit", "l", 20, "limit number of results (0 = no limit)")
	runsCmd.Flags().Bool("all-modules", false, "list runs of every module")
	runsCmd.Flags().StringP("output", "o", "human", "output format: human, jsonl, csv")
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	allModules, _ := cmd.Flags().GetBool("all-modules")
	output, _ := cmd.Flags().GetString("output")

	db, err := store.Open(viper.GetString("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	moduleID := util.ModuleID()
	if allModules {
		moduleID = ""
	}
	runs, err := db.ListRuns(moduleID, limit)
	if err != nil {
		return err
	}

	switch output {
	case "jsonl":
		return outputRunsJSONL(runs)
	case "csv":
		return outputRunsCSV(runs)
	case "human":
		outputRunsHuman(runs)
		return nil
	default:
		return fmt.Errorf("invalid output format: %s (use human, jsonl, or csv)", output)
	}
}

func outputRunsHuman(runs []*store.Run) {
	if len(runs) == 0 {
		util.WarnLog("No runs found. Run 'pbench benchmark' first.")
		return
	}

	util.InfoLog("=== Runs (%d) ===", len(runs))
	for _, r := range runs {
		util.InfoLog("")
		util.InfoLog("%s", r.ID)
		util.InfoLog("  Tool: %s  Module: %s", r.Tool, r.ModuleID)
		util.InfoLog("  Status: %s (%s)", r.Status, humanize.Time(r.UpdatedAt))
		util.InfoLog("  Features: %s  Median abs epsilon: %.4f", humanize.Comma(int64(r.NrPrec)), r.MedianAbsEpsilon)
		util.InfoLog("  Input: %s", r.InputPath)
		if r.PRURL != "" {
			util.InfoLog("  Pull request: %s", r.PRURL)
		}
		if r.Error != "" {
			util.WarnLog("  Error: %s", r.Error)
		}
	}
}

type runRecord struct {
	ID               string  `json:"id"`
	Module           string  `json:"module"`
	Tool             string  `json:"tool"`
	Status           string  `json:"status"`
	NrPrec           int     `json:"nr_prec"`
	MedianAbsEpsilon float64 `json:"median_abs_epsilon"`
	IntermediateHash string  `json:"intermediate_hash"`
	Input            string  `json:"input"`
	PRURL            string  `json:"pr_url,omitempty"`
	Error            string  `json:"error,omitempty"`
	UpdatedAt        string  `json:"updated_at"`
}

func toRecord(r *store.Run) runRecord {
	return runRecord{
		ID:               r.ID,
		Module:           r.ModuleID,
		Tool:             r.Tool,
		Status:           r.Status,
		NrPrec:           r.NrPrec,
		MedianAbsEpsilon: r.MedianAbsEpsilon,
		IntermediateHash: r.IntermediateHash,
		Input:            r.InputPath,
		PRURL:            r.PRURL,
		Error:            r.Error,
		UpdatedAt:        r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func outputRunsJSONL(runs []*store.Run) error {
	encoder := json.NewEncoder(os.Stdout)
	for _, r := range runs {
		if err := encoder.Encode(toRecord(r)); err != nil {
			return err
		}
	}
	return nil
}

func outputRunsCSV(runs []*store.Run) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"id", "module", "tool", "status", "nr_prec", "median_abs_epsilon", "intermediate_hash", "input", "pr_url", "updated_at"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range runs {
		rec := toRecord(r)
		row := []string{
			rec.ID, rec.Module, rec.Tool, rec.Status,
			strconv.Itoa(rec.NrPrec),
			strconv.FormatFloat(rec.MedianAbsEpsilon, 'f', -1, 64),
			rec.IntermediateHash, rec.Input, rec.PRURL, rec.UpdatedAt,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
