package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proteobench/benchcore/internal/artifact"
	"github.com/proteobench/benchcore/internal/bench"
	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/meta"
	"github.com/proteobench/benchcore/internal/metrics"
	"github.com/proteobench/benchcore/internal/score"
	"github.com/proteobench/benchcore/internal/util"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark <input> [secondary]",
	Short: "Score a tool output and compare it with the public archive",
	Long: `Score the output of a quantification tool for the selected module.

This command:
1. Parses the input with the tool's parse settings
2. Normalizes it to one row per feature and raw file
3. Scores the features against the expected species ratios
4. Builds a temporary datapoint and merges it into the public archive

The datapoint and the scored table are written to the output directory.
Use --submit to open a pull request with the new datapoint right away.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	benchmarkCmd.Flags().StringP("tool", "t", "", "tool that produced the input (see 'pbench tools')")
	benchmarkCmd.Flags().String("metadata", "", "run metadata YAML file")
	benchmarkCmd.Flags().StringSlice("params", nil, "tool parameter files to read metadata from")
	benchmarkCmd.Flags().Int("cutoff", score.DefaultCutoff, "minimum number of observations for the summary metrics")
	benchmarkCmd.Flags().String("out", "", "output directory (default: artifacts/runs)")
	benchmarkCmd.Flags().String("metrics-out", "", "write Prometheus metrics to this textfile")
	benchmarkCmd.Flags().Bool("offline", false, "do not download the public archive")
	benchmarkCmd.Flags().Bool("require-features", false, "fail when no feature survives filtering")
	benchmarkCmd.Flags().Bool("submit", false, "submit the datapoint as a pull request")
	benchmarkCmd.Flags().String("token", "", "GitHub token for --submit (or PBENCH_TOKEN)")
	benchmarkCmd.Flags().String("comments", "", "comments shown in the pull request")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	tool, _ := cmd.Flags().GetString("tool")
	if tool == "" {
		return fmt.Errorf("tool is required (use --tool/-t)")
	}
	metadataPath, _ := cmd.Flags().GetString("metadata")
	paramFiles, _ := cmd.Flags().GetStringSlice("params")
	cutoff, _ := cmd.Flags().GetInt("cutoff")
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = filepath.Join("artifacts", "runs")
	}
	metricsOut, _ := cmd.Flags().GetString("metrics-out")
	offline, _ := cmd.Flags().GetBool("offline")
	requireFeatures, _ := cmd.Flags().GetBool("require-features")
	submit, _ := cmd.Flags().GetBool("submit")

	md, err := loadMetadata(metadataPath, tool, paramFiles)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if metricsOut != "" {
		defer func() {
			if err := metrics.Default().WriteTextfile(metricsOut); err != nil {
				util.WarnLog("Failed to write metrics: %v", err)
			}
		}()
	}

	util.InfoLog("=== Benchmark ===")
	util.InfoLog("Module: %s", s.module.ID())
	util.InfoLog("Tool: %s", tool)
	for _, p := range args {
		if info, err := os.Stat(p); err == nil {
			util.InfoLog("Input: %s (%s)", p, humanize.Bytes(uint64(info.Size())))
		}
	}

	archive := datapoint.NewArchive()
	if !offline {
		loaded := s.module.LoadPublicArchive(ctx)
		archive = loaded.Archive
		util.InfoLog("Archive: %d datapoints (%s)", archive.Len(), loaded.Source)
	}

	req := &bench.Request{
		Input:           bench.Input{Path: args[0]},
		Tool:            tool,
		Metadata:        md,
		Archive:         archive,
		Cutoff:          cutoff,
		RequireFeatures: requireFeatures,
	}
	if len(args) > 1 {
		req.Secondary = &bench.Input{Path: args[1]}
	}

	start := time.Now()
	res, err := s.module.Benchmark(ctx, req)
	if err != nil {
		return err
	}
	defer res.Close()

	if res.Partial() {
		for _, w := range res.Warnings {
			util.WarnLog("%s", bench.UserMessage(w))
		}
		return nil
	}

	util.SuccessLog("Scored %s features in %v", humanize.Comma(int64(res.Intermediate.Len())), time.Since(start).Round(time.Millisecond))
	printMetrics(res.Datapoint, cutoff)
	printRank(res.Archive, res.Datapoint, cutoff)

	dpPath, csvPath, err := writeRunOutputs(outDir, res)
	if err != nil {
		return err
	}
	util.InfoLog("")
	util.InfoLog("Datapoint: %s", dpPath)
	util.InfoLog("Scored table: %s", csvPath)

	if !submit {
		util.InfoLog("")
		util.InfoLog("Next step: pbench submit %s --token <token>", dpPath)
		return nil
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = viper.GetString("token")
	}
	comments, _ := cmd.Flags().GetString("comments")
	if comments == "" {
		comments = md.SubmissionComments
	}
	sub, err := s.module.Submit(ctx, &bench.SubmitRequest{
		Datapoint: res.Datapoint,
		Token:     token,
		Comments:  comments,
		Bundle: &artifact.Bundle{
			Input:        res.InputPaths[0],
			Params:       paramFiles,
			Intermediate: res.Intermediate,
		},
	})
	if err != nil {
		return err
	}
	util.InfoLog("Pull request: %s", sub.PR.URL)
	return nil
}

// loadMetadata reads the metadata file and fills the gaps from the tool
// parameter files. Values from the metadata file win.
func loadMetadata(path, tool string, paramFiles []string) (*meta.UserMetadata, error) {
	md := &meta.UserMetadata{}
	if path != "" {
		var err error
		if md, err = meta.Load(path); err != nil {
			return nil, err
		}
	}
	for _, p := range paramFiles {
		params, err := meta.ExtractParams(tool, p)
		if err != nil {
			return nil, err
		}
		md.Merge(params)
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

func printMetrics(dp *datapoint.Datapoint, cutoff int) {
	util.InfoLog("")
	util.InfoLog("Metrics at %d observations:", cutoff)
	if n, ok := dp.NrPrecAt(cutoff); ok {
		util.InfoLog("  Features: %s", humanize.Comma(int64(n)))
	}
	for _, stat := range []string{datapoint.StatMedian, datapoint.StatMean} {
		for _, mode := range []string{datapoint.ModeGlobal, datapoint.ModeEqSpecies} {
			if v, ok := dp.MetricAt(cutoff, stat, mode); ok {
				util.InfoLog("  %s abs epsilon (%s): %.4f", stat, mode, v)
			}
		}
	}
	if v, ok := dp.Value(cutoff, score.MetricROCAUC); ok {
		util.InfoLog("  ROC AUC: %.4f", v)
	}
	if v, ok := dp.Value(cutoff, score.MetricROCAUCDirectional); ok {
		util.InfoLog("  Directional ROC AUC: %.4f", v)
	}
}

// printRank places dp among the archive points by median abs epsilon
func printRank(a *datapoint.Archive, dp *datapoint.Datapoint, cutoff int) {
	rows := a.View(cutoff, datapoint.StatMedian, datapoint.ModeGlobal)
	if len(rows) < 2 {
		return
	}
	own, ok := dp.MetricAt(cutoff, datapoint.StatMedian, datapoint.ModeGlobal)
	if !ok {
		return
	}
	rank := 1
	for _, r := range rows {
		if r.ID != dp.ID && r.Value < own {
			rank++
		}
	}
	util.InfoLog("  Rank: %s of %d datapoints", humanize.Ordinal(rank), len(rows))
}

// writeRunOutputs writes <out>/<hash>.json and <out>/<hash>/result_performance.csv
func writeRunOutputs(outDir string, res *bench.Result) (string, string, error) {
	dpPath, err := datapoint.WriteFile(outDir, res.Datapoint)
	if err != nil {
		return "", "", err
	}

	csvPath := filepath.Join(outDir, res.Datapoint.IntermediateHash, artifact.IntermediateEntry)
	if err := os.MkdirAll(filepath.Dir(csvPath), 0755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}
	b, err := res.Intermediate.Bytes()
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(csvPath, b, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write scored table: %w", err)
	}
	return dpPath, csvPath, nil
}
