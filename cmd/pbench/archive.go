package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/score"
	"github.com/proteobench/benchcore/internal/util"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Show the public archive of a module",
	Long: `Download the public archive of the selected module and show it as a
leaderboard on one metric.

When the download fails the last cached copy is shown. Use --offline to
skip the download.

Examples:
  # Median absolute epsilon at 3 observations
  pbench archive

  # Mean over equally weighted species at 5 observations
  pbench archive --cutoff 5 --stat mean --mode eq_species

  # Save the archive as JSON
  pbench archive --save results.json`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().Int("cutoff", score.DefaultCutoff, "minimum number of observations")
	archiveCmd.Flags().String("stat", datapoint.StatMedian, "statistic: median or mean")
	archiveCmd.Flags().String("mode", datapoint.ModeGlobal, "mode: global or eq_species")
	archiveCmd.Flags().Bool("offline", false, "use the cached archive only")
	archiveCmd.Flags().String("save", "", "write the archive JSON to this file")
}

func runArchive(cmd *cobra.Command, args []string) error {
	cutoff, _ := cmd.Flags().GetInt("cutoff")
	stat, _ := cmd.Flags().GetString("stat")
	mode, _ := cmd.Flags().GetString("mode")
	offline, _ := cmd.Flags().GetBool("offline")
	savePath, _ := cmd.Flags().GetString("save")

	if cutoff < score.MinCutoff || cutoff > score.MaxCutoff {
		return fmt.Errorf("cutoff must be between %d and %d", score.MinCutoff, score.MaxCutoff)
	}
	if stat != datapoint.StatMedian && stat != datapoint.StatMean {
		return fmt.Errorf("invalid stat: %s (use median or mean)", stat)
	}
	if mode != datapoint.ModeGlobal && mode != datapoint.ModeEqSpecies {
		return fmt.Errorf("invalid mode: %s (use global or eq_species)", mode)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	var archive *datapoint.Archive
	if offline {
		if archive, err = loadCachedArchive(s); err != nil {
			return err
		}
	} else {
		loaded := s.module.LoadPublicArchive(context.Background())
		archive = loaded.Archive
		util.InfoLog("Source: %s", loaded.Source)
	}

	if savePath != "" {
		b, err := archive.Encode()
		if err != nil {
			return err
		}
		if err := os.WriteFile(savePath, b, 0644); err != nil {
			return fmt.Errorf("failed to save archive: %w", err)
		}
		util.InfoLog("Saved %d datapoints to %s", archive.Len(), savePath)
	}

	rows := archive.View(cutoff, stat, mode)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value < rows[j].Value })

	util.InfoLog("=== %s: %s abs epsilon (%s) at %d observations ===", s.module.ID(), stat, mode, cutoff)
	if len(rows) == 0 {
		util.WarnLog("No datapoints carry this metric.")
		return nil
	}
	for i, r := range rows {
		fmt.Printf("%4d  %-50s  %-16s  %8.4f  %10s\n",
			i+1, r.ID, r.SoftwareName, r.Value, humanize.Comma(int64(r.NrPrec)))
	}
	if skipped := archive.Len() - len(rows); skipped > 0 {
		util.InfoLog("%d datapoints without this metric were skipped", skipped)
	}
	return nil
}

func loadCachedArchive(s *session) (*datapoint.Archive, error) {
	cached, err := s.store.LoadArchive(s.module.ID())
	if err != nil {
		return nil, err
	}
	if cached == nil {
		util.WarnLog("No cached archive for %s. Run 'pbench archive' online first.", s.module.ID())
		return datapoint.NewArchive(), nil
	}
	util.InfoLog("Cached %s", humanize.Time(cached.FetchedAt))
	return datapoint.ParseArchive(cached.Body)
}
