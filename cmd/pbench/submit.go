package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proteobench/benchcore/internal/bench"
	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/util"
)

var submitCmd = &cobra.Command{
	Use:   "submit <datapoint.json>",
	Short: "Submit a datapoint to the public archive",
	Long: `Open a pull request that adds a datapoint written by 'pbench benchmark'
to the results repository of the selected module.

The token needs push access to the bot fork of the results repository. It
is read from --token or PBENCH_TOKEN and never logged.

A datapoint whose intermediate hash is already in the repository is
rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().String("token", "", "GitHub token (or PBENCH_TOKEN)")
	submitCmd.Flags().String("user", "", "push user (default: the bot account)")
	submitCmd.Flags().String("comments", "", "comments shown in the pull request")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	b, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read datapoint: %w", err)
	}
	dp, err := datapoint.Parse(b)
	if err != nil {
		return err
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = viper.GetString("token")
	}
	user, _ := cmd.Flags().GetString("user")
	comments, _ := cmd.Flags().GetString("comments")
	if comments == "" {
		comments = string(dp.SubmissionComments)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	util.InfoLog("=== Submit ===")
	util.InfoLog("Datapoint: %s", dp.ID)
	util.InfoLog("Intermediate hash: %s", dp.IntermediateHash)

	sub, err := s.module.Submit(context.Background(), &bench.SubmitRequest{
		Datapoint: dp,
		Token:     token,
		User:      user,
		Comments:  comments,
	})
	if err != nil {
		return err
	}

	util.InfoLog("")
	util.InfoLog("Branch: %s", sub.Branch)
	util.InfoLog("Pull request: %s", sub.PR.URL)
	util.InfoLog("Dataset: %s", bench.DatasetURL(dp.IntermediateHash))
	return nil
}
