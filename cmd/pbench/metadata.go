package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/proteobench/benchcore/internal/meta"
	"github.com/proteobench/benchcore/internal/util"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata [metadata.yaml]",
	Short: "Check run metadata and fill it from tool parameter files",
	Long: `Validate the metadata of a run and print the result as YAML.

Parameter files of supported tools fill the fields the metadata file
leaves empty, so the output can be used as --metadata for benchmark.

Examples:
  # Validate a metadata file
  pbench metadata run.yaml

  # Build metadata from Sage parameters
  pbench metadata --tool Sage --params results.json > run.yaml
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMetadata,
}

func init() {
	rootCmd.AddCommand(metadataCmd)

	metadataCmd.Flags().StringP("tool", "t", "", "tool that wrote the parameter files")
	metadataCmd.Flags().StringSlice("params", nil, "tool parameter files")
	metadataCmd.Flags().Bool("no-validate", false, "print the metadata even if it is incomplete")
}

func runMetadata(cmd *cobra.Command, args []string) error {
	tool, _ := cmd.Flags().GetString("tool")
	paramFiles, _ := cmd.Flags().GetStringSlice("params")
	noValidate, _ := cmd.Flags().GetBool("no-validate")

	if len(paramFiles) > 0 && tool == "" {
		return fmt.Errorf("--params needs --tool (one of %s)", strings.Join(meta.ParamTools(), ", "))
	}

	md := &meta.UserMetadata{}
	if len(args) == 1 {
		var err error
		if md, err = meta.Load(args[0]); err != nil {
			return err
		}
	}
	for _, p := range paramFiles {
		params, err := meta.ExtractParams(tool, p)
		if err != nil {
			return err
		}
		md.Merge(params)
	}

	if err := md.Validate(); err != nil {
		if !noValidate {
			return err
		}
		util.WarnLog("%v", err)
	} else {
		util.SuccessLog("Metadata is valid")
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(md)
}
