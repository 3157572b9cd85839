package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/proteobench/benchcore/internal/bench"
	"github.com/proteobench/benchcore/internal/meta"
	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/util"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools supported by a module",
	Long: `List the tools whose output can be benchmarked in the selected module.

A tool is listed when the module has parse settings for it and pbench can
read its output format. Tools whose parameter files can fill the run
metadata are marked with "params".

Use --all to list the configured modules instead.`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)

	toolsCmd.Flags().Bool("all", false, "list all configured modules")
}

func runTools(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if all {
		modules, err := settings.ListModules(afero.NewOsFs(), util.SettingsDir())
		if err != nil {
			return err
		}
		for _, id := range modules {
			fmt.Println(id)
		}
		return nil
	}

	m, err := bench.New(&bench.Config{ModuleID: util.ModuleID()})
	if err != nil {
		return err
	}

	withParams := make(map[string]bool)
	for _, tool := range meta.ParamTools() {
		withParams[tool] = true
	}

	tools := m.ListSupportedTools()
	util.InfoLog("=== %s: %d tools ===", m.ID(), len(tools))
	for _, tool := range tools {
		if withParams[tool] {
			fmt.Printf("%s\tparams\n", tool)
		} else {
			fmt.Println(tool)
		}
	}
	return nil
}
