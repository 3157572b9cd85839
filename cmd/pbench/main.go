package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proteobench/benchcore/internal/bench"
	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "pbench",
		Short: "ProteoBench - benchmark proteomics quantification workflows",
		Long: `pbench scores the output of a proteomics search engine against a mixed-species
reference sample, compares the result with the public ProteoBench archive and
submits new datapoints as pull requests.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
		},
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/pbench.yaml)")
	rootCmd.PersistentFlags().String("db", "pbench.db", "run history database file")
	rootCmd.PersistentFlags().String("settings-dir", "settings", "parse settings directory")
	rootCmd.PersistentFlags().StringP("module", "m", util.DefaultModuleID, "benchmark module id")
	rootCmd.PersistentFlags().String("events-dir", "artifacts", "directory for JSONL event logs")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("settings-dir", rootCmd.PersistentFlags().Lookup("settings-dir"))
	viper.BindPFlag("module", rootCmd.PersistentFlags().Lookup("module"))
	viper.BindPFlag("events-dir", rootCmd.PersistentFlags().Lookup("events-dir"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("pbench")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables that match, e.g. PBENCH_TOKEN
	viper.SetEnvPrefix("PBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	datapoint.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", bench.UserMessage(err))
		os.Exit(1)
	}
}
