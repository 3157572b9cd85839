package util

import "github.com/spf13/viper"

// DefaultModuleID is used when no --module flag or PBENCH_MODULE is set
const DefaultModuleID = "quant_lfq_DDA_ion"

// SettingsDir returns the parse-settings root configured for this process
func SettingsDir() string {
	if dir := viper.GetString("settings-dir"); dir != "" {
		return dir
	}
	return "settings"
}

// ModuleID returns the benchmark module selected on the command line
func ModuleID() string {
	if id := viper.GetString("module"); id != "" {
		return id
	}
	return DefaultModuleID
}
