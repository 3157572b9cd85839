package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/proteobench/benchcore/internal/repo"
	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/store"
	"github.com/proteobench/benchcore/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure pbench can operate correctly.

This command checks:
- git (needed to clone the results repository and push submissions)
- SQLite version compatibility
- Database accessibility and integrity
- Parse settings of the selected module
- The artifact directory and its free disk space

Use this command to troubleshoot issues before benchmarking.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().String("artifact-dir", "", "artifact directory to check (default: artifact-dir config)")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== pbench doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	results = append(results, checkGit(repo.NewGit()))
	results = append(results, checkSQLite())
	results = append(results, checkDatabase(viper.GetString("db")))
	results = append(results, checkSettings(afero.NewOsFs(), util.SettingsDir(), util.ModuleID()))

	artifactDir, _ := cmd.Flags().GetString("artifact-dir")
	if artifactDir == "" {
		artifactDir = GetConfigString("artifact-dir", defaultArtifactDir)
	}
	results = append(results, checkArtifactDirectory(artifactDir))
	results = append(results, checkDiskSpace(artifactDir, "artifacts"))

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running pbench.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! pbench is ready to benchmark.")
	}

	return nil
}

// checkGit verifies git is available. Benchmarking works without it, only
// submission and the clone fallback of the archive download need it.
func checkGit(g *repo.Git) checkResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := g.Version(ctx)
	if err != nil {
		return checkResult{
			name:    "git",
			warning: true,
			message: "not found (required for submissions)",
		}
	}

	// "git version 2.43.0"
	version := "unknown"
	if parts := strings.Fields(out); len(parts) >= 3 {
		version = parts[2]
	}

	return checkResult{
		name:    "git",
		message: fmt.Sprintf("version %s", version),
	}
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is compiled in
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	scored, _ := db.CountRunsByStatus(store.StatusScored)
	submitted, _ := db.CountRunsByStatus(store.StatusSubmitted)

	return checkResult{
		name: "Database",
		message: fmt.Sprintf("%s (%s, %d scored, %d submitted)",
			dbPath, humanize.Bytes(uint64(info.Size())), scored, submitted),
	}
}

// checkSettings builds the parse settings of every tool of the module
func checkSettings(fs afero.Fs, root, moduleID string) checkResult {
	name := fmt.Sprintf("Parse settings (%s)", moduleID)

	b, err := settings.NewBuilder(fs, root, moduleID)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: err.Error(),
		}
	}

	tools := b.ListSupportedTools()
	var broken []string
	for _, tool := range tools {
		if _, err := b.Build(tool); err != nil {
			util.DebugLog("settings for %s: %v", tool, err)
			broken = append(broken, tool)
		}
	}

	if len(tools) == 0 {
		return checkResult{
			name:    name,
			warning: true,
			message: "no tools configured",
		}
	}
	if len(broken) > 0 {
		return checkResult{
			name:    name,
			warning: true,
			message: fmt.Sprintf("%d of %d tools invalid: %s", len(broken), len(tools), strings.Join(broken, ", ")),
		}
	}

	return checkResult{
		name:    name,
		message: fmt.Sprintf("%d tools", len(tools)),
	}
}

// checkArtifactDirectory verifies the artifact directory is writable
func checkArtifactDirectory(path string) checkResult {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return checkResult{
				name:    "Artifact directory",
				error:   true,
				message: fmt.Sprintf("cannot create %s: %v", path, err),
			}
		}
		return checkResult{
			name:    "Artifact directory",
			message: fmt.Sprintf("%s (created)", path),
		}
	}

	if err := util.IsWritableDir(path); err != nil {
		return checkResult{
			name:    "Artifact directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}

	return checkResult{
		name:    "Artifact directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))
	usedPercent := float64(usedBytes) / float64(totalBytes) * 100

	// Artifacts are small; 1 GB is plenty
	warning := false
	warningMsg := ""
	if availBytes < 1<<30 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 95 {
		warning = true
		warningMsg = " (>95% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%s available%s", humanize.IBytes(availBytes), warningMsg),
	}
}
