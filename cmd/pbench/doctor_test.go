package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/proteobench/benchcore/internal/repo"
	"github.com/proteobench/benchcore/internal/store"
	"github.com/proteobench/benchcore/internal/util"
)

func TestCheckGit_Missing(t *testing.T) {
	g := repo.NewGit()
	g.Binary = filepath.Join(t.TempDir(), "no-such-git")

	result := checkGit(g)

	// git is only needed for submissions
	if result.error {
		t.Errorf("missing git should warn, got error: %s", result.message)
	}
	if !result.warning {
		t.Error("expected warning for missing git")
	}
}

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	// Should not error - database will be created on first run
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}

	if !strings.Contains(result.message, "will be created") {
		t.Errorf("expected message about database creation, got %q", result.message)
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	run := &store.Run{
		ID:        "Sage_0.14_20240102_030405_000000",
		ModuleID:  util.DefaultModuleID,
		Tool:      "Sage",
		InputPath: "/data/results.sage.tsv",
		Status:    store.StatusScored,
	}
	if err := db.InsertRun(run); err != nil {
		t.Fatalf("failed to insert test run: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}

	if !strings.Contains(result.message, "1 scored, 0 submitted") {
		t.Errorf("expected run counts in message, got %q", result.message)
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckDatabase_Directory(t *testing.T) {
	result := checkDatabase(t.TempDir())

	if !result.error {
		t.Error("expected error when database path is a directory")
	}
}

func TestCheckSettings_Bundled(t *testing.T) {
	result := checkSettings(afero.NewOsFs(), filepath.Join("..", "..", "settings"), util.DefaultModuleID)

	if result.error || result.warning {
		t.Errorf("bundled settings check failed: %s", result.message)
	}
}

func TestCheckSettings_MissingIndex(t *testing.T) {
	result := checkSettings(afero.NewMemMapFs(), "settings", util.DefaultModuleID)

	if !result.error {
		t.Error("expected error for missing settings index")
	}
}

func TestCheckSettings_BrokenTool(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"settings/parse_settings_files.toml": `
[quant_lfq_DDA_ion]
dir = "ion"

[quant_lfq_DDA_ion.tools]
Sage = "sage.toml"
`,
		"settings/ion/module_settings.toml": `
[species_expected_ratio.HUMAN]
A_vs_B = 1
`,
		"settings/ion/sage.toml": "not = [valid toml",
	}
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	result := checkSettings(fs, "settings", util.DefaultModuleID)

	if result.error {
		t.Errorf("a broken tool file should warn, got error: %s", result.message)
	}
	if !result.warning || !strings.Contains(result.message, "Sage") {
		t.Errorf("expected warning naming Sage, got %q", result.message)
	}
}

func TestCheckArtifactDirectory_Valid(t *testing.T) {
	dir := t.TempDir()

	result := checkArtifactDirectory(dir)

	if result.error {
		t.Errorf("artifact directory check failed: %s", result.message)
	}
}

func TestCheckArtifactDirectory_Create(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "artifacts", "datasets")

	result := checkArtifactDirectory(newDir)

	if result.error {
		t.Errorf("artifact directory check failed: %s", result.message)
	}

	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
}

func TestCheckArtifactDirectory_File(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkArtifactDirectory(filePath)

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	result := checkDiskSpace(dir, "test")

	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected message with disk space info")
	}
}

func TestCheckDiskSpace_NonExistent(t *testing.T) {
	result := checkDiskSpace("/nonexistent/path", "test")

	if !result.warning {
		t.Error("expected warning for non-existent path")
	}
}
