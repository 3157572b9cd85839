package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreOpenAndMigrate(t *testing.T) {
	store := openTestStore(t)

	version, err := store.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	for _, table := range []string{"runs", "archives", "schema_version"} {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	for _, index := range []string{"idx_runs_hash", "idx_runs_module_created", "idx_runs_status"} {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query index %s: %v", index, err)
		}
		if count != 1 {
			t.Errorf("expected index %s to exist (schema v2)", index)
		}
	}

	if err := store.CheckIntegrity(); err != nil {
		t.Errorf("integrity check failed: %v", err)
	}
}

func TestOpenMissingDirectory(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "missing", "test.db"))
	if err == nil {
		store.Close()
		t.Fatal("expected error opening a database in a missing directory")
	}
}

func TestReopenKeepsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.InsertRun(&Run{ID: "r1", ModuleID: "m", Tool: "Sage"}); err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}
	store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()

	run, err := store.GetRun("r1")
	if err != nil || run == nil {
		t.Fatalf("expected run after reopen, got %v, %v", run, err)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	run := &Run{
		ID:               "DIA-NN_1.9_20240101_120000_000001",
		EventRunID:       "01HQ",
		ModuleID:         "quant_lfq_DIA_ion",
		Tool:             "DIA-NN",
		InputPath:        "/data/report.tsv",
		IntermediateHash: "abc",
		NrPrec:           1200,
		MedianAbsEpsilon: 0.21,
		DatapointJSON:    `{"id": "x"}`,
	}
	if err := store.InsertRun(run); err != nil {
		t.Fatalf("failed to insert run: %v", err)
	}
	if run.Status != StatusScored {
		t.Errorf("expected default status %q, got %q", StatusScored, run.Status)
	}

	got, err := store.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Tool != "DIA-NN" || got.NrPrec != 1200 || got.MedianAbsEpsilon != 0.21 {
		t.Errorf("unexpected run: %+v", got)
	}

	if err := store.MarkSubmitted(run.ID, "https://github.com/Proteobot/Results_x/pull/3", `{"id": "y"}`); err != nil {
		t.Fatalf("failed to mark submitted: %v", err)
	}
	got, _ = store.GetRun(run.ID)
	if got.Status != StatusSubmitted || got.PRURL == "" || got.DatapointJSON != `{"id": "y"}` {
		t.Errorf("unexpected run after submit: %+v", got)
	}

	if err := store.MarkFailed("missing", "boom"); err == nil {
		t.Error("expected error for unknown run")
	}

	missing, err := store.GetRun("missing")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing run, got %v, %v", missing, err)
	}
}

func TestListRuns(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	runs := []*Run{
		{ID: "a", ModuleID: "m1", Tool: "Sage", IntermediateHash: "h1", CreatedAt: base},
		{ID: "b", ModuleID: "m1", Tool: "MaxQuant", IntermediateHash: "h2", CreatedAt: base.Add(time.Hour)},
		{ID: "c", ModuleID: "m2", Tool: "DIA-NN", IntermediateHash: "h1", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		if err := store.InsertRun(r); err != nil {
			t.Fatalf("failed to insert run %s: %v", r.ID, err)
		}
	}
	if err := store.MarkFailed("c", "push rejected"); err != nil {
		t.Fatalf("failed to mark failed: %v", err)
	}

	m1, err := store.ListRuns("m1", 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(m1) != 2 || m1[0].ID != "b" || m1[1].ID != "a" {
		t.Errorf("expected [b a], got %v", ids(m1))
	}

	all, err := store.ListRuns("", 1)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(all) != 1 || all[0].ID != "c" {
		t.Errorf("expected [c], got %v", ids(all))
	}

	byHash, err := store.GetRunsByHash("h1")
	if err != nil {
		t.Fatalf("failed to get runs by hash: %v", err)
	}
	if len(byHash) != 2 {
		t.Errorf("expected 2 runs with hash h1, got %d", len(byHash))
	}

	failed, err := store.CountRunsByStatus(StatusFailed)
	if err != nil {
		t.Fatalf("failed to count runs: %v", err)
	}
	if failed != 1 {
		t.Errorf("expected 1 failed run, got %d", failed)
	}
}

func TestArchiveCache(t *testing.T) {
	store := openTestStore(t)

	cached, err := store.LoadArchive("m1")
	if err != nil || cached != nil {
		t.Fatalf("expected empty cache, got %v, %v", cached, err)
	}

	for _, body := range []string{`[]`, `[{"intermediate_hash": "h1"}]`} {
		err := store.SaveArchive(&CachedArchive{ModuleID: "m1", Points: len(body) / 20, Body: []byte(body)})
		if err != nil {
			t.Fatalf("failed to save archive: %v", err)
		}
	}

	cached, err = store.LoadArchive("m1")
	if err != nil {
		t.Fatalf("failed to load archive: %v", err)
	}
	if string(cached.Body) != `[{"intermediate_hash": "h1"}]` {
		t.Errorf("expected latest body, got %s", cached.Body)
	}
	if cached.FetchedAt.IsZero() {
		t.Error("expected fetched_at to be set")
	}
}

func ids(runs []*Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
