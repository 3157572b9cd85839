package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/proteobench/benchcore/internal/bench"
	"github.com/proteobench/benchcore/internal/metrics"
	"github.com/proteobench/benchcore/internal/report"
	"github.com/proteobench/benchcore/internal/repo"
	"github.com/proteobench/benchcore/internal/store"
	"github.com/proteobench/benchcore/internal/util"
)

// defaultArtifactDir holds the zipped artifacts of submitted runs
const defaultArtifactDir = "artifacts/datasets"

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (PBENCH_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// newEventLogger opens a JSONL event log in the events directory. A
// failure only warns and returns a logger that discards events.
func newEventLogger() *report.EventLogger {
	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(GetConfigString("events-dir", "artifacts"), logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	if logger.Path() != "" {
		util.DebugLog("Event log: %s", logger.Path())
	}
	return logger
}

// newRepoClient returns the GitHub client of a module. Config keys:
// remote-host, archive-url, archive-clone, api-base, submit-url.
func newRepoClient(moduleID string) *repo.GitHub {
	remote := repo.DefaultRemote(moduleID)
	remote.Host = GetConfigString("remote-host", remote.Host)

	archiveURL := GetConfigString("archive-url", remote.ArchiveURL())
	if GetConfigBool("archive-clone") {
		archiveURL = ""
	}

	return repo.NewGitHub(repo.Config{
		Remote:     remote,
		ArchiveURL: archiveURL,
		SubmitURL:  viper.GetString("submit-url"),
		APIBase:    viper.GetString("api-base"),
	})
}

// session is the environment shared by the commands that run the
// benchmark pipeline
type session struct {
	module *bench.Module
	store  *store.Store
	logger *report.EventLogger
}

func openSession() (*session, error) {
	dbPath := viper.GetString("db")
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger := newEventLogger()
	moduleID := util.ModuleID()

	m, err := bench.New(&bench.Config{
		ModuleID:       moduleID,
		SettingsDir:    util.SettingsDir(),
		Repo:           newRepoClient(moduleID),
		Store:          db,
		Logger:         logger,
		Metrics:        metrics.Default(),
		ArchiveTimeout: time.Duration(GetConfigInt("archive-timeout", 10)) * time.Second,
		ArtifactDir:    GetConfigString("artifact-dir", defaultArtifactDir),
		Progress:       util.ShowProgress(),
	})
	if err != nil {
		logger.Close()
		db.Close()
		return nil, err
	}
	return &session{module: m, store: db, logger: logger}, nil
}

func (s *session) Close() {
	s.logger.Close()
	s.store.Close()
}
