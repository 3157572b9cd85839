// Package bench is the benchmark module façade: it runs a tool output
// through parsing, normalization and scoring, packages the result as a
// datapoint, merges it into the public archive and submits it.
package bench

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"github.com/proteobench/benchcore/internal/metrics"
	"github.com/proteobench/benchcore/internal/parse"
	"github.com/proteobench/benchcore/internal/report"
	"github.com/proteobench/benchcore/internal/repo"
	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/store"
	"github.com/proteobench/benchcore/internal/util"
)

// DefaultArchiveTimeout bounds the public archive download
const DefaultArchiveTimeout = 10 * time.Second

var tracer = otel.Tracer("pbench.bench")

// Config holds module configuration
type Config struct {
	ModuleID    string
	SettingsFs  afero.Fs // defaults to the OS filesystem
	SettingsDir string
	Parsers     *parse.Registry // defaults to parse.DefaultRegistry()
	Repo        repo.Client     // nil disables archive download and submission
	Store       *store.Store    // optional run history and archive cache
	Logger      *report.EventLogger
	Metrics     *metrics.Metrics

	ArchiveTimeout time.Duration
	ArtifactDir    string // where submitted data bundles are kept; empty skips them
	TempDir        string // buffers and clones; os.TempDir when empty
	Progress       bool   // draw a progress bar while reading inputs

	// Now is the clock used for datapoint ids and branch names
	Now func() time.Time
}

// Module runs benchmarks for one benchmark module
type Module struct {
	id       string
	settings *settings.Builder
	parsers  *parse.Registry
	repo     repo.Client
	store    *store.Store
	logger   *report.EventLogger
	metrics  *metrics.Metrics

	archiveTimeout time.Duration
	artifactDir    string
	tempDir        string
	progress       bool
	now            func() time.Time

	fetch singleflight.Group
}

// New resolves the parse settings of cfg.ModuleID and returns the module
func New(cfg *Config) (*Module, error) {
	if cfg.ModuleID == "" {
		return nil, util.Errorf(util.KindParseSettings, "open module", "module", "no module id: %w", util.ErrInvalidConfig)
	}

	fs := cfg.SettingsFs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dir := cfg.SettingsDir
	if dir == "" {
		dir = util.SettingsDir()
	}
	builder, err := settings.NewBuilder(fs, dir, cfg.ModuleID)
	if err != nil {
		return nil, err
	}

	m := &Module{
		id:             cfg.ModuleID,
		settings:       builder,
		parsers:        cfg.Parsers,
		repo:           cfg.Repo,
		store:          cfg.Store,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		archiveTimeout: cfg.ArchiveTimeout,
		artifactDir:    cfg.ArtifactDir,
		tempDir:        cfg.TempDir,
		progress:       cfg.Progress,
		now:            cfg.Now,
	}
	if m.parsers == nil {
		m.parsers = parse.DefaultRegistry()
	}
	if m.archiveTimeout <= 0 {
		m.archiveTimeout = DefaultArchiveTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}

	util.DebugLog("Module %s: %d tools configured", m.id, len(builder.ListSupportedTools()))
	return m, nil
}

// ID returns the module id
func (m *Module) ID() string {
	return m.id
}

// ListSupportedTools returns the tools that have both parse settings and
// a registered parser
func (m *Module) ListSupportedTools() []string {
	var tools []string
	for _, t := range m.settings.ListSupportedTools() {
		if _, err := m.parsers.Lookup(t); err == nil {
			tools = append(tools, t)
		}
	}
	return tools
}

// State is the position of a run in the benchmark pipeline
type State int

const (
	StateLoaded State = iota
	StateParsed
	StateNormalized
	StateScored
	StatePackaged
	StateMerged
	StateTemporary
	StateSubmitted
)

var stateNames = [...]string{"loaded", "parsed", "normalized", "scored", "packaged", "merged", "temporary", "submitted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// advance moves s to next. Stages can only be taken in order; a merged
// or temporary run can be submitted.
func (s *State) advance(next State) error {
	ok := next == *s+1
	if next == StateSubmitted && (*s == StateMerged || *s == StateTemporary) {
		ok = true
	}
	if !ok {
		return fmt.Errorf("invalid transition %s -> %s", *s, next)
	}
	*s = next
	return nil
}
