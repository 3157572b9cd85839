// Package parse reads the native output of proteomics tools into raw tables.
//
// Each tool is a ToolAdapter: a separator, an optional multi-file merge and
// a list of post-parse hooks. Tools are registered by name on a Registry.
package parse

import (
	"fmt"
	"sort"
	"sync"

	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/table"
	"github.com/proteobench/benchcore/internal/util"
)

// Hook rewrites a freshly read table in place
type Hook func(t *table.Table, ps *settings.ParseSettings) error

// MergeFunc combines the tables of a multi-file tool into one raw table.
// paths are given for error messages only.
type MergeFunc func(tables []*table.Table, paths []string, ps *settings.ParseSettings) (*table.Table, error)

// ToolAdapter describes how to read one tool's output
type ToolAdapter struct {
	Name  string
	Sep   rune // table.SepAuto defers to the file name and header
	Hooks []Hook
	Merge MergeFunc // nil for single-file tools
}

// Registry maps tool names to adapters
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]*ToolAdapter
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]*ToolAdapter)}
}

// Register adds an adapter. Names must be unique.
func (r *Registry) Register(a *ToolAdapter) error {
	if a == nil || a.Name == "" {
		return fmt.Errorf("adapter needs a name: %w", util.ErrInvalidConfig)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.adapters[a.Name]; dup {
		return fmt.Errorf("adapter %q already registered: %w", a.Name, util.ErrInvalidConfig)
	}
	r.adapters[a.Name] = a
	return nil
}

// MustRegister is Register for package-level setup
func (r *Registry) MustRegister(a *ToolAdapter) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Lookup returns the adapter for name
func (r *Registry) Lookup(name string) (*ToolAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("invalid input format: %s: %w", name, util.ErrUnsupported)
	}
	return a, nil
}

// Names returns the registered tool names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse reads paths with the adapter, merges them when the tool takes
// several files, and applies the hooks
func (a *ToolAdapter) Parse(ps *settings.ParseSettings, opts table.ReadOptions, paths ...string) (*table.Table, error) {
	op := "parse " + a.Name
	if len(paths) == 0 {
		return nil, util.Errorf(util.KindParse, op, "", "no input file given")
	}
	if len(paths) > 1 && a.Merge == nil {
		return nil, util.Errorf(util.KindParse, op, paths[1], "%s takes a single input file, got %d", a.Name, len(paths))
	}

	if opts.Sep == table.SepAuto {
		opts.Sep = a.Sep
	}

	tables := make([]*table.Table, 0, len(paths))
	for _, p := range paths {
		t, err := table.ReadFile(p, opts)
		if err != nil {
			return nil, util.NewKindError(util.KindParse, op, p, err)
		}
		util.DebugLog("%s: read %d rows, %d columns from %s", a.Name, t.Len(), len(t.Columns), p)
		tables = append(tables, t)
	}

	raw := tables[0]
	if a.Merge != nil {
		merged, err := a.Merge(tables, paths, ps)
		if err != nil {
			return nil, err
		}
		raw = merged
	}

	return raw, a.apply(raw, ps)
}

func (a *ToolAdapter) apply(t *table.Table, ps *settings.ParseSettings) error {
	for _, h := range a.Hooks {
		if err := h(t, ps); err != nil {
			return util.NewKindError(util.KindParse, "parse "+a.Name, "", err)
		}
	}
	return nil
}
