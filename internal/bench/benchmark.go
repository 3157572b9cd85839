package bench

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/proteobench/benchcore/internal/datapoint"
	"github.com/proteobench/benchcore/internal/meta"
	"github.com/proteobench/benchcore/internal/metrics"
	"github.com/proteobench/benchcore/internal/normalize"
	"github.com/proteobench/benchcore/internal/report"
	"github.com/proteobench/benchcore/internal/score"
	"github.com/proteobench/benchcore/internal/store"
	"github.com/proteobench/benchcore/internal/table"
	"github.com/proteobench/benchcore/internal/util"
)

// Input is one tool output file. A Reader is buffered to a temporary file
// first, so every parser pass can reopen it.
type Input struct {
	Name   string // original file name, its extension drives sniffing
	Path   string // used when Reader is nil
	Reader io.Reader
}

// Request describes one benchmark run
type Request struct {
	Input     Input
	Secondary *Input // second file of a paired tool output
	Tool      string
	Metadata  *meta.UserMetadata
	Archive   *datapoint.Archive // nil starts from an empty archive
	Cutoff    int                // score.DefaultCutoff when zero

	// RequireFeatures makes an empty intermediate table a failure
	RequireFeatures bool
}

// Result is what a benchmark run produced. The fields are filled up to
// the state that was reached.
type Result struct {
	State        State
	Raw          *table.Table
	Intermediate *score.Intermediate
	Datapoint    *datapoint.Datapoint
	Archive      *datapoint.Archive

	// Added is false when the archive already held the intermediate hash
	Added bool
	// Warnings are recoverable problems, such as a missing paired file
	Warnings []error
	// InputPaths are the files that were parsed
	InputPaths []string

	buffered []string
}

// Close removes the temporary copies of buffered inputs
func (r *Result) Close() error {
	var err error
	for _, p := range r.buffered {
		if rerr := os.Remove(p); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = rerr
		}
	}
	r.buffered = nil
	return err
}

// Partial reports whether the run stopped on a missing paired file
func (r *Result) Partial() bool {
	for _, w := range r.Warnings {
		if util.IsKind(w, util.KindPartialInput) {
			return true
		}
	}
	return false
}

// Benchmark parses, normalizes and scores the input, builds a temporary
// datapoint and merges it into a copy of req.Archive. req.Archive itself
// is never modified, whatever the outcome.
//
// A missing file of a paired tool output is not an error: the result
// stops in StateLoaded and carries the PartialInputError as a warning.
func (m *Module) Benchmark(ctx context.Context, req *Request) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "bench.Benchmark",
		trace.WithAttributes(
			attribute.String("bench.module", m.id),
			attribute.String("bench.tool", req.Tool),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			m.metrics.RunFinished(m.id, req.Tool, store.StatusFailed)
			m.logger.LogError(report.EventError, req.Input.Path, err)
		} else {
			span.SetAttributes(attribute.String("bench.state", res.State.String()))
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	res = &Result{State: StateLoaded, Archive: req.Archive}
	if res.Archive == nil {
		res.Archive = datapoint.NewArchive()
	}
	staged := res
	defer func() {
		if err != nil {
			staged.Close()
		}
	}()

	cutoff := req.Cutoff
	if cutoff == 0 {
		cutoff = score.DefaultCutoff
	}
	if cutoff < score.MinCutoff || cutoff > score.MaxCutoff {
		return nil, util.Errorf(util.KindDatapointGeneration, "benchmark", "cutoff",
			"cutoff %d outside %d..%d: %w", cutoff, score.MinCutoff, score.MaxCutoff, util.ErrInvalidConfig)
	}
	if req.Metadata == nil {
		return nil, util.Errorf(util.KindDatapointGeneration, "benchmark", "metadata", "no user metadata: %w", util.ErrInvalidConfig)
	}

	adapter, err := m.parsers.Lookup(req.Tool)
	if err != nil {
		return nil, err
	}
	ps, err := m.settings.Build(req.Tool)
	if err != nil {
		return nil, err
	}

	if err := m.stageInputs(res, req); err != nil {
		return nil, err
	}

	// parse
	start := time.Now()
	raw, err := adapter.Parse(ps, table.ReadOptions{Progress: m.progress}, res.InputPaths...)
	if util.IsKind(err, util.KindPartialInput) {
		util.WarnLog("%v", err)
		m.logger.LogWarning(report.EventParse, err.Error())
		res.Warnings = append(res.Warnings, err)
		return res, nil
	}
	rows := 0
	if raw != nil {
		rows = raw.Len()
	}
	m.logger.LogParse(req.Tool, res.InputPaths[0], rows, time.Since(start), err)
	m.metrics.Since(metrics.StageParse, start)
	if err != nil {
		return nil, err
	}
	res.Raw = raw
	if err := res.State.advance(StateParsed); err != nil {
		return nil, err
	}

	// normalize
	start = time.Now()
	norm, err := normalize.New(ps).Normalize(raw)
	if err != nil {
		return nil, err
	}
	m.metrics.Since(metrics.StageNormalize, start)
	m.logger.LogNormalize(m.id, req.Tool, norm.InputRows, norm.Table.Features(), map[string]int{
		"decoys":        norm.DecoyRows,
		"contaminants":  norm.Contaminants,
		"multi_species": norm.MultiSpecies,
		"collisions":    norm.Collisions,
	})
	if err := res.State.advance(StateNormalized); err != nil {
		return nil, err
	}

	// score
	start = time.Now()
	in, err := score.New(&score.Config{Settings: ps, Logger: m.logger}).Score(ctx, norm.Table, norm.ReplicateToRaw)
	if err != nil {
		return nil, err
	}
	m.metrics.Since(metrics.StageScore, start)
	m.metrics.SetFeatures(m.id, req.Tool, in.Len())
	if in.Len() == 0 {
		if req.RequireFeatures {
			return nil, util.Errorf(util.KindQuantification, "summarize", "", "no features survived filtering")
		}
		util.WarnLog("No features survived filtering; all metrics are empty")
		m.logger.LogWarning(report.EventScore, "no features survived filtering")
	}
	res.Intermediate = in
	if err := res.State.advance(StateScored); err != nil {
		return nil, err
	}

	// package
	start = time.Now()
	dp, err := datapoint.Build(in, req.Tool, req.Metadata, cutoff, m.now())
	if err != nil {
		return nil, err
	}
	m.metrics.Since(metrics.StageDatapoint, start)
	nrPrec, _ := dp.NrPrecAt(cutoff)
	m.logger.LogDatapoint(m.id, dp.ID, dp.IntermediateHash, nrPrec)
	res.Datapoint = dp
	if err := res.State.advance(StatePackaged); err != nil {
		return nil, err
	}

	// merge
	merged, added, err := res.Archive.Merge(dp)
	if err != nil {
		return nil, err
	}
	if !added {
		dup := util.Errorf(util.KindDatapointAppend, "merge", dp.IntermediateHash,
			"a run with this result is already in the archive: %w", util.ErrDuplicate)
		m.logger.LogWarning(report.EventDatapoint, dup.Error())
		res.Warnings = append(res.Warnings, dup)
	}
	res.Archive = merged
	res.Added = added
	if err := res.State.advance(StateMerged); err != nil {
		return nil, err
	}

	m.recordRun(res, req.Tool)
	m.metrics.RunFinished(m.id, req.Tool, store.StatusScored)
	if err := res.State.advance(StateTemporary); err != nil {
		return nil, err
	}
	return res, nil
}

// stageInputs resolves the input files, buffering readers to disk
func (m *Module) stageInputs(res *Result, req *Request) error {
	inputs := []Input{req.Input}
	if req.Secondary != nil {
		inputs = append(inputs, *req.Secondary)
	}

	for i, in := range inputs {
		if in.Reader == nil {
			if in.Path == "" {
				return util.Errorf(util.KindParse, "load input", fmt.Sprintf("input %d", i+1), "no path or reader given")
			}
			if !util.FileExists(in.Path) {
				return util.Errorf(util.KindParse, "load input", in.Path, "file does not exist: %w", util.ErrNotFound)
			}
			res.InputPaths = append(res.InputPaths, in.Path)
			continue
		}

		name := in.Name
		if name == "" {
			name = filepath.Base(in.Path)
		}
		path, err := util.BufferToTemp(m.tempDir, name, in.Reader)
		if err != nil {
			return util.NewKindError(util.KindParse, "load input", name, err)
		}
		util.DebugLog("Buffered %s to %s", name, path)
		res.buffered = append(res.buffered, path)
		res.InputPaths = append(res.InputPaths, path)
	}
	return nil
}

// recordRun stores the run in the local history. Failures only warn.
func (m *Module) recordRun(res *Result, tool string) {
	if m.store == nil {
		return
	}
	dp := res.Datapoint
	body, err := dp.Encode()
	if err != nil {
		util.WarnLog("Failed to encode run %s: %v", dp.ID, err)
		return
	}

	sha, err := util.GenerateContentHash(res.InputPaths[0])
	if err != nil {
		util.DebugLog("Failed to hash input: %v", err)
	}
	nrPrec, _ := dp.NrPrec.Float()
	median, _ := dp.MedianAbsEpsilonGlobal.Float()

	now := m.now()
	run := &store.Run{
		ID:               dp.ID,
		EventRunID:       m.logger.RunID(),
		ModuleID:         m.id,
		Tool:             tool,
		InputPath:        res.InputPaths[0],
		InputSHA1:        sha,
		IntermediateHash: dp.IntermediateHash,
		Status:           store.StatusScored,
		NrPrec:           int(nrPrec),
		MedianAbsEpsilon: median,
		DatapointJSON:    string(body),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.InsertRun(run); err != nil {
		util.WarnLog("Failed to record run %s: %v", dp.ID, err)
	}
}
