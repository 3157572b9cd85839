// Package score computes the intermediate table and its summary metrics
// from a normalized quantification table.
package score

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/proteobench/benchcore/internal/normalize"
	"github.com/proteobench/benchcore/internal/report"
	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/util"
)

// checkEvery is how many features are scored between context checks
const checkEvery = 4096

// Scorer turns standard tables into intermediate tables
type Scorer struct {
	ps     *settings.ParseSettings
	logger *report.EventLogger
}

// Config holds scorer configuration
type Config struct {
	Settings *settings.ParseSettings
	Logger   *report.EventLogger
}

// New creates a new Scorer
func New(cfg *Config) *Scorer {
	return &Scorer{
		ps:     cfg.Settings,
		logger: cfg.Logger,
	}
}

type featureAcc struct {
	id          string
	flags       []bool
	ambiguous   bool
	intensities map[int]float64 // raw file index -> summed intensity
}

func scoreError(format string, args ...interface{}) error {
	return util.Errorf(util.KindIntermediateFormat, "generate intermediate", "", format, args...)
}

// Score builds the intermediate table. Records whose raw file is not part
// of replicateToRaw are dropped. An empty result is not an error.
func (s *Scorer) Score(ctx context.Context, std *normalize.StandardTable, replicateToRaw map[string][]string) (*Intermediate, error) {
	start := time.Now()
	if std == nil {
		return nil, scoreError("no standard table")
	}
	if s.ps == nil {
		return nil, scoreError("no parse settings")
	}
	if len(std.Species) != len(s.ps.Species) {
		return nil, scoreError("standard table has %d species, settings declare %d", len(std.Species), len(s.ps.Species))
	}

	// Condition join
	var rawFiles []string
	condOf := map[string]string{}
	for _, cond := range []string{settings.ConditionA, settings.ConditionB} {
		for _, raw := range replicateToRaw[cond] {
			if _, dup := condOf[raw]; dup {
				return nil, scoreError("raw file %s is mapped to more than one condition", raw)
			}
			condOf[raw] = cond
			rawFiles = append(rawFiles, raw)
		}
	}
	sort.Strings(rawFiles)
	rawIndex := make(map[string]int, len(rawFiles))
	for i, f := range rawFiles {
		rawIndex[f] = i
	}

	// Per feature, per raw file reduction
	byID := map[string]*featureAcc{}
	var order []*featureAcc
	dropped := 0
	for i := range std.Records {
		rec := &std.Records[i]
		ri, ok := rawIndex[rec.RawFile]
		if !ok || !(rec.Intensity > 0) {
			dropped++
			continue
		}
		acc, ok := byID[rec.FeatureID]
		if !ok {
			acc = &featureAcc{
				id:          rec.FeatureID,
				flags:       make([]bool, len(std.Species)),
				intensities: map[int]float64{},
			}
			byID[rec.FeatureID] = acc
			order = append(order, acc)
		}
		if rec.Flags == nil {
			acc.ambiguous = true
		}
		for f, set := range rec.Flags {
			acc.flags[f] = acc.flags[f] || set
		}
		acc.intensities[ri] += rec.Intensity
	}
	if dropped > 0 {
		util.DebugLog("Scorer dropped %d records outside the condition map", dropped)
	}

	in := &Intermediate{RawFiles: rawFiles, Species: append([]string{}, std.Species...)}
	for n, acc := range order {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		// Species uniqueness
		species := -1
		for f, set := range acc.flags {
			if !set {
				continue
			}
			if species >= 0 {
				species = -2
				break
			}
			species = f
		}
		if acc.ambiguous || species < 0 {
			continue
		}
		sp := s.ps.Species[species]

		row := Row{
			FeatureID:         acc.id,
			Species:           std.Species[species],
			Log2ExpectedRatio: sp.Log2ExpectedRatio(),
			NrObserved:        len(acc.intensities),
			Intensities:       make([]float64, len(rawFiles)),
		}
		var a, b []float64
		for i, raw := range rawFiles {
			v, ok := acc.intensities[i]
			if !ok {
				row.Intensities[i] = null
				continue
			}
			row.Intensities[i] = v
			if condOf[raw] == settings.ConditionA {
				a = append(a, v)
			} else {
				b = append(b, v)
			}
		}
		row.A = conditionStats(a)
		row.B = conditionStats(b)

		row.Log2AvsB = null
		if row.A.N > 0 && row.B.N > 0 {
			row.Log2AvsB = row.A.LogMean - row.B.LogMean
		}
		row.Epsilon = row.Log2AvsB - row.Log2ExpectedRatio
		in.Rows = append(in.Rows, row)
	}

	// Sorted before the empirical centers so their summation order does
	// not depend on the input row order
	sort.SliceStable(in.Rows, func(i, j int) bool { return in.Rows[i].FeatureID < in.Rows[j].FeatureID })
	applyPrecision(in)

	if in.Len() == 0 {
		util.WarnLog("No features survived scoring for %s", s.ps.Tool)
	}

	hash, err := in.Hash()
	if err != nil {
		return nil, err
	}
	s.logger.LogScore(s.ps.ModuleID, s.ps.Tool, in.Len(), hash, time.Since(start))
	util.DebugLog("Scored %d features over %d raw files", in.Len(), len(rawFiles))
	return in, nil
}

func conditionStats(values []float64) ConditionStats {
	st := ConditionStats{N: len(values)}
	logs := make([]float64, len(values))
	for i, v := range values {
		logs[i] = math.Log2(v)
	}
	st.LogMean = mean(logs)
	st.LogStd = sampleStd(logs)
	st.Mean = mean(values)
	st.Std = sampleStd(values)
	st.CV = st.Std / st.Mean
	return st
}

// applyPrecision sets the per-species empirical centers of log2_A_vs_B
// and the deviation of every row from them
func applyPrecision(in *Intermediate) {
	ratios := map[string][]float64{}
	for i := range in.Rows {
		r := &in.Rows[i]
		if !isNull(r.Log2AvsB) {
			ratios[r.Species] = append(ratios[r.Species], r.Log2AvsB)
		}
	}

	type center struct{ median, mean float64 }
	centers := make(map[string]center, len(ratios))
	for sp, vals := range ratios {
		centers[sp] = center{median: median(vals), mean: mean(vals)}
	}

	for i := range in.Rows {
		r := &in.Rows[i]
		c, ok := centers[r.Species]
		if !ok {
			c = center{median: null, mean: null}
		}
		r.EmpiricalMedian = c.median
		r.EmpiricalMean = c.mean
		r.EpsilonPrecisionMedian = r.Log2AvsB - c.median
		r.EpsilonPrecisionMean = r.Log2AvsB - c.mean
	}
}
