package datapoint

import (
	"github.com/proteobench/benchcore/internal/score"
)

// Epsilon aggregations and weighting modes of the metric view
const (
	StatMedian = "median"
	StatMean   = "mean"

	ModeGlobal    = "global"
	ModeEqSpecies = "eq_species"
)

// legacyNames maps current metric names to the names older archives used
var legacyNames = map[string]string{
	"median_abs_epsilon_global": "median_abs_epsilon",
	"mean_abs_epsilon_global":   "mean_abs_epsilon",
	score.MetricVarianceEpsilon: "variance_epsilon_global",
}

// Value returns metric name at cutoff k, falling back to its legacy name
func (d *Datapoint) Value(k int, name string) (float64, bool) {
	m, ok := d.Results[k]
	if !ok {
		return 0, false
	}
	if v, ok := m[name]; ok {
		return v, true
	}
	if legacy, ok := legacyNames[name]; ok {
		v, ok := m[legacy]
		return v, ok
	}
	return 0, false
}

// MetricAt returns {stat}_abs_epsilon_{mode} at cutoff k
func (d *Datapoint) MetricAt(k int, stat, mode string) (float64, bool) {
	return d.Value(k, stat+"_abs_epsilon_"+mode)
}

// NrPrecAt returns the feature count at cutoff k
func (d *Datapoint) NrPrecAt(k int) (int, bool) {
	v, ok := d.Value(k, score.MetricNrPrec)
	return int(v), ok
}

// ViewRow is one point of a leaderboard view
type ViewRow struct {
	ID           string
	SoftwareName string
	Value        float64
	NrPrec       int
	OldNew       string
}

// View projects the archive on one metric at cutoff k. Datapoints that
// carry neither the metric nor its legacy equivalent are left out.
func (a *Archive) View(k int, stat, mode string) []ViewRow {
	if a == nil {
		return nil
	}
	var rows []ViewRow
	for _, dp := range a.Points {
		v, ok := dp.MetricAt(k, stat, mode)
		if !ok {
			continue
		}
		n, _ := dp.NrPrecAt(k)
		rows = append(rows, ViewRow{
			ID:           dp.ID,
			SoftwareName: string(dp.SoftwareName),
			Value:        v,
			NrPrec:       n,
			OldNew:       dp.OldNew,
		})
	}
	return rows
}
