package score

import (
	"math"
	"sort"
)

// Cutoffs on nr_observed for which summary metrics are reported
const (
	MinCutoff     = 1
	MaxCutoff     = 6
	DefaultCutoff = 3
)

// Metric names
const (
	MetricNrPrec                      = "nr_prec"
	MetricMedianAbsEpsilonGlobal      = "median_abs_epsilon_global"
	MetricMeanAbsEpsilonGlobal        = "mean_abs_epsilon_global"
	MetricMedianAbsEpsilonEqSpecies   = "median_abs_epsilon_eq_species"
	MetricMeanAbsEpsilonEqSpecies     = "mean_abs_epsilon_eq_species"
	MetricMedianAbsPrecisionGlobal    = "median_abs_epsilon_precision_global"
	MetricMeanAbsPrecisionGlobal      = "mean_abs_epsilon_precision_global"
	MetricMedianAbsPrecisionEqSpecies = "median_abs_epsilon_precision_eq_species"
	MetricMeanAbsPrecisionEqSpecies   = "mean_abs_epsilon_precision_eq_species"
	MetricVarianceEpsilon             = "variance_epsilon"
	MetricCVMedian                    = "CV_median"
	MetricCVQ75                       = "CV_q75"
	MetricCVQ90                       = "CV_q90"
	MetricCVQ95                       = "CV_q95"
	MetricROCAUC                      = "roc_auc"
	MetricROCAUCDirectional           = "roc_auc_directional"
	MetricNrPrecSpeciesPrefix         = "nr_prec_"
)

// Metrics are the summary values of one cutoff. Undefined metrics are
// absent; metrics that are defined but have no data are zero.
type Metrics map[string]float64

// NrPrec returns the feature count of the cutoff
func (m Metrics) NrPrec() int {
	return int(m[MetricNrPrec])
}

// zeroNull maps a null statistic to zero
func zeroNull(v float64) float64 {
	if isNull(v) {
		return 0
	}
	return v
}

// SummaryMetrics computes the metrics of the features observed in at
// least cutoff raw files
func SummaryMetrics(in *Intermediate, cutoff int) Metrics {
	var slice []*Row
	for i := range in.Rows {
		if in.Rows[i].NrObserved >= cutoff {
			slice = append(slice, &in.Rows[i])
		}
	}

	m := Metrics{MetricNrPrec: float64(len(slice))}

	perSpecies := make(map[string]int, len(in.Species))
	for _, sp := range in.Species {
		perSpecies[sp] = 0
	}

	var eps, epsMedian, epsMean, cvA, cvB []float64
	speciesEps := map[string][]float64{}
	speciesPrecMedian := map[string][]float64{}
	speciesPrecMean := map[string][]float64{}
	var order []string
	for _, r := range slice {
		perSpecies[r.Species]++
		if _, ok := speciesEps[r.Species]; !ok {
			order = append(order, r.Species)
			speciesEps[r.Species] = nil
		}
		if !isNull(r.Epsilon) {
			eps = append(eps, r.Epsilon)
			speciesEps[r.Species] = append(speciesEps[r.Species], math.Abs(r.Epsilon))
		}
		if !isNull(r.EpsilonPrecisionMedian) {
			epsMedian = append(epsMedian, math.Abs(r.EpsilonPrecisionMedian))
			speciesPrecMedian[r.Species] = append(speciesPrecMedian[r.Species], math.Abs(r.EpsilonPrecisionMedian))
		}
		if !isNull(r.EpsilonPrecisionMean) {
			epsMean = append(epsMean, math.Abs(r.EpsilonPrecisionMean))
			speciesPrecMean[r.Species] = append(speciesPrecMean[r.Species], math.Abs(r.EpsilonPrecisionMean))
		}
		if !isNull(r.A.CV) {
			cvA = append(cvA, r.A.CV)
		}
		if !isNull(r.B.CV) {
			cvB = append(cvB, r.B.CV)
		}
	}
	sort.Strings(order)

	absEps := absAll(eps)
	m[MetricMedianAbsEpsilonGlobal] = zeroNull(median(absEps))
	m[MetricMeanAbsEpsilonGlobal] = zeroNull(mean(absEps))
	m[MetricVarianceEpsilon] = zeroNull(sampleVariance(eps))
	m[MetricMedianAbsPrecisionGlobal] = zeroNull(median(epsMedian))
	m[MetricMeanAbsPrecisionGlobal] = zeroNull(mean(epsMean))

	m[MetricMedianAbsEpsilonEqSpecies] = zeroNull(eqSpecies(order, speciesEps, median))
	m[MetricMeanAbsEpsilonEqSpecies] = zeroNull(eqSpecies(order, speciesEps, mean))
	m[MetricMedianAbsPrecisionEqSpecies] = zeroNull(eqSpecies(order, speciesPrecMedian, median))
	m[MetricMeanAbsPrecisionEqSpecies] = zeroNull(eqSpecies(order, speciesPrecMean, mean))

	// CV quantiles are taken on each condition, then averaged
	m[MetricCVMedian] = zeroNull(meanPresent(quantile(cvA, 0.5), quantile(cvB, 0.5)))
	m[MetricCVQ75] = zeroNull(meanPresent(quantile(cvA, 0.75), quantile(cvB, 0.75)))
	m[MetricCVQ90] = zeroNull(meanPresent(quantile(cvA, 0.9), quantile(cvB, 0.9)))
	m[MetricCVQ95] = zeroNull(meanPresent(quantile(cvA, 0.95), quantile(cvB, 0.95)))

	for sp, n := range perSpecies {
		m[MetricNrPrecSpeciesPrefix+sp] = float64(n)
	}

	if auc, ok := ROCAUC(slice); ok {
		m[MetricROCAUC] = auc
	}
	if auc, ok := DirectionalROCAUC(slice); ok {
		m[MetricROCAUCDirectional] = auc
	}
	return m
}

// eqSpecies averages a per-species statistic, giving every species the
// same weight. Species without values do not contribute.
func eqSpecies(order []string, values map[string][]float64, stat func([]float64) float64) float64 {
	per := make([]float64, 0, len(order))
	for _, sp := range order {
		per = append(per, stat(values[sp]))
	}
	return mean(present(per))
}

// AllMetrics computes the metrics of every cutoff in MinCutoff..MaxCutoff
func AllMetrics(in *Intermediate) map[int]Metrics {
	out := make(map[int]Metrics, MaxCutoff-MinCutoff+1)
	for k := MinCutoff; k <= MaxCutoff; k++ {
		out[k] = SummaryMetrics(in, k)
	}
	return out
}
