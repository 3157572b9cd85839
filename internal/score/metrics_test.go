package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{name: "median odd", values: []float64{3, 1, 2}, q: 0.5, want: 2},
		{name: "median even", values: []float64{4, 1, 3, 2}, q: 0.5, want: 2.5},
		{name: "q75 interpolated", values: []float64{1, 2, 3, 4}, q: 0.75, want: 3.25},
		{name: "q95 interpolated", values: []float64{0, 10}, q: 0.95, want: 9.5},
		{name: "single value", values: []float64{7}, q: 0.9, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, quantile(tt.values, tt.q), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(quantile(nil, 0.5)))
	assert.True(t, math.IsNaN(sampleVariance([]float64{1})))
	assert.InDelta(t, 1.0, sampleVariance([]float64{1, 2, 3}), 1e-12)
}

func TestSummaryMetricsEqSpecies(t *testing.T) {
	t.Parallel()

	// HUMAN has three well-behaved features, ECOLI one badly off
	in := &Intermediate{
		Species: []string{"ECOLI", "HUMAN", "YEAST"},
		Rows: []Row{
			{FeatureID: "e1", Species: "ECOLI", Log2ExpectedRatio: -2, Log2AvsB: -1, Epsilon: 1, EpsilonPrecisionMedian: 0, EpsilonPrecisionMean: 0, NrObserved: 6, A: ConditionStats{CV: 0.1}, B: ConditionStats{CV: 0.3}},
			{FeatureID: "h1", Species: "HUMAN", Log2ExpectedRatio: 0, Log2AvsB: 0.1, Epsilon: 0.1, EpsilonPrecisionMedian: 0, EpsilonPrecisionMean: 0, NrObserved: 6, A: ConditionStats{CV: 0.1}, B: ConditionStats{CV: 0.3}},
			{FeatureID: "h2", Species: "HUMAN", Log2ExpectedRatio: 0, Log2AvsB: -0.1, Epsilon: -0.1, EpsilonPrecisionMedian: -0.2, EpsilonPrecisionMean: -0.2, NrObserved: 6, A: ConditionStats{CV: 0.1}, B: ConditionStats{CV: 0.3}},
			{FeatureID: "h3", Species: "HUMAN", Log2ExpectedRatio: 0, Log2AvsB: 0.1, Epsilon: 0.1, EpsilonPrecisionMedian: 0, EpsilonPrecisionMean: 0, NrObserved: 2, A: ConditionStats{CV: 0.1}, B: ConditionStats{CV: null}},
		},
	}

	m := SummaryMetrics(in, 1)
	assert.Equal(t, 4, m.NrPrec())
	assert.InDelta(t, 0.1, m[MetricMedianAbsEpsilonGlobal], 1e-12)
	assert.InDelta(t, 1.3/4, m[MetricMeanAbsEpsilonGlobal], 1e-12)
	assert.InDelta(t, (1+0.1)/2, m[MetricMedianAbsEpsilonEqSpecies], 1e-12)
	assert.InDelta(t, (1+0.1)/2, m[MetricMeanAbsEpsilonEqSpecies], 1e-12)
	assert.InDelta(t, 0.2/4, m[MetricMeanAbsPrecisionGlobal], 1e-12)
	assert.InDelta(t, 0.2, m[MetricCVMedian], 1e-12)
	assert.Equal(t, 1.0, m["nr_prec_ECOLI"])
	assert.Equal(t, 3.0, m["nr_prec_HUMAN"])
	assert.Equal(t, 0.0, m["nr_prec_YEAST"])
	require.Contains(t, m, MetricROCAUC)
	assert.Equal(t, 1.0, m[MetricROCAUC], "ECOLI |log2| exceeds every HUMAN one")
	require.Contains(t, m, MetricROCAUCDirectional)
	assert.Equal(t, 1.0, m[MetricROCAUCDirectional])

	m3 := SummaryMetrics(in, 3)
	assert.Equal(t, 3, m3.NrPrec())
	assert.Equal(t, 2.0, m3["nr_prec_HUMAN"])
}

func TestNrPrecNonIncreasing(t *testing.T) {
	t.Parallel()

	in := &Intermediate{Species: []string{"HUMAN"}}
	for k := 1; k <= 6; k++ {
		for i := 0; i < k; i++ {
			in.Rows = append(in.Rows, Row{Species: "HUMAN", NrObserved: k, Log2AvsB: 0.1, Epsilon: 0.1, EpsilonPrecisionMedian: 0, EpsilonPrecisionMean: 0, A: ConditionStats{CV: null}, B: ConditionStats{CV: null}})
		}
	}

	all := AllMetrics(in)
	require.Len(t, all, MaxCutoff)
	for k := MinCutoff + 1; k <= MaxCutoff; k++ {
		assert.LessOrEqual(t, all[k].NrPrec(), all[k-1].NrPrec())
		if all[k].NrPrec() > 0 {
			assert.Contains(t, all[k], MetricMedianAbsEpsilonGlobal)
		}
	}
	assert.Equal(t, 21, all[1].NrPrec())
	assert.Equal(t, 6, all[6].NrPrec())
}

func TestROCAUC(t *testing.T) {
	t.Parallel()

	mk := func(species string, expected, log2 float64) *Row {
		return &Row{Species: species, Log2ExpectedRatio: expected, Log2AvsB: log2}
	}

	separated := []*Row{
		mk("HUMAN", 0, 0.1), mk("HUMAN", 0, -0.1),
		mk("YEAST", 1, 1.1), mk("YEAST", 1, 0.9),
		mk("ECOLI", -2, -1.8), mk("ECOLI", -2, -2.2),
	}
	auc, ok := ROCAUC(separated)
	require.True(t, ok)
	assert.Equal(t, 1.0, auc)

	sp, _, _ := UnchangedSpecies(separated)
	assert.Equal(t, "HUMAN", sp)

	_, ok = ROCAUC([]*Row{mk("HUMAN", 0, 0.1), mk("HUMAN", 0, 0.2)})
	assert.False(t, ok, "single class is undefined")

	_, ok = ROCAUC(nil)
	assert.False(t, ok)

	tied := []*Row{mk("HUMAN", 0, 1), mk("YEAST", 1, 1)}
	auc, ok = ROCAUC(tied)
	require.True(t, ok)
	assert.Equal(t, 0.5, auc)

	inverted := []*Row{mk("HUMAN", 0, 2), mk("YEAST", 1, 0.5)}
	auc, _ = ROCAUC(inverted)
	assert.Equal(t, 0.0, auc)
}

func TestDirectionalROCAUC(t *testing.T) {
	t.Parallel()

	mk := func(species string, expected, log2 float64) *Row {
		return &Row{Species: species, Log2ExpectedRatio: expected, Log2AvsB: log2}
	}

	separated := []*Row{
		mk("HUMAN", 0, 0.1), mk("HUMAN", 0, -0.1),
		mk("YEAST", 1, 1.1), mk("ECOLI", -2, -2.2),
	}
	auc, ok := DirectionalROCAUC(separated)
	require.True(t, ok)
	assert.Equal(t, 1.0, auc)

	// YEAST moves down and ECOLI up: large |log2| but the wrong way
	wrongWay := []*Row{
		mk("HUMAN", 0, 0.1), mk("HUMAN", 0, -0.1),
		mk("YEAST", 1, -1), mk("ECOLI", -2, 2),
	}
	auc, ok = ROCAUC(wrongWay)
	require.True(t, ok)
	assert.Equal(t, 1.0, auc)
	auc, ok = DirectionalROCAUC(wrongWay)
	require.True(t, ok)
	assert.Equal(t, 0.0, auc)

	_, ok = DirectionalROCAUC([]*Row{mk("HUMAN", 0, 0.1)})
	assert.False(t, ok, "single class is undefined")
}
