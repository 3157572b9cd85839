package score

import (
	"math"
	"sort"
)

// null marks a missing value in the intermediate table
var null = math.NaN()

func isNull(v float64) bool {
	return math.IsNaN(v)
}

// present drops null values
func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !isNull(v) {
			out = append(out, v)
		}
	}
	return out
}

func absAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Abs(v)
	}
	return out
}

// mean returns null for an empty slice
func mean(values []float64) float64 {
	if len(values) == 0 {
		return null
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleVariance uses n-1 degrees of freedom; null below two values
func sampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return null
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(values)-1)
}

func sampleStd(values []float64) float64 {
	return math.Sqrt(sampleVariance(values))
}

func median(values []float64) float64 {
	return quantile(values, 0.5)
}

// quantile with linear interpolation between closest ranks; null for an
// empty slice
func quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return null
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := q * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	fraction := index - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}

// meanPresent averages the non-null values
func meanPresent(values ...float64) float64 {
	return mean(present(values))
}
