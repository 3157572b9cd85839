package score

import (
	"math"
	"sort"
)

// UnchangedSpecies returns the species whose expected ratio is closest to
// 1:1 among rows. Ties go to the alphabetically first species.
func UnchangedSpecies(rows []*Row) (string, float64, bool) {
	best, bestRatio, found := "", 0.0, false
	for _, r := range rows {
		if r.Species == "" || isNull(r.Log2ExpectedRatio) {
			continue
		}
		d := math.Abs(r.Log2ExpectedRatio)
		if !found || d < math.Abs(bestRatio) || (d == math.Abs(bestRatio) && r.Species < best) {
			best, bestRatio, found = r.Species, r.Log2ExpectedRatio, true
		}
	}
	return best, bestRatio, found
}

type rocPoint struct {
	score   float64
	changed bool
}

// ROCAUC scores how well |log2_A_vs_B| separates features of changed
// species from those of the unchanged species. It is undefined unless
// both classes are present.
func ROCAUC(rows []*Row) (float64, bool) {
	return rocAUC(rows, func(r *Row, unchanged float64, changed bool) float64 {
		return math.Abs(r.Log2AvsB)
	})
}

// DirectionalROCAUC is ROCAUC with changed features scored by their shift
// from the unchanged ratio along the expected direction. A changed feature
// that moves the wrong way ranks below every unchanged one.
func DirectionalROCAUC(rows []*Row) (float64, bool) {
	return rocAUC(rows, func(r *Row, unchanged float64, changed bool) float64 {
		shift := r.Log2AvsB - unchanged
		if !changed {
			return math.Abs(shift)
		}
		if r.Log2ExpectedRatio < unchanged {
			return -shift
		}
		return shift
	})
}

func rocAUC(rows []*Row, scoreOf func(r *Row, unchanged float64, changed bool) float64) (float64, bool) {
	_, unchanged, ok := UnchangedSpecies(rows)
	if !ok {
		return 0, false
	}

	var points []rocPoint
	var positives, negatives int
	for _, r := range rows {
		if isNull(r.Log2AvsB) || isNull(r.Log2ExpectedRatio) {
			continue
		}
		changed := r.Log2ExpectedRatio != unchanged
		points = append(points, rocPoint{score: scoreOf(r, unchanged, changed), changed: changed})
		if changed {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0, false
	}

	// Mann-Whitney U with average ranks for ties
	sort.Slice(points, func(i, j int) bool { return points[i].score < points[j].score })
	var rankSum float64
	for i := 0; i < len(points); {
		j := i
		for j < len(points) && points[j].score == points[i].score {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks i+1..j
		for k := i; k < j; k++ {
			if points[k].changed {
				rankSum += avg
			}
		}
		i = j
	}

	p, n := float64(positives), float64(negatives)
	u := rankSum - p*(p+1)/2
	return u / (p * n), true
}
