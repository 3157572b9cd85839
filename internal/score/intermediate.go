package score

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/util"
)

// ConditionStats are the per-condition statistics of one feature
type ConditionStats struct {
	N       int // raw files with a positive intensity
	LogMean float64
	LogStd  float64
	Mean    float64
	Std     float64
	CV      float64
}

// Row is one scored feature. Null values are NaN.
type Row struct {
	FeatureID              string
	Species                string
	Log2ExpectedRatio      float64
	A                      ConditionStats
	B                      ConditionStats
	Log2AvsB               float64
	Epsilon                float64
	EmpiricalMedian        float64
	EmpiricalMean          float64
	EpsilonPrecisionMedian float64
	EpsilonPrecisionMean   float64
	NrObserved             int
	Intensities            []float64 // aligned with Intermediate.RawFiles
}

// Intermediate is the scored wide-form table, sorted by feature id
type Intermediate struct {
	RawFiles []string
	Species  []string
	Rows     []Row
}

// Len returns the number of scored features
func (in *Intermediate) Len() int {
	if in == nil {
		return 0
	}
	return len(in.Rows)
}

// Columns of the textual projection, before the per raw file intensities
var Columns = []string{
	"feature_id",
	"species",
	"log2_expected_ratio",
	"log_intensity_mean_" + settings.ConditionA,
	"log_intensity_mean_" + settings.ConditionB,
	"log_intensity_std_" + settings.ConditionA,
	"log_intensity_std_" + settings.ConditionB,
	"intensity_mean_" + settings.ConditionA,
	"intensity_mean_" + settings.ConditionB,
	"intensity_std_" + settings.ConditionA,
	"intensity_std_" + settings.ConditionB,
	"CV_" + settings.ConditionA,
	"CV_" + settings.ConditionB,
	"log2_A_vs_B",
	"epsilon",
	"log2_empirical_median",
	"log2_empirical_mean",
	"epsilon_precision_median",
	"epsilon_precision_mean",
	"nr_observed",
}

// FloatDigits is the number of significant digits floats are rounded to
// in the textual projection
const FloatDigits = 10

func formatFloat(v float64) string {
	if isNull(v) || math.IsInf(v, 0) {
		return ""
	}
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'g', FloatDigits, 64)
}

// WriteCSV writes the textual projection: a fixed column order, rows
// sorted by feature id, floats rounded to FloatDigits and nulls empty
func (in *Intermediate) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append(append([]string{}, Columns...), in.RawFiles...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	rows := make([]*Row, len(in.Rows))
	for i := range in.Rows {
		rows[i] = &in.Rows[i]
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].FeatureID < rows[j].FeatureID })

	record := make([]string, len(header))
	for _, r := range rows {
		record = record[:0]
		record = append(record,
			r.FeatureID,
			r.Species,
			formatFloat(r.Log2ExpectedRatio),
			formatFloat(r.A.LogMean), formatFloat(r.B.LogMean),
			formatFloat(r.A.LogStd), formatFloat(r.B.LogStd),
			formatFloat(r.A.Mean), formatFloat(r.B.Mean),
			formatFloat(r.A.Std), formatFloat(r.B.Std),
			formatFloat(r.A.CV), formatFloat(r.B.CV),
			formatFloat(r.Log2AvsB),
			formatFloat(r.Epsilon),
			formatFloat(r.EmpiricalMedian),
			formatFloat(r.EmpiricalMean),
			formatFloat(r.EpsilonPrecisionMedian),
			formatFloat(r.EpsilonPrecisionMean),
			strconv.Itoa(r.NrObserved),
		)
		for i := range in.RawFiles {
			v := null
			if i < len(r.Intensities) {
				v = r.Intensities[i]
			}
			record = append(record, formatFloat(v))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write %s: %w", r.FeatureID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Bytes returns the textual projection
func (in *Intermediate) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := in.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the SHA1 of the textual projection
func (in *Intermediate) Hash() (string, error) {
	b, err := in.Bytes()
	if err != nil {
		return "", util.NewKindError(util.KindIntermediateFormat, "hash intermediate", "", err)
	}
	return util.HashBytes(b), nil
}
