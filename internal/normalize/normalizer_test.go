package normalize

import (
	"strings"
	"testing"

	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/table"
	"github.com/proteobench/benchcore/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wideSettings(level settings.Level) *settings.ParseSettings {
	return &settings.ParseSettings{
		ModuleID: "quant_lfq_DDA_ion",
		Tool:     "Test",
		Level:    level,
		ColumnMap: map[string]string{
			"Modified sequence": settings.ColModifiedSequence,
			"Protein":           settings.ColProteins,
			"Charge":            settings.ColCharge,
		},
		ConditionMap: map[string]string{
			"A_1": settings.ConditionA, "A_2": settings.ConditionA,
			"B_1": settings.ConditionB, "B_2": settings.ConditionB,
		},
		Species: []settings.Species{
			{Name: "HUMAN", Patterns: []string{"_HUMAN"}, ExpectedRatio: 1},
			{Name: "YEAST", Patterns: []string{"_YEAST"}, ExpectedRatio: 2},
		},
		ContaminantFlag:   "Cont_",
		Decoy:             settings.DecoyRule{Set: true, IsStr: true, Str: "rev_"},
		MinCountMultispec: 1,
		Modifications:     testRules(false),
	}
}

func wideTable() *table.Table {
	t := table.New("Modified sequence", "Protein", "Charge", "A_1", "A_2", "B_1", "B_2", "Extra")
	t.Append([]string{"_(ac)AC[+57.0215]DEFM[+15.9949]K_", "P1_HUMAN", "2", "100", "200", "300", "0", "x"})
	t.Append([]string{"_PEPTIDEK_", "P2_YEAST", "3", "10", "", "5", "NaN", "x"})
	t.Append([]string{"_PEPTIDEK_", "Cont_P9_HUMAN", "3", "10", "10", "10", "10", "x"})
	t.Append([]string{"_DECOYK_", "rev_P3_HUMAN", "2", "10", "10", "10", "10", "x"})
	t.Append([]string{"_MIXEDK_", "P4_HUMAN;P5_YEAST", "2", "10", "10", "10", "10", "x"})
	t.Append([]string{"_ORPHANK_", "P6_MOUSE", "2", "7", "0", "0", "0", "x"})
	return t
}

func byFeatureRaw(t *StandardTable) map[string]*Record {
	out := make(map[string]*Record, t.Len())
	for i := range t.Records {
		r := &t.Records[i]
		out[r.FeatureID+"|"+r.RawFile] = r
	}
	return out
}

func TestNormalizeWideIon(t *testing.T) {
	t.Parallel()

	raw := wideTable()
	res, err := New(wideSettings(settings.LevelIon)).Normalize(raw)
	require.NoError(t, err)
	require.NoError(t, Validate(res.Table))

	assert.Equal(t, []string{"HUMAN", "YEAST"}, res.Table.Species)
	assert.Equal(t, 1, res.DecoyRows)
	assert.Equal(t, 1, res.Contaminants)
	assert.Equal(t, 1, res.MultiSpecies)
	assert.Equal(t, []string{"A_1", "A_2"}, res.ReplicateToRaw["A"])

	recs := byFeatureRaw(res.Table)
	ion := "[Acetyl]-AC[Carbamidomethyl]DEFM[Oxidation]K/2"
	require.Contains(t, recs, ion+"|A_1")
	assert.Equal(t, 100.0, recs[ion+"|A_1"].Intensity)
	assert.Equal(t, "A", recs[ion+"|A_1"].Condition)
	assert.Equal(t, 0, recs[ion+"|A_1"].SpeciesIndex())
	assert.NotContains(t, recs, ion+"|B_2", "zero intensity is absent")

	assert.Contains(t, recs, "PEPTIDEK/3|A_1")
	assert.NotContains(t, recs, "PEPTIDEK/3|A_2", "empty cell is absent")
	assert.NotContains(t, recs, "PEPTIDEK/3|B_2", "NaN is absent")
	require.Contains(t, recs, "PEPTIDEK/3|B_1")
	assert.Equal(t, 1, recs["PEPTIDEK/3|B_1"].SpeciesIndex())

	require.Contains(t, recs, "ORPHANK/2|A_1")
	orphan := recs["ORPHANK/2|A_1"]
	assert.False(t, orphan.Eligible(), "no species pattern matched")
	assert.Equal(t, 3, res.Table.Features())

	// input is untouched
	assert.Equal(t, "Modified sequence", raw.Columns[0])
	assert.Equal(t, 6, raw.Len())
}

func TestNormalizeLevels(t *testing.T) {
	t.Parallel()

	pep, err := New(wideSettings(settings.LevelPeptidoform)).Normalize(wideTable())
	require.NoError(t, err)
	assert.Contains(t, byFeatureRaw(pep.Table), "PEPTIDEK|B_1")

	pg, err := New(wideSettings(settings.LevelProteinGroup)).Normalize(wideTable())
	require.NoError(t, err)
	assert.Contains(t, byFeatureRaw(pg.Table), "P1_HUMAN|A_2")
}

func TestNormalizeCollisionsAreSummed(t *testing.T) {
	t.Parallel()

	ps := wideSettings(settings.LevelPeptidoform)
	raw := table.New("Modified sequence", "Protein", "Charge", "A_1", "A_2", "B_1", "B_2")
	raw.Append([]string{"_PEPK_", "P1_HUMAN", "2", "100", "1", "1", "1"})
	raw.Append([]string{"_PEPK_", "P1_HUMAN", "3", "50", "1", "1", "1"})

	res, err := New(ps).Normalize(raw)
	require.NoError(t, err)
	require.NoError(t, Validate(res.Table))

	recs := byFeatureRaw(res.Table)
	require.Contains(t, recs, "PEPK|A_1")
	rec := recs["PEPK|A_1"]
	assert.Equal(t, 150.0, rec.Intensity)
	assert.Equal(t, 2, rec.Count)
	assert.Equal(t, 4, res.Collisions)
}

func TestNormalizeLongFormat(t *testing.T) {
	t.Parallel()

	ps := wideSettings(settings.LevelIon)
	ps.ColumnMap["Raw file"] = settings.ColRawFile
	ps.ColumnMap["Intensity"] = settings.ColIntensity
	ps.ColumnMap["Reverse"] = settings.ColDecoy
	ps.Decoy = settings.DecoyRule{Set: true, IsStr: true, Str: "+"}
	ps.ConditionMap = map[string]string{"A_1.mzML": "A", "B_1": "B"}

	raw := table.New("Modified sequence", "Protein", "Charge", "Raw file", "Intensity", "Reverse")
	raw.Append([]string{"_PEPK_", "P1_HUMAN", "2", "A_1.mzML.gz", "100", ""})
	raw.Append([]string{"_PEPK_", "P1_HUMAN", "2", "B_1", "50", ""})
	raw.Append([]string{"_PEPK_", "P1_HUMAN", "2", "C_1", "50", ""})
	raw.Append([]string{"_REVK_", "P2_HUMAN", "2", "A_1", "70", "+"})

	res, err := New(ps).Normalize(raw)
	require.NoError(t, err)

	recs := byFeatureRaw(res.Table)
	require.Contains(t, recs, "PEPK/2|A_1.mzML")
	require.Contains(t, recs, "PEPK/2|B_1")
	require.Contains(t, recs, "PEPK/2|C_1")
	assert.Equal(t, 100.0, recs["PEPK/2|A_1.mzML"].Intensity)
	assert.Equal(t, "B", recs["PEPK/2|B_1"].Condition)
	assert.Equal(t, "", recs["PEPK/2|C_1"].Condition, "unknown raw file keeps an empty condition")
	assert.Equal(t, 1, res.DecoyRows)
	assert.NotContains(t, recs, "REVK/2|A_1")
}

func TestNormalizeErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing mapped column", func(t *testing.T) {
		raw := table.New("Modified sequence", "Charge", "A_1", "A_2", "B_1", "B_2")
		_, err := New(wideSettings(settings.LevelIon)).Normalize(raw)
		require.Error(t, err)
		assert.True(t, util.IsKind(err, util.KindConvertStandardFormat))
		assert.Contains(t, err.Error(), "Protein")
	})

	t.Run("missing raw files are listed", func(t *testing.T) {
		raw := table.New("Modified sequence", "Protein", "Charge", "A_1", "B_1")
		_, err := New(wideSettings(settings.LevelIon)).Normalize(raw)
		require.Error(t, err)
		assert.True(t, util.IsKind(err, util.KindConvertStandardFormat))
		assert.True(t, strings.Contains(err.Error(), "A_2, B_2"), err.Error())
	})

	t.Run("ion level without charge", func(t *testing.T) {
		ps := wideSettings(settings.LevelIon)
		delete(ps.ColumnMap, "Charge")
		raw := table.New("Modified sequence", "Protein", "A_1", "A_2", "B_1", "B_2")
		_, err := New(ps).Normalize(raw)
		require.Error(t, err)
		assert.True(t, util.IsKind(err, util.KindConvertStandardFormat))
	})
}
