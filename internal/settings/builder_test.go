package settings

import (
	"math"
	"strings"
	"testing"

	"github.com/proteobench/benchcore/internal/util"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIndex = `
[quant_lfq_DDA_ion]
dir = "quant/lfq/DDA/ion"

[quant_lfq_DDA_ion.tools]
MaxQuant = "parse_settings_maxquant.toml"
Sage = "parse_settings_sage.toml"
`

const testModule = `
[general]
level = "ion"
min_count_multispec = 1

[species_expected_ratio.HUMAN]
A_vs_B = 1
color = "#1f77b4"

[species_expected_ratio.YEAST]
A_vs_B = 2.0

[species_expected_ratio.ECOLI]
A_vs_B = 0.25
`

const testMaxQuant = `
[mapper]
"Sequence" = "sequence"
"Proteins" = "proteins"
"Modified sequence" = "modified_sequence"
"Charge" = "charge"
"Raw file" = "raw_file"
"Intensity" = "intensity"
"Reverse" = "decoy"

[condition_mapper]
"A_01.mzML.gz" = "A"
"A_02" = "A"
"B_01" = "B"
"B_02" = "B"

[run_mapper]
"A_01.mzML.gz" = "Alpha_01"

[species_mapper]
"_YEAST" = "YEAST"
"_ECOLI" = "ECOLI"
"_HUMAN" = "HUMAN"

[general]
contaminant_flag = "Cont_"
decoy_flag = "+"

[modifications_parser]
parse_column = "modified_sequence"
before_aa = false
isalpha = true
isupper = true
pattern = ['\(([^)]+)\)']

[modifications_parser.modification_dict]
"ox" = "Oxidation"
"AC" = "Acetyl"
`

func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, content := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0644))
	}
	return fs
}

func baseFiles() map[string]string {
	return map[string]string{
		"root/" + IndexFile:                                      testIndex,
		"root/quant/lfq/DDA/ion/" + ModuleFile:                   testModule,
		"root/quant/lfq/DDA/ion/parse_settings_maxquant.toml":    testMaxQuant,
		"root/quant/lfq/DDA/ion/parse_settings_sage.toml":        testMaxQuant,
		"root/" + GeneMapperFile:                                 "gene_name,description\nGENE1,P12345_HUMAN\n",
	}
}

func TestBuildMaxQuant(t *testing.T) {
	t.Parallel()

	fs := newTestFs(t, baseFiles())
	b, err := NewBuilder(fs, "root", "quant_lfq_DDA_ion")
	require.NoError(t, err)
	assert.Equal(t, []string{"MaxQuant", "Sage"}, b.ListSupportedTools())

	ps, err := b.Build("MaxQuant")
	require.NoError(t, err)

	assert.Equal(t, LevelIon, ps.Level)
	assert.True(t, ps.LongFormat())
	assert.Equal(t, "Cont_", ps.ContaminantFlag)
	assert.Equal(t, DecoyRule{Set: true, IsStr: true, Str: "+"}, ps.Decoy)
	assert.Equal(t, map[string][]string{
		"A": {"A_01.mzML", "A_02"},
		"B": {"B_01", "B_02"},
	}, ps.ReplicateToRaw())

	assert.Equal(t, []string{"ECOLI", "HUMAN", "YEAST"}, ps.SpeciesNames())
	yeast, ok := ps.LookupSpecies("YEAST")
	require.True(t, ok)
	assert.Equal(t, []string{"_YEAST"}, yeast.Patterns)
	assert.InDelta(t, 1.0, yeast.Log2ExpectedRatio(), 1e-12)
	ecoli, _ := ps.LookupSpecies("ECOLI")
	assert.InDelta(t, -2.0, ecoli.Log2ExpectedRatio(), 1e-12)
	human, _ := ps.LookupSpecies("HUMAN")
	assert.Equal(t, "#1f77b4", human.Color)
	assert.Equal(t, 0.0, math.Abs(human.Log2ExpectedRatio()))

	require.NotNil(t, ps.Modifications)
	assert.Equal(t, "Acetyl", ps.Modifications.Dict["ac"])
	assert.Len(t, ps.Modifications.Patterns, 1)
	assert.False(t, ps.Modifications.BeforeAA)

	assert.Equal(t, "P12345_HUMAN", ps.GeneMapper["GENE1"])
}

func TestNewBuilderErrors(t *testing.T) {
	t.Parallel()

	t.Run("unknown module", func(t *testing.T) {
		fs := newTestFs(t, baseFiles())
		_, err := NewBuilder(fs, "root", "nope")
		require.Error(t, err)
		assert.True(t, util.IsKind(err, util.KindParseSettings))
		assert.ErrorIs(t, err, util.ErrNotFound)
		assert.Contains(t, err.Error(), "quant_lfq_DDA_ion")
	})

	t.Run("missing files are all listed", func(t *testing.T) {
		files := baseFiles()
		delete(files, "root/quant/lfq/DDA/ion/parse_settings_sage.toml")
		delete(files, "root/quant/lfq/DDA/ion/"+ModuleFile)
		fs := newTestFs(t, files)
		_, err := NewBuilder(fs, "root", "quant_lfq_DDA_ion")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse_settings_sage.toml")
		assert.Contains(t, err.Error(), ModuleFile)
	})

	t.Run("missing index", func(t *testing.T) {
		_, err := NewBuilder(afero.NewMemMapFs(), "root", "quant_lfq_DDA_ion")
		require.Error(t, err)
		assert.True(t, util.IsKind(err, util.KindParseSettings))
	})
}

func TestBuildValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tool    string
		module  string
		wantKey string
	}{
		{
			name:    "unknown key",
			tool:    testMaxQuant + "\n[general2]\nfoo = 1\n",
			wantKey: "general2",
		},
		{
			name:    "missing species mapper",
			tool:    "[mapper]\nA = \"proteins\"\n[condition_mapper]\nx = \"A\"\ny = \"B\"\n[general]\ncontaminant_flag = \"Cont_\"\n",
			wantKey: "species_mapper",
		},
		{
			name:    "missing contaminant flag",
			tool:    "[mapper]\nA = \"proteins\"\n[condition_mapper]\nx = \"A\"\ny = \"B\"\n[species_mapper]\n_HUMAN = \"HUMAN\"\n[general]\n",
			wantKey: "general.contaminant_flag",
		},
		{
			name:    "bad condition",
			tool:    "[mapper]\nA = \"proteins\"\n[condition_mapper]\nx = \"C\"\n[species_mapper]\n_HUMAN = \"HUMAN\"\n[general]\ncontaminant_flag = \"Cont_\"\n",
			wantKey: "condition_mapper.x",
		},
		{
			name:    "species without ratio",
			tool:    "[mapper]\nA = \"proteins\"\n[condition_mapper]\nx = \"A\"\ny = \"B\"\n[species_mapper]\n_MOUSE = \"MOUSE\"\n[general]\ncontaminant_flag = \"Cont_\"\n",
			wantKey: "species_expected_ratio",
		},
		{
			name:    "run label for unmapped raw file",
			tool:    strings.Replace(testMaxQuant, `"A_01.mzML.gz" = "Alpha_01"`, `"C_01" = "Gamma_01"`, 1),
			wantKey: "run_mapper.C_01",
		},
		{
			name:    "bad level",
			module:  "[general]\nlevel = \"protein\"\n[species_expected_ratio.HUMAN]\nA_vs_B = 1\n",
			wantKey: "general.level",
		},
		{
			name:    "bad multispec",
			module:  "[general]\nlevel = \"ion\"\nmin_count_multispec = 2\n[species_expected_ratio.HUMAN]\nA_vs_B = 1\n",
			wantKey: "min_count_multispec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := baseFiles()
			if tt.tool != "" {
				files["root/quant/lfq/DDA/ion/parse_settings_maxquant.toml"] = tt.tool
			}
			if tt.module != "" {
				files["root/quant/lfq/DDA/ion/"+ModuleFile] = tt.module
			}
			b, err := NewBuilder(newTestFs(t, files), "root", "quant_lfq_DDA_ion")
			require.NoError(t, err)

			_, err = b.Build("MaxQuant")
			require.Error(t, err)
			assert.True(t, util.IsKind(err, util.KindParseSettings), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

func TestBuildUnknownTool(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(newTestFs(t, baseFiles()), "root", "quant_lfq_DDA_ion")
	require.NoError(t, err)
	_, err = b.Build("Casanovo")
	assert.ErrorIs(t, err, util.ErrUnsupported)
}

func TestListModules(t *testing.T) {
	t.Parallel()

	ids, err := ListModules(newTestFs(t, baseFiles()), "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"quant_lfq_DDA_ion"}, ids)
}

func TestDecoyRule(t *testing.T) {
	t.Parallel()

	r, err := decoyRule(true)
	require.NoError(t, err)
	assert.Equal(t, DecoyRule{Set: true, Bool: true}, r)

	r, err = decoyRule(nil)
	require.NoError(t, err)
	assert.False(t, r.Set)

	_, err = decoyRule(int64(1))
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
}
