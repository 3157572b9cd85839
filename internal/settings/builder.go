package settings

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/proteobench/benchcore/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
)

const (
	// IndexFile maps module ids to their settings directory and tool files
	IndexFile = "parse_settings_files.toml"
	// ModuleFile holds the module-wide settings inside a module directory
	ModuleFile = "module_settings.toml"
	// GeneMapperFile optionally maps gene names to protein descriptions
	GeneMapperFile = "mapper.csv"
)

// DefaultModPatterns match bracketed and parenthesised modification tokens
var DefaultModPatterns = []string{`\[([^]]+)\]`, `\(([^)]+)\)`}

type indexEntry struct {
	Dir   string            `toml:"dir"`
	Tools map[string]string `toml:"tools"`
}

type toolFile struct {
	Mapper              map[string]string `toml:"mapper"`
	ConditionMapper     map[string]string `toml:"condition_mapper"`
	RunMapper           map[string]string `toml:"run_mapper"`
	SpeciesMapper       map[string]string `toml:"species_mapper"`
	General             *toolGeneral      `toml:"general"`
	ModificationsParser *modsFile         `toml:"modifications_parser"`
	Modifications       *modsFile         `toml:"modifications"`
}

type toolGeneral struct {
	DecoyFlag       interface{} `toml:"decoy_flag"`
	ContaminantFlag *string     `toml:"contaminant_flag"`
}

type modsFile struct {
	ModificationDict map[string]string `toml:"modification_dict"`
	IsAlpha          *bool             `toml:"isalpha"`
	IsUpper          *bool             `toml:"isupper"`
	BeforeAA         *bool             `toml:"before_aa"`
	Pattern          interface{}       `toml:"pattern"`
	ParseColumn      string            `toml:"parse_column"`
}

type moduleFile struct {
	General *struct {
		Level             string `toml:"level"`
		MinCountMultispec *int   `toml:"min_count_multispec"`
	} `toml:"general"`
	SpeciesExpectedRatio map[string]ratioEntry `toml:"species_expected_ratio"`
}

type ratioEntry struct {
	AvsB  interface{} `toml:"A_vs_B"`
	Color string      `toml:"color"`
}

// Builder resolves parse settings for one module
type Builder struct {
	fs        afero.Fs
	root      string
	moduleID  string
	moduleDir string
	files     map[string]string // tool -> settings file
}

func settingsError(op, param string, err error) error {
	return util.NewKindError(util.KindParseSettings, op, param, err)
}

func readIndex(fs afero.Fs, root string) (map[string]indexEntry, error) {
	var index map[string]indexEntry
	if err := decodeFile(fs, path.Join(root, IndexFile), &index); err != nil {
		return nil, err
	}
	return index, nil
}

// ListModules returns the module ids configured under root
func ListModules(fs afero.Fs, root string) ([]string, error) {
	index, err := readIndex(fs, root)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// NewBuilder reads the module index under root and checks that every
// settings file of moduleID exists. All missing files are reported at once.
func NewBuilder(fs afero.Fs, root, moduleID string) (*Builder, error) {
	index, err := readIndex(fs, root)
	if err != nil {
		return nil, err
	}

	entry, ok := index[moduleID]
	if !ok {
		valid := make([]string, 0, len(index))
		for id := range index {
			valid = append(valid, id)
		}
		sort.Strings(valid)
		return nil, settingsError("resolve module", moduleID,
			fmt.Errorf("invalid module id, valid modules are %s: %w", strings.Join(valid, ", "), util.ErrNotFound))
	}
	if len(entry.Tools) == 0 {
		return nil, settingsError("resolve module", moduleID+".tools", fmt.Errorf("no tools configured: %w", util.ErrInvalidConfig))
	}

	b := &Builder{
		fs:        fs,
		root:      root,
		moduleID:  moduleID,
		moduleDir: path.Join(root, entry.Dir),
		files:     make(map[string]string, len(entry.Tools)),
	}

	var missing []string
	for tool, file := range entry.Tools {
		p := path.Join(b.moduleDir, file)
		b.files[tool] = p
		if ok, _ := afero.Exists(fs, p); !ok {
			missing = append(missing, p)
		}
	}
	if ok, _ := afero.Exists(fs, path.Join(b.moduleDir, ModuleFile)); !ok {
		missing = append(missing, path.Join(b.moduleDir, ModuleFile))
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, settingsError("resolve module", moduleID,
			fmt.Errorf("missing parse settings files %s: %w", strings.Join(missing, ", "), util.ErrNotFound))
	}

	return b, nil
}

// ModuleID returns the module this builder resolves settings for
func (b *Builder) ModuleID() string {
	return b.moduleID
}

// ListSupportedTools returns the tools configured for the module, sorted
func (b *Builder) ListSupportedTools() []string {
	tools := make([]string, 0, len(b.files))
	for t := range b.files {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}

// Build loads and validates the settings for tool
func (b *Builder) Build(tool string) (*ParseSettings, error) {
	file, ok := b.files[tool]
	if !ok {
		return nil, settingsError("build", tool,
			fmt.Errorf("tool not configured for module %s: %w", b.moduleID, util.ErrUnsupported))
	}

	var tf toolFile
	if err := decodeFile(b.fs, file, &tf); err != nil {
		return nil, err
	}
	var mf moduleFile
	if err := decodeFile(b.fs, path.Join(b.moduleDir, ModuleFile), &mf); err != nil {
		return nil, err
	}

	ps, err := assemble(b.moduleID, tool, &tf, &mf)
	if err != nil {
		return nil, err
	}

	mapper, err := loadGeneMapper(b.fs, path.Join(b.root, GeneMapperFile))
	if err != nil {
		return nil, err
	}
	ps.GeneMapper = mapper

	util.DebugLog("Loaded parse settings for %s/%s (%d raw files, %d species)",
		b.moduleID, tool, len(ps.ConditionMap), len(ps.Species))
	return ps, nil
}

// decodeFile strictly decodes a TOML file. Unknown keys are errors.
func decodeFile(fs afero.Fs, p string, v interface{}) error {
	f, err := fs.Open(p)
	if err != nil {
		return settingsError("open", p, err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			keys := make([]string, 0, len(strict.Errors))
			for _, e := range strict.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			return settingsError("decode "+path.Base(p), strings.Join(keys, ","),
				fmt.Errorf("unknown keys: %w", util.ErrInvalidConfig))
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return settingsError("decode "+path.Base(p), strings.Join(derr.Key(), "."),
				fmt.Errorf("line %d column %d: %w", row, col, err))
		}
		return settingsError("decode "+path.Base(p), "", err)
	}
	return nil
}

func assemble(moduleID, tool string, tf *toolFile, mf *moduleFile) (*ParseSettings, error) {
	op := "build " + tool
	switch {
	case len(tf.Mapper) == 0:
		return nil, settingsError(op, "mapper", fmt.Errorf("missing or empty table: %w", util.ErrInvalidConfig))
	case len(tf.ConditionMapper) == 0:
		return nil, settingsError(op, "condition_mapper", fmt.Errorf("missing or empty table: %w", util.ErrInvalidConfig))
	case len(tf.SpeciesMapper) == 0:
		return nil, settingsError(op, "species_mapper", fmt.Errorf("missing or empty table: %w", util.ErrInvalidConfig))
	case tf.General == nil:
		return nil, settingsError(op, "general", fmt.Errorf("missing table: %w", util.ErrInvalidConfig))
	case tf.General.ContaminantFlag == nil:
		return nil, settingsError(op, "general.contaminant_flag", fmt.Errorf("missing key: %w", util.ErrInvalidConfig))
	case mf.General == nil:
		return nil, settingsError(op, ModuleFile+": general", fmt.Errorf("missing table: %w", util.ErrInvalidConfig))
	case len(mf.SpeciesExpectedRatio) == 0:
		return nil, settingsError(op, ModuleFile+": species_expected_ratio", fmt.Errorf("missing or empty table: %w", util.ErrInvalidConfig))
	}

	ps := &ParseSettings{
		ModuleID:          moduleID,
		Tool:              tool,
		Level:             Level(mf.General.Level),
		ColumnMap:         tf.Mapper,
		ConditionMap:      make(map[string]string, len(tf.ConditionMapper)),
		ContaminantFlag:   *tf.General.ContaminantFlag,
		MinCountMultispec: 1,
	}

	if !ps.Level.Valid() {
		return nil, settingsError(op, ModuleFile+": general.level",
			fmt.Errorf("unknown level %q (want ion, peptidoform or proteingroup): %w", mf.General.Level, util.ErrInvalidConfig))
	}
	if mf.General.MinCountMultispec != nil {
		if *mf.General.MinCountMultispec != 1 {
			return nil, settingsError(op, ModuleFile+": general.min_count_multispec",
				fmt.Errorf("only 1 is supported, got %d: %w", *mf.General.MinCountMultispec, util.ErrInvalidConfig))
		}
	}

	seenCond := map[string]bool{}
	for raw, cond := range tf.ConditionMapper {
		if cond != ConditionA && cond != ConditionB {
			return nil, settingsError(op, "condition_mapper."+raw,
				fmt.Errorf("condition must be A or B, got %q: %w", cond, util.ErrInvalidConfig))
		}
		ps.ConditionMap[FixRawName(raw)] = cond
		seenCond[cond] = true
	}
	if !seenCond[ConditionA] || !seenCond[ConditionB] {
		return nil, settingsError(op, "condition_mapper",
			fmt.Errorf("both conditions A and B need raw files: %w", util.ErrInvalidConfig))
	}
	// Run labels are display names only, but they must name mapped raw files
	for raw := range tf.RunMapper {
		if _, ok := ps.ConditionMap[FixRawName(raw)]; !ok {
			return nil, settingsError(op, "run_mapper."+raw,
				fmt.Errorf("raw file is not in condition_mapper: %w", util.ErrInvalidConfig))
		}
	}

	decoy, err := decoyRule(tf.General.DecoyFlag)
	if err != nil {
		return nil, settingsError(op, "general.decoy_flag", err)
	}
	ps.Decoy = decoy

	species, err := speciesList(tf.SpeciesMapper, mf.SpeciesExpectedRatio)
	if err != nil {
		return nil, settingsError(op, "species_expected_ratio", err)
	}
	ps.Species = species

	mods := tf.ModificationsParser
	if mods != nil && tf.Modifications != nil {
		return nil, settingsError(op, "modifications",
			fmt.Errorf("set either modifications or modifications_parser, not both: %w", util.ErrInvalidConfig))
	}
	if mods == nil {
		mods = tf.Modifications
	}
	if mods != nil {
		rules, err := modificationRules(mods)
		if err != nil {
			return nil, settingsError(op, "modifications_parser", err)
		}
		ps.Modifications = rules
	}

	return ps, nil
}

// FixRawName drops the .gz of .mzML.gz raw file names
func FixRawName(name string) string {
	return strings.ReplaceAll(name, ".mzML.gz", ".mzML")
}

func decoyRule(v interface{}) (DecoyRule, error) {
	switch flag := v.(type) {
	case nil:
		return DecoyRule{}, nil
	case bool:
		return DecoyRule{Set: true, Bool: flag}, nil
	case string:
		return DecoyRule{Set: true, IsStr: true, Str: flag}, nil
	}
	return DecoyRule{}, fmt.Errorf("decoy_flag must be a bool or string, got %T: %w", v, util.ErrInvalidConfig)
}

func speciesList(mapper map[string]string, ratios map[string]ratioEntry) ([]Species, error) {
	byName := map[string]*Species{}
	for pattern, name := range mapper {
		s, ok := byName[name]
		if !ok {
			entry, found := ratios[name]
			if !found {
				return nil, fmt.Errorf("no expected ratio for species %s: %w", name, util.ErrInvalidConfig)
			}
			ratio, err := cast.ToFloat64E(entry.AvsB)
			if err != nil || entry.AvsB == nil {
				return nil, fmt.Errorf("species %s: A_vs_B must be a number: %w", name, util.ErrInvalidConfig)
			}
			if ratio <= 0 {
				return nil, fmt.Errorf("species %s: A_vs_B must be positive, got %v: %w", name, ratio, util.ErrInvalidConfig)
			}
			s = &Species{Name: name, ExpectedRatio: ratio, Color: entry.Color}
			byName[name] = s
		}
		s.Patterns = append(s.Patterns, pattern)
	}

	out := make([]Species, 0, len(byName))
	for _, s := range byName {
		sort.Strings(s.Patterns)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func modificationRules(m *modsFile) (*ModificationRules, error) {
	rules := &ModificationRules{
		Dict:        make(map[string]string, len(m.ModificationDict)),
		IsAlpha:     true,
		IsUpper:     true,
		ParseColumn: m.ParseColumn,
	}
	if m.IsAlpha != nil {
		rules.IsAlpha = *m.IsAlpha
	}
	if m.IsUpper != nil {
		rules.IsUpper = *m.IsUpper
	}
	if m.BeforeAA != nil {
		rules.BeforeAA = *m.BeforeAA
	}
	if !rules.IsAlpha && !rules.IsUpper {
		return nil, fmt.Errorf("isalpha and isupper cannot both be false: %w", util.ErrInvalidConfig)
	}
	if rules.ParseColumn == "" {
		rules.ParseColumn = ColModifiedSequence
	}
	for k, v := range m.ModificationDict {
		rules.Dict[strings.ToLower(k)] = v
	}

	var patterns []string
	switch p := m.Pattern.(type) {
	case nil:
		patterns = DefaultModPatterns
	case string:
		patterns = []string{p}
	default:
		list, err := cast.ToStringSliceE(p)
		if err != nil {
			return nil, fmt.Errorf("pattern must be a string or list of strings: %w", util.ErrInvalidConfig)
		}
		patterns = list
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		rules.Patterns = append(rules.Patterns, re)
	}
	return rules, nil
}

// loadGeneMapper reads gene_name,description pairs. A missing file yields
// an empty mapper.
func loadGeneMapper(fs afero.Fs, p string) (map[string]string, error) {
	f, err := fs.Open(p)
	if err != nil {
		if ok, _ := afero.Exists(fs, p); !ok {
			return map[string]string{}, nil
		}
		return nil, settingsError("open", p, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, settingsError("read", p, err)
	}
	geneIdx, descIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "gene_name":
			geneIdx = i
		case "description":
			descIdx = i
		}
	}
	if geneIdx < 0 || descIdx < 0 {
		return nil, settingsError("read", p, fmt.Errorf("need gene_name and description columns: %w", util.ErrInvalidConfig))
	}

	mapper := map[string]string{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, settingsError("read", p, err)
		}
		if geneIdx < len(rec) && descIdx < len(rec) {
			mapper[rec[geneIdx]] = rec[descIdx]
		}
	}
	return mapper, nil
}
