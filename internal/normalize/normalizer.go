package normalize

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/table"
	"github.com/proteobench/benchcore/internal/util"
	"github.com/spf13/cast"
)

// Result holds the standard table, the condition mapping and row counts
// for reporting
type Result struct {
	Table          *StandardTable
	ReplicateToRaw map[string][]string
	InputRows      int
	DecoyRows      int
	Contaminants   int
	MultiSpecies   int
	Collisions     int
}

// Normalizer applies parse settings to raw tables
type Normalizer struct {
	ps *settings.ParseSettings
}

// New creates a normalizer for ps
func New(ps *settings.ParseSettings) *Normalizer {
	return &Normalizer{ps: ps}
}

func convertError(param string, format string, args ...interface{}) error {
	return util.Errorf(util.KindConvertStandardFormat, "convert to standard format", param, format, args...)
}

type featureKey struct {
	feature string
	raw     string
}

// Normalize converts raw into the standard long-form table. raw is not
// modified.
func (n *Normalizer) Normalize(raw *table.Table) (*Result, error) {
	ps := n.ps
	res := &Result{InputRows: raw.Len(), ReplicateToRaw: ps.ReplicateToRaw()}

	// Column projection
	native := make([]string, 0, len(ps.ColumnMap))
	for k := range ps.ColumnMap {
		native = append(native, k)
	}
	sort.Strings(native)
	if missing := raw.Missing(native...); len(missing) > 0 {
		return nil, convertError(strings.Join(missing, ","),
			"columns %s not found in input, check the input file and selected software tool",
			strings.Join(missing, ", "))
	}

	t := raw.Clone()
	if err := t.Rename(ps.ColumnMap); err != nil {
		return nil, convertError("mapper", "%v", err)
	}
	if err := t.RenameFunc(settings.FixRawName); err != nil {
		return nil, convertError("mapper", "%v", err)
	}
	if !t.Has(settings.ColProteins) {
		return nil, convertError(settings.ColProteins, "no column maps to %s", settings.ColProteins)
	}

	long := ps.LongFormat()
	if long && !t.Has(settings.ColIntensity) {
		return nil, convertError(settings.ColIntensity, "long-format input needs an %s column", settings.ColIntensity)
	}

	// Sanity check: every declared raw file must be present as an
	// intensity column (short format) or raw_file value (long format)
	present := map[string]bool{}
	if long {
		ri := t.Index(settings.ColRawFile)
		for _, row := range t.Rows {
			row[ri] = settings.FixRawName(row[ri])
			present[row[ri]] = true
		}
	} else {
		for _, c := range t.Columns {
			present[c] = true
		}
	}
	var missingRaw []string
	for _, files := range res.ReplicateToRaw {
		for _, f := range files {
			if !present[f] {
				missingRaw = append(missingRaw, f)
			}
		}
	}
	if len(missingRaw) > 0 {
		sort.Strings(missingRaw)
		return nil, convertError("condition_mapper", "raw files missing from input: %s", strings.Join(missingRaw, ", "))
	}

	// Filtering
	n.filterDecoys(t, res)
	n.filterContaminants(t, res)

	// Feature key
	features, err := n.featureIDs(t)
	if err != nil {
		return nil, err
	}

	// Species annotation
	pi := t.Index(settings.ColProteins)
	flags := make([][]bool, t.Len())
	for r, row := range t.Rows {
		flags[r] = make([]bool, len(ps.Species))
		count := 0
		for s, sp := range ps.Species {
			for _, pattern := range sp.Patterns {
				if strings.Contains(row[pi], pattern) {
					flags[r][s] = true
					count++
					break
				}
			}
		}
		if count > ps.MinCountMultispec {
			flags[r] = nil
			res.MultiSpecies++
		}
	}

	charges := make([]int, t.Len())
	if ci := t.Index(settings.ColCharge); ci >= 0 {
		for r, row := range t.Rows {
			charges[r] = parseCharge(row[ci])
		}
	}

	// Long-form pivot
	std := &StandardTable{Species: ps.SpeciesNames()}
	byKey := make(map[featureKey]int, t.Len())
	add := func(r int, rawFile string, intensity float64) {
		if !(intensity > 0) || math.IsInf(intensity, 0) {
			return
		}
		key := featureKey{feature: features[r], raw: rawFile}
		if i, ok := byKey[key]; ok {
			std.Records[i].Intensity += intensity
			std.Records[i].Count++
			res.Collisions++
			return
		}
		byKey[key] = len(std.Records)
		std.Records = append(std.Records, Record{
			FeatureID: features[r],
			RawFile:   rawFile,
			Condition: ps.ConditionMap[rawFile],
			Intensity: intensity,
			Count:     1,
			Charge:    charges[r],
			Proteins:  t.Rows[r][pi],
			Flags:     flags[r],
		})
	}

	if long {
		ri := t.Index(settings.ColRawFile)
		for r := range t.Rows {
			if flags[r] == nil {
				continue
			}
			if v, ok := t.Float(r, settings.ColIntensity); ok {
				add(r, t.Rows[r][ri], v)
			}
		}
	} else {
		rawFiles := ps.RawFiles()
		for r := range t.Rows {
			if flags[r] == nil {
				continue
			}
			for _, rf := range rawFiles {
				if v, ok := t.Float(r, rf); ok {
					add(r, rf, v)
				}
			}
		}
	}

	res.Table = std
	util.DebugLog("Normalized %d input rows into %d records (%d features); dropped %d decoys, %d contaminants, %d multi-species",
		res.InputRows, std.Len(), std.Features(), res.DecoyRows, res.Contaminants, res.MultiSpecies)
	return res, nil
}

func (n *Normalizer) filterDecoys(t *table.Table, res *Result) {
	rule := n.ps.Decoy
	if !rule.Set {
		return
	}
	before := t.Len()
	if di := t.Index(settings.ColDecoy); di >= 0 {
		t.Filter(func(r int) bool {
			v := strings.TrimSpace(t.Rows[r][di])
			if rule.IsStr {
				return v != rule.Str
			}
			b, err := cast.ToBoolE(v)
			if err != nil {
				return true
			}
			return b != rule.Bool
		})
	} else if rule.IsStr && rule.Str != "" {
		pi := t.Index(settings.ColProteins)
		t.Filter(func(r int) bool { return !strings.Contains(t.Rows[r][pi], rule.Str) })
	}
	res.DecoyRows = before - t.Len()
}

func (n *Normalizer) filterContaminants(t *table.Table, res *Result) {
	flag := n.ps.ContaminantFlag
	if flag == "" {
		return
	}
	before := t.Len()
	pi := t.Index(settings.ColProteins)
	t.Filter(func(r int) bool { return !strings.Contains(t.Rows[r][pi], flag) })
	res.Contaminants = before - t.Len()
}

func (n *Normalizer) featureIDs(t *table.Table) ([]string, error) {
	ps := n.ps
	ids := make([]string, t.Len())

	if ps.Level == settings.LevelProteinGroup {
		pi := t.Index(settings.ColProteins)
		for r, row := range t.Rows {
			ids[r] = ProteinGroupID(row[pi])
		}
		return ids, nil
	}

	var source func(r int) string
	switch {
	case ps.Modifications != nil:
		col := ps.Modifications.ParseColumn
		if !t.Has(col) {
			return nil, convertError("modifications_parser.parse_column", "column %s not found in input", col)
		}
		ci := t.Index(col)
		source = func(r int) string { return Proforma(t.Rows[r][ci], ps.Modifications) }
	case t.Has(settings.ColProforma):
		ci := t.Index(settings.ColProforma)
		source = func(r int) string { return t.Rows[r][ci] }
	case t.Has(settings.ColModifiedSequence):
		ci := t.Index(settings.ColModifiedSequence)
		source = func(r int) string { return t.Rows[r][ci] }
	case t.Has(settings.ColSequence):
		ci := t.Index(settings.ColSequence)
		source = func(r int) string { return t.Rows[r][ci] }
	default:
		return nil, convertError(settings.ColModifiedSequence,
			"need one of %s, %s or %s to build %s features",
			settings.ColProforma, settings.ColModifiedSequence, settings.ColSequence, ps.Level)
	}

	if ps.Level == settings.LevelIon {
		ci := t.Index(settings.ColCharge)
		if ci < 0 {
			return nil, convertError(settings.ColCharge, "ion level needs a %s column", settings.ColCharge)
		}
		for r, row := range t.Rows {
			ids[r] = source(r) + "/" + strconv.Itoa(parseCharge(row[ci]))
		}
		return ids, nil
	}

	for r := range t.Rows {
		ids[r] = source(r)
	}
	return ids, nil
}

// ProteinGroupID sorts and de-duplicates the accessions of a protein
// string and joins them with ";"
func ProteinGroupID(proteins string) string {
	fields := strings.FieldsFunc(proteins, func(r rune) bool { return r == ';' || r == ',' })
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return strings.Join(out, ";")
}

func parseCharge(s string) int {
	s = strings.TrimSpace(s)
	if c, err := strconv.Atoi(s); err == nil {
		return c
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// Validate checks the standard table invariants: positive intensities,
// at most one species flag and unique (feature, raw file) pairs
func Validate(t *StandardTable) error {
	seen := make(map[featureKey]bool, len(t.Records))
	for i := range t.Records {
		r := &t.Records[i]
		if !(r.Intensity > 0) {
			return fmt.Errorf("record %d (%s): intensity %v is not positive", i, r.FeatureID, r.Intensity)
		}
		set := 0
		for _, f := range r.Flags {
			if f {
				set++
			}
		}
		if set > 1 {
			return fmt.Errorf("record %d (%s): %d species flags set", i, r.FeatureID, set)
		}
		key := featureKey{feature: r.FeatureID, raw: r.RawFile}
		if seen[key] {
			return fmt.Errorf("record %d: duplicate (%s, %s)", i, r.FeatureID, r.RawFile)
		}
		seen[key] = true
	}
	return nil
}
