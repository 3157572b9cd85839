package meta

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/proteobench/benchcore/internal/util"
)

// ParamParser reads a tool's parameter file into metadata
type ParamParser func(r io.Reader) (*UserMetadata, error)

var paramParsers = map[string]ParamParser{
	"Sage":      parseSageParams,
	"AlphaPept": parseAlphaPeptParams,
	"WOMBAT":    parseWombatParams,
}

// ParamTools returns the tools whose parameter files can be read
func ParamTools() []string {
	names := make([]string, 0, len(paramParsers))
	for name := range paramParsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExtractParams reads the parameter file at path written by tool
func ExtractParams(tool, path string) (*UserMetadata, error) {
	parse, ok := paramParsers[tool]
	if !ok {
		return nil, fmt.Errorf("no parameter parser for %s: %w", tool, util.ErrUnsupported)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer f.Close()

	m, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s parameters from %s: %w", tool, path, err)
	}
	util.DebugLog("Extracted %s parameters from %s", tool, path)
	return m, nil
}

// doc is a decoded JSON or YAML document navigated by key path
type doc map[string]interface{}

func (d doc) get(path ...string) (interface{}, bool) {
	var cur interface{} = d
	for _, key := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// asMap accepts every mapping shape the JSON and YAML decoders produce
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case doc:
		return m, true
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, x := range m {
			out[cast.ToString(k)] = x
		}
		return out, true
	}
	return nil, false
}

func (d doc) str(path ...string) string {
	v, ok := d.get(path...)
	if !ok || v == nil {
		return ""
	}
	return cast.ToString(v)
}

func (d doc) intPtr(path ...string) *int {
	v, ok := d.get(path...)
	if !ok || v == nil {
		return nil
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return nil
	}
	return &i
}

func (d doc) floatPtr(path ...string) *float64 {
	v, ok := d.get(path...)
	if !ok || v == nil {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}

func (d doc) boolean(path ...string) bool {
	v, _ := d.get(path...)
	return cast.ToBool(v)
}

func (d doc) list(path ...string) []string {
	v, ok := d.get(path...)
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return []string{s}
	}
	out, _ := cast.ToStringSliceE(v)
	return out
}

func decodeJSON(r io.Reader) (doc, error) {
	var d doc
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return d, nil
}

func decodeYAML(r io.Reader) (doc, error) {
	var d doc
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	return d, nil
}

func tolerances(values []string, unit string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v + " " + unit
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func parseSageParams(r io.Reader) (*UserMetadata, error) {
	d, err := decodeJSON(r)
	if err != nil {
		return nil, err
	}

	version := d.str("version")
	m := &UserMetadata{
		SoftwareName:        "Sage",
		SoftwareVersion:     version,
		SearchEngine:        "Sage",
		SearchEngineVersion: version,
		Enzyme:              d.str("database", "enzyme", "cleave_at"),
		AllowedMiscleavages: d.intPtr("database", "enzyme", "missed_cleavages"),
		MinPeptideLength:    d.intPtr("database", "enzyme", "min_len"),
		MaxPeptideLength:    d.intPtr("database", "enzyme", "max_len"),
		MaxMods:             d.intPtr("database", "max_variable_mods"),
		EnableMBR:           true,
	}
	if m.Enzyme == "KR" || m.Enzyme == "RK" {
		m.Enzyme = "Trypsin/P"
		if d.str("database", "enzyme", "restrict") == "P" {
			m.Enzyme = "Trypsin"
		}
	}

	if static, ok := d.get("database", "static_mods"); ok {
		m.FixedMods = formatMods(static)
	}
	if variable, ok := d.get("database", "variable_mods"); ok {
		m.VariableMods = formatMods(variable)
	}

	if ppm := d.list("precursor_tol", "ppm"); len(ppm) > 0 {
		m.PrecursorMassTolerance = tolerances(ppm, "ppm")
	} else if da := d.list("precursor_tol", "da"); len(da) > 0 {
		m.PrecursorMassTolerance = tolerances(da, "Da")
	}
	if ppm := d.list("fragment_tol", "ppm"); len(ppm) > 0 {
		m.FragmentMassTolerance = tolerances(ppm, "ppm")
	} else if da := d.list("fragment_tol", "da"); len(da) > 0 {
		m.FragmentMassTolerance = tolerances(da, "Da")
	}

	if charges := d.list("precursor_charge"); len(charges) == 2 {
		lo, errLo := cast.ToIntE(charges[0])
		hi, errHi := cast.ToIntE(charges[1])
		if errLo == nil && errHi == nil {
			m.MinPrecursorCharge, m.MaxPrecursorCharge = &lo, &hi
		}
	}
	return m, nil
}

// formatMods renders a residue -> mass(es) map as "C:57.0215,M:15.9949"
func formatMods(v interface{}) string {
	mods, ok := asMap(v)
	if !ok {
		return cast.ToString(v)
	}
	keys := make([]string, 0, len(mods))
	for k := range mods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		switch mv := mods[k].(type) {
		case []interface{}:
			for _, x := range mv {
				parts = append(parts, k+":"+cast.ToString(x))
			}
		default:
			parts = append(parts, k+":"+cast.ToString(mv))
		}
	}
	return strings.Join(parts, ",")
}

func parseAlphaPeptParams(r io.Reader) (*UserMetadata, error) {
	d, err := decodeYAML(r)
	if err != nil {
		return nil, err
	}
	if _, ok := d.get("summary"); !ok {
		return nil, fmt.Errorf("missing summary section: %w", util.ErrInvalidConfig)
	}

	version := d.str("summary", "version")
	unit := "Da"
	if d.boolean("search", "ppm") {
		unit = "ppm"
	}
	m := &UserMetadata{
		SoftwareName:           "AlphaPept",
		SoftwareVersion:        version,
		SearchEngine:           "AlphaPept",
		SearchEngineVersion:    version,
		Enzyme:                 d.str("fasta", "protease"),
		AllowedMiscleavages:    d.intPtr("fasta", "n_missed_cleavages"),
		FixedMods:              strings.Join(d.list("fasta", "mods_fixed"), ","),
		VariableMods:           strings.Join(d.list("fasta", "mods_variable"), ","),
		MaxMods:                d.intPtr("fasta", "n_modifications_max"),
		MinPeptideLength:       d.intPtr("fasta", "pep_length_min"),
		MaxPeptideLength:       d.intPtr("fasta", "pep_length_max"),
		PrecursorMassTolerance: d.str("search", "prec_tol") + " " + unit,
		FragmentMassTolerance:  d.str("search", "frag_tol") + " " + unit,
		IdentFDRProtein:        d.floatPtr("search", "protein_fdr"),
		IdentFDRPeptide:        d.floatPtr("search", "peptide_fdr"),
		MinPrecursorCharge:     d.intPtr("features", "iso_charge_min"),
		MaxPrecursorCharge:     d.intPtr("features", "iso_charge_max"),
		EnableMBR:              d.boolean("workflow", "match"),
	}
	return m, nil
}

func parseWombatParams(r io.Reader) (*UserMetadata, error) {
	d, err := decodeYAML(r)
	if err != nil {
		return nil, err
	}
	if _, ok := d.get("params"); !ok {
		return nil, fmt.Errorf("missing params section: %w", util.ErrInvalidConfig)
	}

	m := &UserMetadata{
		SoftwareName:           "WOMBAT",
		SoftwareVersion:        d.str("version"),
		SearchEngine:           "various",
		Enzyme:                 d.str("params", "enzyme"),
		AllowedMiscleavages:    d.intPtr("params", "miscleavages"),
		FixedMods:              d.str("params", "fixed_mods"),
		VariableMods:           d.str("params", "variable_mods"),
		MaxMods:                d.intPtr("params", "max_mods"),
		MinPeptideLength:       d.intPtr("params", "min_peptide_length"),
		MaxPeptideLength:       d.intPtr("params", "max_peptide_length"),
		PrecursorMassTolerance: d.str("params", "precursor_mass_tolerance"),
		FragmentMassTolerance:  d.str("params", "fragment_mass_tolerance"),
		IdentFDRProtein:        d.floatPtr("params", "ident_fdr_protein"),
		IdentFDRPeptide:        d.floatPtr("params", "ident_fdr_peptide"),
		IdentFDRPSM:            d.floatPtr("params", "ident_fdr_psm"),
		MinPrecursorCharge:     d.intPtr("params", "min_precursor_charge"),
		MaxPrecursorCharge:     d.intPtr("params", "max_precursor_charge"),
		EnableMBR:              d.boolean("params", "enable_match_between_runs"),
	}
	if m.Enzyme == "trypsin" {
		m.Enzyme = "Trypsin"
	}
	return m, nil
}
