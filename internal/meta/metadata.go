// Package meta holds the user-supplied metadata of a benchmark run: the
// workflow parameters shown on the leaderboard.
package meta

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/proteobench/benchcore/internal/util"
)

// UserMetadata describes how a tool was run. Keys follow the archive
// field names so a metadata file can be copied from a datapoint.
type UserMetadata struct {
	SoftwareName           string   `yaml:"software_name,omitempty" json:"software_name,omitempty"`
	SoftwareVersion        string   `yaml:"software_version" json:"software_version" validate:"required"`
	SearchEngine           string   `yaml:"search_engine" json:"search_engine" validate:"required"`
	SearchEngineVersion    string   `yaml:"search_engine_version" json:"search_engine_version"`
	IdentFDRPSM            *float64 `yaml:"ident_fdr_psm" json:"ident_fdr_psm" validate:"omitempty,gte=0,lte=1"`
	IdentFDRPeptide        *float64 `yaml:"ident_fdr_peptide" json:"ident_fdr_peptide" validate:"omitempty,gte=0,lte=1"`
	IdentFDRProtein        *float64 `yaml:"ident_fdr_protein" json:"ident_fdr_protein" validate:"omitempty,gte=0,lte=1"`
	EnableMBR              bool     `yaml:"enable_match_between_runs" json:"enable_match_between_runs"`
	PrecursorMassTolerance string   `yaml:"precursor_mass_tolerance" json:"precursor_mass_tolerance"`
	FragmentMassTolerance  string   `yaml:"fragment_mass_tolerance" json:"fragment_mass_tolerance"`
	Enzyme                 string   `yaml:"enzyme" json:"enzyme"`
	AllowedMiscleavages    *int     `yaml:"allowed_miscleavages" json:"allowed_miscleavages" validate:"omitempty,gte=0"`
	MinPeptideLength       *int     `yaml:"min_peptide_length" json:"min_peptide_length" validate:"omitempty,gte=1"`
	MaxPeptideLength       *int     `yaml:"max_peptide_length" json:"max_peptide_length" validate:"omitempty,gte=1"`
	MaxMods                *int     `yaml:"max_mods,omitempty" json:"max_mods,omitempty" validate:"omitempty,gte=0"`
	MinPrecursorCharge     *int     `yaml:"min_precursor_charge,omitempty" json:"min_precursor_charge,omitempty" validate:"omitempty,gte=1"`
	MaxPrecursorCharge     *int     `yaml:"max_precursor_charge,omitempty" json:"max_precursor_charge,omitempty" validate:"omitempty,gte=1"`
	FixedMods              string   `yaml:"fixed_mods,omitempty" json:"fixed_mods,omitempty"`
	VariableMods           string   `yaml:"variable_mods,omitempty" json:"variable_mods,omitempty"`
	Comments               string   `yaml:"comments_for_plotting,omitempty" json:"comments_for_plotting,omitempty"`
	SubmissionComments     string   `yaml:"comments_for_submission,omitempty" json:"comments_for_submission,omitempty"`
	Email                  string   `yaml:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`

	Extra map[string]interface{} `yaml:",inline" json:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes a YAML metadata document. Unknown keys are kept in Extra.
func Parse(r io.Reader) (*UserMetadata, error) {
	var m UserMetadata
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty metadata document: %w", util.ErrInvalidConfig)
		}
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &m, nil
}

// Load reads and validates a metadata file
func Load(path string) (*UserMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata: %w", err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks field constraints and lists every violation
func (m *UserMetadata) Validate() error {
	err := validate.Struct(m)
	var problems []string
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %s", yamlName(fe.StructField()), fe.Tag()))
		}
	} else if err != nil {
		return err
	}

	if m.MinPeptideLength != nil && m.MaxPeptideLength != nil && *m.MinPeptideLength > *m.MaxPeptideLength {
		problems = append(problems, "min_peptide_length exceeds max_peptide_length")
	}
	if m.MinPrecursorCharge != nil && m.MaxPrecursorCharge != nil && *m.MinPrecursorCharge > *m.MaxPrecursorCharge {
		problems = append(problems, "min_precursor_charge exceeds max_precursor_charge")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid metadata: %s: %w", strings.Join(problems, "; "), util.ErrInvalidConfig)
	}
	return nil
}

// yamlName maps a struct field to its key in the metadata file
func yamlName(field string) string {
	if f, ok := fieldKeys[field]; ok {
		return f
	}
	return field
}

var fieldKeys = map[string]string{
	"SoftwareVersion":     "software_version",
	"SearchEngine":        "search_engine",
	"IdentFDRPSM":         "ident_fdr_psm",
	"IdentFDRPeptide":     "ident_fdr_peptide",
	"IdentFDRProtein":     "ident_fdr_protein",
	"AllowedMiscleavages": "allowed_miscleavages",
	"MinPeptideLength":    "min_peptide_length",
	"MaxPeptideLength":    "max_peptide_length",
	"MaxMods":             "max_mods",
	"MinPrecursorCharge":  "min_precursor_charge",
	"MaxPrecursorCharge":  "max_precursor_charge",
	"Email":               "email",
}

// Merge fills the empty fields of m from other. Values already set in m
// win, so user input overrides values extracted from parameter files.
func (m *UserMetadata) Merge(other *UserMetadata) {
	if other == nil {
		return
	}
	fillString(&m.SoftwareName, other.SoftwareName)
	fillString(&m.SoftwareVersion, other.SoftwareVersion)
	fillString(&m.SearchEngine, other.SearchEngine)
	fillString(&m.SearchEngineVersion, other.SearchEngineVersion)
	fillString(&m.PrecursorMassTolerance, other.PrecursorMassTolerance)
	fillString(&m.FragmentMassTolerance, other.FragmentMassTolerance)
	fillString(&m.Enzyme, other.Enzyme)
	fillString(&m.FixedMods, other.FixedMods)
	fillString(&m.VariableMods, other.VariableMods)
	fillFloat(&m.IdentFDRPSM, other.IdentFDRPSM)
	fillFloat(&m.IdentFDRPeptide, other.IdentFDRPeptide)
	fillFloat(&m.IdentFDRProtein, other.IdentFDRProtein)
	fillInt(&m.AllowedMiscleavages, other.AllowedMiscleavages)
	fillInt(&m.MinPeptideLength, other.MinPeptideLength)
	fillInt(&m.MaxPeptideLength, other.MaxPeptideLength)
	fillInt(&m.MaxMods, other.MaxMods)
	fillInt(&m.MinPrecursorCharge, other.MinPrecursorCharge)
	fillInt(&m.MaxPrecursorCharge, other.MaxPrecursorCharge)
	if !m.EnableMBR {
		m.EnableMBR = other.EnableMBR
	}
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func fillFloat(dst **float64, src *float64) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

func fillInt(dst **int, src *int) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}
