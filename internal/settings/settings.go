// Package settings loads the per-(module, tool) parse settings that tell
// the normalizer how to read a tool's output.
package settings

import (
	"math"
	"regexp"
	"sort"
)

// Canonical column names produced by the column map and the tool hooks
const (
	ColFeatureID        = "feature_id"
	ColProteins         = "proteins"
	ColSequence         = "sequence"
	ColModifiedSequence = "modified_sequence"
	ColProforma         = "proforma"
	ColCharge           = "charge"
	ColRawFile          = "raw_file"
	ColIntensity        = "intensity"
	ColDecoy            = "decoy"
)

// Conditions in the order they appear in fold changes (log2 A/B)
const (
	ConditionA = "A"
	ConditionB = "B"
)

// Level selects the feature the benchmark is computed on
type Level string

const (
	LevelIon          Level = "ion"
	LevelPeptidoform  Level = "peptidoform"
	LevelProteinGroup Level = "proteingroup"
)

// Valid reports whether l is a known analysis level
func (l Level) Valid() bool {
	switch l {
	case LevelIon, LevelPeptidoform, LevelProteinGroup:
		return true
	}
	return false
}

// Species is one organism of the reference mixture
type Species struct {
	Name          string
	Patterns      []string // substrings matched against the protein accessions
	ExpectedRatio float64  // expected A/B intensity ratio
	Color         string
}

// Log2ExpectedRatio returns log2 of the expected A/B ratio
func (s Species) Log2ExpectedRatio() float64 {
	return math.Log2(s.ExpectedRatio)
}

// DecoyRule describes how decoy rows are recognised. An unset rule keeps
// every row.
type DecoyRule struct {
	Set   bool
	IsStr bool
	Bool  bool
	Str   string
}

// ModificationRules rewrite a tool's modified-sequence notation to proforma
type ModificationRules struct {
	Dict        map[string]string // lowercased token -> canonical name
	IsAlpha     bool
	IsUpper     bool
	BeforeAA    bool // token precedes the residue it modifies
	Patterns    []*regexp.Regexp
	ParseColumn string
}

// ParseSettings is the immutable configuration of one (module, tool) pair
type ParseSettings struct {
	ModuleID          string
	Tool              string
	Level             Level
	ColumnMap         map[string]string // native column -> canonical column
	ConditionMap      map[string]string // raw file -> condition
	Species           []Species         // sorted by name
	ContaminantFlag   string
	Decoy             DecoyRule
	MinCountMultispec int
	Modifications     *ModificationRules
	GeneMapper        map[string]string // gene name -> description
}

// LongFormat reports whether the tool output has one row per
// (feature, raw file), i.e. the column map yields a raw_file column
func (p *ParseSettings) LongFormat() bool {
	for _, v := range p.ColumnMap {
		if v == ColRawFile {
			return true
		}
	}
	return false
}

// ReplicateToRaw groups the raw files of the condition map by condition.
// Raw files are sorted within each condition.
func (p *ParseSettings) ReplicateToRaw() map[string][]string {
	out := make(map[string][]string)
	for raw, cond := range p.ConditionMap {
		out[cond] = append(out[cond], raw)
	}
	for _, files := range out {
		sort.Strings(files)
	}
	return out
}

// RawFiles returns every raw file of the condition map, sorted
func (p *ParseSettings) RawFiles() []string {
	files := make([]string, 0, len(p.ConditionMap))
	for raw := range p.ConditionMap {
		files = append(files, raw)
	}
	sort.Strings(files)
	return files
}

// SpeciesNames returns the species names in settings order
func (p *ParseSettings) SpeciesNames() []string {
	names := make([]string, len(p.Species))
	for i, s := range p.Species {
		names[i] = s.Name
	}
	return names
}

// LookupSpecies finds a species by name
func (p *ParseSettings) LookupSpecies(name string) (Species, bool) {
	for _, s := range p.Species {
		if s.Name == name {
			return s, true
		}
	}
	return Species{}, false
}
