package parse

import (
	"github.com/proteobench/benchcore/internal/table"
)

// Tool names as they appear in the parse-settings index
const (
	ToolMaxQuant      = "MaxQuant"
	ToolAlphaPept     = "AlphaPept"
	ToolSage          = "Sage"
	ToolFragPipe      = "FragPipe"
	ToolWOMBAT        = "WOMBAT"
	ToolI2MassChroQ   = "i2MassChroQ"
	ToolCustom        = "Custom"
	ToolDIANN         = "DIA-NN"
	ToolAlphaDIA      = "AlphaDIA"
	ToolFragPipeDIANN = "FragPipe (DIA-NN quant)"
	ToolSpectronaut   = "Spectronaut"
	ToolMSAID         = "MSAID"
	ToolPEAKS         = "PEAKS"
	ToolQuantms       = "quantms"
)

// Builtins returns the adapters of every supported tool
func Builtins() []*ToolAdapter {
	return []*ToolAdapter{
		{Name: ToolMaxQuant, Sep: table.SepTab},
		{Name: ToolAlphaPept, Sep: table.SepComma},
		{Name: ToolSage, Sep: table.SepTab},
		{
			Name:  ToolFragPipe,
			Sep:   table.SepTab,
			Hooks: []Hook{JoinColumns("Protein", ",", "Protein", "Mapped Proteins")},
		},
		{
			Name: ToolWOMBAT,
			Sep:  table.SepComma,
			Hooks: []Hook{
				MapAccessions("protein_group", "protein_group", ",", ";"),
				CopyColumn("modified_peptide", "proforma"),
			},
		},
		{
			Name:  ToolI2MassChroQ,
			Sep:   table.SepTab,
			Hooks: []Hook{CopyColumn("ProForma", "proforma")},
		},
		{
			Name:  ToolCustom,
			Sep:   table.SepTab,
			Hooks: []Hook{CopyColumn("Modified sequence", "proforma")},
		},
		{Name: ToolDIANN, Sep: table.SepTab},
		{
			Name:  ToolAlphaDIA,
			Sep:   table.SepTab,
			Merge: mergeAlphaDIA,
			Hooks: []Hook{
				MapAccessions("genes", "genes", ";", ";"),
				ModSites("sequence", "mods", "mod_sites", "proforma"),
			},
		},
		{
			Name:  ToolFragPipeDIANN,
			Sep:   table.SepTab,
			Hooks: []Hook{MapAccessions("Protein.Ids", "Protein.Names", ";", ";")},
		},
		{
			Name: ToolSpectronaut,
			Sep:  table.SepTab,
			Hooks: []Hook{
				DecimalComma("FG.Quantity", "PG.Quantity"),
				TrimChars("FG.LabeledSequence", "_"),
				MapAccessions("PG.ProteinGroups", "PG.ProteinGroups", ";", ";"),
			},
		},
		{Name: ToolMSAID, Sep: table.SepTab},
		{Name: ToolPEAKS, Sep: table.SepComma},
		{
			Name: ToolQuantms,
			Sep:  table.SepComma,
			Hooks: []Hook{
				StripPattern("PeptideSequence", "proforma", `\(([^)]+)\)`),
				StripPattern("PeptideSequence", "Sequence", `\(([^)]+)\)`),
			},
		},
	}
}

// DefaultRegistry returns a registry holding the builtin adapters
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range Builtins() {
		r.MustRegister(a)
	}
	return r
}
