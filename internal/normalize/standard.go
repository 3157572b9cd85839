// Package normalize turns a tool's raw table into the standard long-form
// table: one row per (feature, raw file) with species annotations.
package normalize

// Record is one row of the standard table
type Record struct {
	FeatureID string
	RawFile   string
	Condition string // "" when the raw file is not in the condition map
	Intensity float64
	Count     int // source rows summed into this record
	Charge    int // 0 when unknown
	Proteins  string
	Flags     []bool // one per StandardTable.Species
}

// SpeciesIndex returns the index of the single true species flag, or -1
// when no flag or several flags are set
func (r *Record) SpeciesIndex() int {
	idx := -1
	for i, f := range r.Flags {
		if !f {
			continue
		}
		if idx >= 0 {
			return -1
		}
		idx = i
	}
	return idx
}

// Eligible reports whether exactly one species flag is set
func (r *Record) Eligible() bool {
	return r.SpeciesIndex() >= 0
}

// StandardTable is the normalized long-form quantification table
type StandardTable struct {
	Species []string
	Records []Record
}

// Len returns the number of records
func (t *StandardTable) Len() int {
	return len(t.Records)
}

// Features returns the number of distinct feature ids
func (t *StandardTable) Features() int {
	seen := make(map[string]struct{}, len(t.Records))
	for i := range t.Records {
		seen[t.Records[i].FeatureID] = struct{}{}
	}
	return len(seen)
}
