package parse

import (
	"fmt"

	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/table"
	"github.com/proteobench/benchcore/internal/util"
)

// AlphaDIA column that links precursor.matrix rows to precursors rows
const alphaDIAHash = "mod_seq_charge_hash"

type alphaDIARole int

const (
	roleUnknown alphaDIARole = iota
	roleMerged
	roleMatrix
	rolePrecursors
)

func (r alphaDIARole) String() string {
	switch r {
	case roleMerged:
		return "merged"
	case roleMatrix:
		return "precursor.matrix"
	case rolePrecursors:
		return "precursors"
	}
	return "unknown"
}

// classifyAlphaDIA sniffs the role of a table from its columns. A table
// carrying both precursor annotations and raw-file intensities is treated
// as pre-merged.
func classifyAlphaDIA(t *table.Table, ps *settings.ParseSettings) alphaDIARole {
	annotated := t.Has("sequence")
	hasIntensities := false
	if ps != nil {
		for _, raw := range ps.RawFiles() {
			if t.Has(raw) {
				hasIntensities = true
				break
			}
		}
	}

	switch {
	case annotated && hasIntensities:
		return roleMerged
	case annotated && t.Has(alphaDIAHash):
		return rolePrecursors
	case t.Has(alphaDIAHash) && !t.Has("genes") && !t.Has("pg"):
		return roleMatrix
	}
	return roleUnknown
}

func partialInput(path string, have alphaDIARole) error {
	missing := roleMatrix
	if have == roleMatrix {
		missing = rolePrecursors
	}
	return util.NewKindError(util.KindPartialInput, "parse AlphaDIA", path,
		fmt.Errorf("got the %s file, also provide the %s file: %w", have, missing, util.ErrPartialInput))
}

// mergeAlphaDIA accepts a pre-merged file or a precursor.matrix and
// precursors pair in either order
func mergeAlphaDIA(tables []*table.Table, paths []string, ps *settings.ParseSettings) (*table.Table, error) {
	const op = "parse AlphaDIA"

	if len(tables) == 1 {
		switch role := classifyAlphaDIA(tables[0], ps); role {
		case roleMerged:
			return tables[0], nil
		case roleMatrix, rolePrecursors:
			return nil, partialInput(paths[0], role)
		default:
			return nil, util.Errorf(util.KindParse, op, paths[0],
				"not an AlphaDIA output: need %s or sequence columns", alphaDIAHash)
		}
	}
	if len(tables) != 2 {
		return nil, util.Errorf(util.KindParse, op, "", "expected 1 or 2 files, got %d", len(tables))
	}

	var matrix, precursors *table.Table
	for i, t := range tables {
		switch role := classifyAlphaDIA(t, ps); role {
		case roleMatrix:
			if matrix != nil {
				return nil, util.Errorf(util.KindParse, op, paths[i], "two precursor.matrix files given")
			}
			matrix = t
		case rolePrecursors:
			if precursors != nil {
				return nil, util.Errorf(util.KindParse, op, paths[i], "two precursors files given")
			}
			precursors = t
		default:
			return nil, util.Errorf(util.KindParse, op, paths[i], "cannot pair a %s file", role)
		}
	}

	return joinPrecursors(matrix, precursors), nil
}

// joinPrecursors appends the annotations of the first precursors row per
// hash to every matrix row, in matrix order. Matrix rows without an
// annotation are dropped.
func joinPrecursors(matrix, precursors *table.Table) *table.Table {
	hi := precursors.Index(alphaDIAHash)
	first := make(map[string]int, precursors.Len())
	for r, row := range precursors.Rows {
		if _, seen := first[row[hi]]; !seen {
			first[row[hi]] = r
		}
	}

	var extra []int
	cols := append([]string(nil), matrix.Columns...)
	for i, c := range precursors.Columns {
		if c == alphaDIAHash || matrix.Has(c) {
			continue
		}
		extra = append(extra, i)
		cols = append(cols, c)
	}

	out := table.New(cols...)
	mi := matrix.Index(alphaDIAHash)
	dropped := 0
	for _, row := range matrix.Rows {
		pr, ok := first[row[mi]]
		if !ok {
			dropped++
			continue
		}
		merged := make([]string, 0, len(cols))
		merged = append(merged, row...)
		for _, i := range extra {
			merged = append(merged, precursors.Rows[pr][i])
		}
		out.Append(merged)
	}
	if dropped > 0 {
		util.WarnLog("AlphaDIA: %d precursor.matrix rows have no precursors entry and were dropped", dropped)
	}
	return out
}
