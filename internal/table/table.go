// Package table holds tool output as a header plus string cells.
//
// Cells stay untyped until a consumer asks for a number, which keeps
// tool-specific quirks (decimal commas, "+" decoy markers, empty cells)
// visible to the hooks that handle them.
package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Table is a rectangular string table. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New creates an empty table with the given header
func New(columns ...string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Has reports whether col is present
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// HasAll reports whether every column in cols is present
func (t *Table) HasAll(cols ...string) bool {
	for _, c := range cols {
		if !t.Has(c) {
			return false
		}
	}
	return true
}

// Missing returns the columns of cols that are absent, in order
func (t *Table) Missing(cols ...string) []string {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Index returns the position of col or -1
func (t *Table) Index(col string) int {
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// Get returns the cell at (row, col), or "" when col is absent
func (t *Table) Get(row int, col string) string {
	i, ok := t.index[col]
	if !ok {
		return ""
	}
	return t.Rows[row][i]
}

// Set writes the cell at (row, col). The column must exist.
func (t *Table) Set(row int, col string, v string) {
	t.Rows[row][t.index[col]] = v
}

// Float parses the cell at (row, col). Empty and NaN cells report ok=false.
func (t *Table) Float(row int, col string) (float64, bool) {
	s := strings.TrimSpace(t.Get(row, col))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != v {
		return 0, false
	}
	return v, true
}

// Column returns a copy of the values of col
func (t *Table) Column(col string) []string {
	i, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Append adds a row. Short rows are padded, long rows are truncated.
func (t *Table) Append(row []string) {
	cells := make([]string, len(t.Columns))
	copy(cells, row)
	t.Rows = append(t.Rows, cells)
}

// Map sets col (adding it when missing) to fn(row) for every row
func (t *Table) Map(col string, fn func(row int) string) {
	if !t.Has(col) {
		t.Columns = append(t.Columns, col)
		t.index[col] = len(t.Columns) - 1
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], "")
		}
	}
	i := t.index[col]
	for r := range t.Rows {
		t.Rows[r][i] = fn(r)
	}
}

// Rename renames columns according to m (old -> new). Columns not in m
// keep their names. Renaming onto an existing column is an error.
func (t *Table) Rename(m map[string]string) error {
	seen := make(map[string]bool, len(t.Columns))
	renamed := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		name := c
		if n, ok := m[c]; ok {
			name = n
		}
		if seen[name] {
			return fmt.Errorf("rename produces duplicate column %q", name)
		}
		seen[name] = true
		renamed[i] = name
	}
	t.Columns = renamed
	t.reindex()
	return nil
}

// RenameFunc rewrites every column name through fn
func (t *Table) RenameFunc(fn func(string) string) error {
	m := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		m[c] = fn(c)
	}
	return t.Rename(m)
}

// Filter keeps only the rows for which keep returns true
func (t *Table) Filter(keep func(row int) bool) {
	kept := t.Rows[:0]
	for r := range t.Rows {
		if keep(r) {
			kept = append(kept, t.Rows[r])
		}
	}
	for r := len(kept); r < len(t.Rows); r++ {
		t.Rows[r] = nil
	}
	t.Rows = kept
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	c := New(t.Columns...)
	c.Rows = make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		c.Rows[r] = append([]string(nil), row...)
	}
	return c
}
