package parse

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/proteobench/benchcore/internal/settings"
	"github.com/proteobench/benchcore/internal/table"
)

func requireColumns(t *table.Table, cols ...string) error {
	if missing := t.Missing(cols...); len(missing) > 0 {
		return fmt.Errorf("columns %s not found in input file, check the file and selected software tool",
			strings.Join(missing, ", "))
	}
	return nil
}

// CopyColumn sets dst to the value of src
func CopyColumn(src, dst string) Hook {
	return func(t *table.Table, _ *settings.ParseSettings) error {
		if err := requireColumns(t, src); err != nil {
			return err
		}
		i := t.Index(src)
		t.Map(dst, func(r int) string { return t.Rows[r][i] })
		return nil
	}
}

// JoinColumns sets dst to the srcs joined with sep. Empty trailing parts
// are kept so the result matches a plain string concatenation.
func JoinColumns(dst, sep string, srcs ...string) Hook {
	return func(t *table.Table, _ *settings.ParseSettings) error {
		if err := requireColumns(t, srcs...); err != nil {
			return err
		}
		idx := make([]int, len(srcs))
		for i, s := range srcs {
			idx[i] = t.Index(s)
		}
		t.Map(dst, func(r int) string {
			parts := make([]string, len(idx))
			for i, c := range idx {
				parts[i] = t.Rows[r][c]
			}
			return strings.Join(parts, sep)
		})
		return nil
	}
}

// TrimChars strips cutset from both ends of col
func TrimChars(col, cutset string) Hook {
	return func(t *table.Table, _ *settings.ParseSettings) error {
		if err := requireColumns(t, col); err != nil {
			return err
		}
		i := t.Index(col)
		t.Map(col, func(r int) string { return strings.Trim(t.Rows[r][i], cutset) })
		return nil
	}
}

// StripPattern sets dst to src with every match of pattern removed
func StripPattern(src, dst, pattern string) Hook {
	re := regexp.MustCompile(pattern)
	return func(t *table.Table, _ *settings.ParseSettings) error {
		if err := requireColumns(t, src); err != nil {
			return err
		}
		i := t.Index(src)
		t.Map(dst, func(r int) string { return re.ReplaceAllString(t.Rows[r][i], "") })
		return nil
	}
}

// MapAccessions splits src on splitSep, replaces every accession found in
// the gene mapper and writes the parts joined with joinSep to dst.
// Accessions without a mapping are kept.
func MapAccessions(src, dst, splitSep, joinSep string) Hook {
	return func(t *table.Table, ps *settings.ParseSettings) error {
		if err := requireColumns(t, src); err != nil {
			return err
		}
		var mapper map[string]string
		if ps != nil {
			mapper = ps.GeneMapper
		}
		i := t.Index(src)
		t.Map(dst, func(r int) string {
			v := t.Rows[r][i]
			if v == "" {
				return ""
			}
			parts := strings.Split(v, splitSep)
			for j, p := range parts {
				p = strings.TrimSpace(p)
				if m, ok := mapper[p]; ok {
					p = m
				}
				parts[j] = p
			}
			return strings.Join(parts, joinSep)
		})
		return nil
	}
}

func parsesAsFloat(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// DecimalComma rewrites decimal-comma numbers to decimal-point numbers
// when any of the trigger columns holds a value that only parses after the
// substitution. Every column whose non-empty cells all parse after the
// substitution is then rewritten. Tables without such values are untouched.
func DecimalComma(triggers ...string) Hook {
	return func(t *table.Table, _ *settings.ParseSettings) error {
		triggered := false
		for _, col := range triggers {
			i := t.Index(col)
			if i < 0 {
				continue
			}
			for _, row := range t.Rows {
				v := row[i]
				if v != "" && !parsesAsFloat(v) && strings.Contains(v, ",") &&
					parsesAsFloat(strings.ReplaceAll(v, ",", ".")) {
					triggered = true
					break
				}
			}
			if triggered {
				break
			}
		}
		if !triggered {
			return nil
		}

		for c := range t.Columns {
			numeric, hasComma := true, false
			for _, row := range t.Rows {
				v := row[c]
				if v == "" {
					continue
				}
				if strings.Contains(v, ",") {
					hasComma = true
				}
				if !parsesAsFloat(strings.ReplaceAll(v, ",", ".")) {
					numeric = false
					break
				}
			}
			if !numeric || !hasComma {
				continue
			}
			for _, row := range t.Rows {
				row[c] = strings.ReplaceAll(row[c], ",", ".")
			}
		}
		return nil
	}
}

type siteMod struct {
	name  string
	site  int
	order int
}

// ModSites builds a proforma sequence from a plain sequence and parallel
// semicolon-separated modification and site lists. Site 0 is the N-term,
// -1 the C-term, any other site n puts the modification after residue n.
// Modification names are cut at "@" ("Oxidation@M" -> "Oxidation").
func ModSites(seqCol, modsCol, sitesCol, dst string) Hook {
	return func(t *table.Table, _ *settings.ParseSettings) error {
		if err := requireColumns(t, seqCol, modsCol, sitesCol); err != nil {
			return err
		}
		si, mi, ti := t.Index(seqCol), t.Index(modsCol), t.Index(sitesCol)
		var firstErr error
		t.Map(dst, func(r int) string {
			row := t.Rows[r]
			out, err := aggregateModSites(row[si], row[mi], row[ti])
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("row %d: %w", r+2, err)
			}
			return out
		})
		return firstErr
	}
}

func aggregateModSites(seq, mods, sites string) (string, error) {
	if strings.TrimSpace(mods) == "" || strings.EqualFold(mods, "nan") {
		return seq, nil
	}
	names := strings.Split(mods, ";")
	siteStrs := strings.Split(sites, ";")
	if len(names) != len(siteStrs) {
		return seq, fmt.Errorf("%d modifications but %d sites", len(names), len(siteStrs))
	}

	list := make([]siteMod, 0, len(names))
	for i, n := range names {
		if n == "" {
			continue
		}
		site, err := strconv.Atoi(strings.TrimSpace(siteStrs[i]))
		if err != nil {
			return seq, fmt.Errorf("bad site %q: %w", siteStrs[i], err)
		}
		if site < -1 || site > len(seq) {
			return seq, fmt.Errorf("site %d outside sequence of length %d", site, len(seq))
		}
		list = append(list, siteMod{name: strings.SplitN(n, "@", 2)[0], site: site, order: i})
	}

	// Right to left so earlier offsets stay valid.
	sort.Slice(list, func(i, j int) bool {
		oi, oj := offset(list[i].site, len(seq)), offset(list[j].site, len(seq))
		if oi != oj {
			return oi > oj
		}
		// C-terminal mods are appended, the rest are inserted in front
		if list[i].site == -1 {
			return list[i].order < list[j].order
		}
		return list[i].order > list[j].order
	})
	out := seq
	for _, m := range list {
		switch m.site {
		case 0:
			out = "[" + m.name + "]-" + out
		case -1:
			out = out + "-[" + m.name + "]"
		default:
			out = out[:m.site] + "[" + m.name + "]" + out[m.site:]
		}
	}
	return out, nil
}

func offset(site, n int) int {
	if site == -1 {
		return n + 1
	}
	return site
}
