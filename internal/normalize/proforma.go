package normalize

import (
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/proteobench/benchcore/internal/settings"
)

type modSite int

const (
	siteNTerm modSite = iota
	siteResidue
	siteCTerm
)

type modToken struct {
	start, end int // byte span in the input
	full       string
	inner      string
}

type placedMod struct {
	offset int // insertion point in the residue sequence
	site   modSite
	order  int
	text   string
}

// findTokens returns the non-overlapping matches of all patterns, ordered
// by position. The first capture group is the token's inner text.
func findTokens(s string, rules *settings.ModificationRules) []modToken {
	var tokens []modToken
	for _, re := range rules.Patterns {
		for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
			tok := modToken{start: m[0], end: m[1], full: s[m[0]:m[1]]}
			if len(m) >= 4 && m[2] >= 0 {
				tok.inner = s[m[2]:m[3]]
			} else {
				tok.inner = strings.Trim(tok.full, "[]()")
			}
			tokens = append(tokens, tok)
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].start < tokens[j].start })

	kept := tokens[:0]
	last := -1
	for _, tok := range tokens {
		if tok.start < last {
			continue
		}
		kept = append(kept, tok)
		last = tok.end
	}
	return kept
}

func isResidue(r rune, rules *settings.ModificationRules) bool {
	switch {
	case rules.IsAlpha && rules.IsUpper:
		return unicode.IsLetter(r) && unicode.IsUpper(r)
	case rules.IsAlpha:
		return unicode.IsLetter(r)
	default:
		return unicode.IsUpper(r)
	}
}

func modName(tok modToken, rules *settings.ModificationRules) string {
	if name, ok := rules.Dict[strings.ToLower(tok.full)]; ok {
		return name
	}
	if name, ok := rules.Dict[strings.ToLower(tok.inner)]; ok {
		return name
	}
	return tok.inner
}

// Proforma rewrites a tool's modified sequence into proforma notation with
// canonical modification names: "[mod]-" for the N-term, "-[mod]" for the
// C-term and "[mod]" right after a modified residue. Characters outside
// modification tokens that are not residues ("_", "-", ".") are dropped.
func Proforma(s string, rules *settings.ModificationRules) string {
	tokens := findTokens(s, rules)

	var residues []rune
	counts := make([]int, len(tokens)) // residues before each token
	prev := make([]rune, len(tokens))
	next := make([]rune, len(tokens))
	pos := 0
	for i, tok := range tokens {
		residues = appendResidues(residues, s[pos:tok.start], rules)
		counts[i] = len(residues)
		prev[i] = lastRune(s[:tok.start])
		next[i] = firstRune(s[tok.end:])
		pos = tok.end
	}
	residues = appendResidues(residues, s[pos:], rules)

	n := len(residues)
	mods := make([]placedMod, 0, len(tokens))
	for i, tok := range tokens {
		p := counts[i]
		name := modName(tok, rules)
		site := siteResidue
		switch {
		case p == 0 && (!rules.BeforeAA || prev[i] == '_' || next[i] == '-'):
			site = siteNTerm
		case p == n && (rules.BeforeAA || prev[i] == '_' || prev[i] == '-'):
			site = siteCTerm
		}

		m := placedMod{site: site, order: i}
		switch site {
		case siteNTerm:
			m.offset, m.text = 0, "["+name+"]-"
		case siteCTerm:
			m.offset, m.text = n, "-["+name+"]"
		default:
			idx := p - 1
			if rules.BeforeAA {
				idx = p
			}
			m.offset, m.text = idx+1, "["+name+"]"
		}
		mods = append(mods, m)
	}

	sort.SliceStable(mods, func(i, j int) bool {
		if mods[i].offset != mods[j].offset {
			return mods[i].offset < mods[j].offset
		}
		if mods[i].site != mods[j].site {
			return mods[i].site < mods[j].site
		}
		return mods[i].order < mods[j].order
	})

	// Insert right to left so earlier offsets stay valid.
	out := slices.Clone(residues)
	for i := len(mods) - 1; i >= 0; i-- {
		out = slices.Insert(out, mods[i].offset, []rune(mods[i].text)...)
	}
	return string(out)
}

func appendResidues(dst []rune, s string, rules *settings.ModificationRules) []rune {
	for _, r := range s {
		if isResidue(r, rules) {
			dst = append(dst, r)
		}
	}
	return dst
}

func lastRune(s string) rune {
	if s == "" {
		return 0
	}
	r := []rune(s)
	return r[len(r)-1]
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
