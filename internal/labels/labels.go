// Package labels maps classifier output classes to displayable Arabic glyphs.
package labels

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Count is the number of known classes.
const Count = 30

var glyphs = [Count]string{
	"ا", "ب", "ت", "ث", "ج", "ح", "خ", "د", "ذ", "ر",
	"ز", "س", "ش", "ص", "ض", "ط", "ظ", "ع", "غ", "ف",
	"ق", "ك", "ل", "م", "ن", "ه", "و", "ي", "ة", "لا",
}

// Entry is one row of the glyph table.
type Entry struct {
	ID    int    `json:"id"`
	Glyph string `json:"glyph"`
}

// Table returns the glyph table ordered by class id.
func Table() []Entry {
	out := make([]Entry, Count)
	for i, g := range glyphs {
		out[i] = Entry{ID: i, Glyph: g}
	}
	return out
}

// Glyph returns the glyph for class id.
func Glyph(id int) (string, bool) {
	if id < 0 || id >= Count {
		return "", false
	}
	return glyphs[id], true
}

// Mapper translates raw classifier classes into glyphs.
//
// Lookup order: numeric class id, then string alias, then the raw value
// unchanged. A Mapper never fails and never returns an empty string for a
// non-empty input.
type Mapper struct {
	aliases map[string]int
}

// NewMapper creates a mapper. aliases maps string class names (for example
// corpus directory names) to class ids; it may be nil.
func NewMapper(aliases map[string]int) *Mapper {
	m := &Mapper{aliases: make(map[string]int, len(aliases))}
	for k, v := range aliases {
		m.aliases[normalize(k)] = v
	}
	return m
}

// Label maps a raw class to its display string.
func (m *Mapper) Label(raw string) string {
	if id, ok := m.ClassID(raw); ok {
		return glyphs[id]
	}
	return raw
}

// ClassID resolves raw to a known class id without falling back to passthrough.
// Ids may be written with any Unicode decimal digits, e.g. "٣".
func (m *Mapper) ClassID(raw string) (int, bool) {
	if id, err := strconv.Atoi(foldDigits(strings.TrimSpace(raw))); err == nil {
		if _, ok := Glyph(id); ok {
			return id, true
		}
	}
	if m == nil {
		return 0, false
	}
	if id, ok := m.aliases[normalize(raw)]; ok {
		if _, known := Glyph(id); known {
			return id, true
		}
	}
	return 0, false
}

// foldDigits rewrites Unicode decimal digits as ASCII digits.
func foldDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII {
			return r
		}
		if v, ok := digitValue(r); ok {
			return '0' + rune(v)
		}
		return r
	}, s)
}

// digitValue returns the value of a decimal digit rune. Every range of the
// Nd table is a run of whole 0-9 blocks.
func digitValue(r rune) (int, bool) {
	for _, rg := range unicode.Nd.R16 {
		if r >= rune(rg.Lo) && r <= rune(rg.Hi) {
			return int(r-rune(rg.Lo)) % 10, true
		}
	}
	for _, rg := range unicode.Nd.R32 {
		if r >= rune(rg.Lo) && r <= rune(rg.Hi) {
			return int(r-rune(rg.Lo)) % 10, true
		}
	}
	return 0, false
}

// Aliases returns a copy of the configured alias table.
func (m *Mapper) Aliases() map[string]int {
	out := make(map[string]int, len(m.aliases))
	for k, v := range m.aliases {
		out[k] = v
	}
	return out
}

// normalize folds case because config loaders lowercase map keys.
func normalize(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}
