package stepper

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD and drops combining marks, so "Preparación"
// and "Preparacion" compare equal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalizer produces canonical comparison keys for stage labels. The alias
// table is injected data: extending the vocabulary never touches matching
// logic.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer builds a normalizer over the given alias table. A nil table
// uses the defaults. Keys and values are normalized on construction so the
// table may be written with accents and mixed case.
func NewNormalizer(aliases AliasTable) *Normalizer {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	normalized := make(map[string]string, len(aliases))
	for from, to := range aliases {
		normalized[fold(from)] = fold(to)
	}
	return &Normalizer{aliases: normalized}
}

// Normalize lower-cases, strips diacritics, collapses whitespace and resolves
// known aliases. It is idempotent and safe on empty input.
func (n *Normalizer) Normalize(raw string) string {
	key := fold(raw)
	if canonical, ok := n.aliases[key]; ok {
		return canonical
	}
	return key
}

func fold(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	stripped, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		stripped = lowered
	}
	return strings.Join(strings.Fields(stripped), " ")
}
