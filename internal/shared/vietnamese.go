package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldVietnamese lowercases a string and strips diacritics so that
// service names such as "Điện" and "dien" compare equal.
func FoldVietnamese(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	// NFD does not decompose the stroked letter đ.
	folded = strings.NewReplacer("đ", "d", "Đ", "D").Replace(folded)
	return strings.ToLower(strings.TrimSpace(folded))
}

// ContainsFolded reports whether haystack contains needle after
// diacritic folding on both sides.
func ContainsFolded(haystack, needle string) bool {
	return strings.Contains(FoldVietnamese(haystack), FoldVietnamese(needle))
}
