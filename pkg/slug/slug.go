package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Generate creates a URL-friendly slug from the given name. Accented
// characters are decomposed (NFD) and their combining marks stripped, so
// Portuguese product names transliterate cleanly to ASCII.
//
// Examples:
//   - "Plano Profissional+" → "plano-profissional"
//   - "Curso de Programação" → "curso-de-programacao"
//   - "Assinatura Única" → "assinatura-unica"
func Generate(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))

	slug = stripDiacritics(slug)

	// Collapse any run of non-alphanumeric characters into a single hyphen.
	slug = slugRegexp.ReplaceAllString(slug, "-")

	return strings.Trim(slug, "-")
}

// stripDiacritics removes combining marks after NFD decomposition.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
