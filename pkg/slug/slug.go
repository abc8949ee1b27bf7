package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that NFD does not decompose into base + mark.
var foldReplacer = strings.NewReplacer(
	"ı", "i", "ø", "o", "ß", "ss", "æ", "ae", "œ", "oe", "đ", "d", "ł", "l",
)

// Generate turns a display name into a URL-friendly slug, folding accents to
// ASCII:
//   - "Électronique Grand Public" → "electronique-grand-public"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := fold(strings.ToLower(strings.TrimSpace(name)))
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Normalize trims a caller-supplied slug. Stored slugs are compared
// verbatim, so nothing else about it may change.
func Normalize(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeAll trims every slug in ss, dropping blanks and duplicates while
// keeping first-seen order.
func NormalizeAll(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	out := make([]string, 0, len(ss))
	seen := make(map[string]struct{}, len(ss))
	for _, raw := range ss {
		s := Normalize(raw)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return foldReplacer.Replace(out)
}
