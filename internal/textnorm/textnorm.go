// Package textnorm folds free text into a comparable form: lower case,
// no diacritics, single spaces. Every keyword lookup in the engine goes
// through Fold so that "Château" and "chateau" match the same entry.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)
)

// StripAccents removes combining marks, keeping case.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lower-cases, strips accents and collapses whitespace.
func Fold(s string) string {
	s = strings.ToLower(StripAccents(s))
	// typographic apostrophes show up in French questions ("l’hôtel")
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Slugify turns a display name into a URL path segment: "Tern GSD S10" -> "tern-gsd-s10".
func Slugify(s string) string {
	return strings.Trim(nonSlugRun.ReplaceAllString(Fold(s), "-"), "-")
}

// Matcher matches whole words or phrases against folded text. Boundaries
// are any non letter/digit rune so accented neighbours do not count as
// part of the word. A keyword ending in '*' also matches words that start
// with it ("escort*" hits "escorts"); a keyword wrapped in '*' matches
// anywhere inside a word ("*porn*" hits "pornstar" and "hardporn").
type Matcher struct {
	re *regexp.Regexp
}

// NewMatcher compiles a matcher for the given keywords. Keywords are folded
// before compiling; an empty list yields a matcher that never matches.
func NewMatcher(keywords []string) *Matcher {
	alts := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if alt := keywordPattern(kw); alt != "" {
			alts = append(alts, alt)
		}
	}
	if len(alts) == 0 {
		return &Matcher{}
	}
	pattern := `(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}])`
	return &Matcher{re: regexp.MustCompile(pattern)}
}

const wordRunes = `[\p{L}\p{N}]*`

func keywordPattern(kw string) string {
	kw = strings.TrimSpace(kw)
	prefix := strings.HasPrefix(kw, "*")
	suffix := strings.HasSuffix(kw, "*")
	kw = Fold(strings.Trim(kw, "*"))
	if kw == "" {
		return ""
	}
	alt := strings.ReplaceAll(regexp.QuoteMeta(kw), " ", `\s+`)
	if prefix {
		alt = wordRunes + alt
	}
	if suffix {
		alt += wordRunes
	}
	return alt
}

// Match reports whether folded text contains any keyword.
func (m *Matcher) Match(folded string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(folded)
}

// Count returns the number of keyword occurrences in folded text. Adjacent
// matches sharing a separator are all counted.
func (m *Matcher) Count(folded string) int {
	if m == nil || m.re == nil {
		return 0
	}
	// pad so that a shared separator between two hits is not consumed twice
	padded := " " + strings.ReplaceAll(folded, " ", "  ") + " "
	return len(m.re.FindAllStringIndex(padded, -1))
}
