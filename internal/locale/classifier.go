// Package locale detects the language of a decision and the vertical its
// options belong to.
package locale

import (
	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/textnorm"
)

// Result is the outcome of Classify.
type Result struct {
	Language string
	Vertical links.Vertical
}

// Classifier scores free text against the catalog's per-language dictionaries.
type Classifier struct {
	src         catalog.Source
	defaultLang string
}

// NewClassifier creates a classifier. defaultLang is used when detection is
// inconclusive; an unsupported value falls back to the catalog default.
func NewClassifier(src catalog.Source, defaultLang string) *Classifier {
	return &Classifier{src: src, defaultLang: defaultLang}
}

// Classify resolves language and vertical for text. Explicit values win
// when the catalog supports them.
func (c *Classifier) Classify(text, language, vertical string) Result {
	cat := c.src.Current()

	lang := language
	if !cat.Supports(lang) {
		lang = c.detect(cat, text)
	}

	v, ok := links.ParseVertical(vertical)
	if !ok {
		v = c.vertical(cat, text, lang)
	}
	return Result{Language: lang, Vertical: v}
}

// DetectLanguage returns the supported language whose markers occur most
// often in text. Ties and texts without markers resolve to the default.
func (c *Classifier) DetectLanguage(text string) string {
	return c.detect(c.src.Current(), text)
}

// ClassifyVertical returns the vertical with the strictly highest keyword
// count for lang, or VerticalNone on a tie or no match.
func (c *Classifier) ClassifyVertical(text, lang string) links.Vertical {
	return c.vertical(c.src.Current(), text, lang)
}

func (c *Classifier) fallbackLanguage(cat *catalog.Catalog) string {
	if cat.Supports(c.defaultLang) {
		return c.defaultLang
	}
	return cat.DefaultLanguage
}

func (c *Classifier) detect(cat *catalog.Catalog, text string) string {
	best := c.fallbackLanguage(cat)
	folded := textnorm.Fold(text)
	if folded == "" {
		return best
	}
	bestScore := cat.MarkerMatcher(best).Count(folded)
	for _, code := range cat.LanguageCodes() {
		if code == best {
			continue
		}
		if score := cat.MarkerMatcher(code).Count(folded); score > bestScore {
			best, bestScore = code, score
		}
	}
	return best
}

func (c *Classifier) vertical(cat *catalog.Catalog, text, lang string) links.Vertical {
	folded := textnorm.Fold(text)
	if folded == "" {
		return links.VerticalNone
	}
	matchers := cat.VerticalMatchers(lang)
	best, bestScore, tied := links.VerticalNone, 0, false
	for _, v := range links.Verticals {
		score := matchers[string(v)].Count(folded)
		switch {
		case score > bestScore:
			best, bestScore, tied = v, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if tied {
		return links.VerticalNone
	}
	return best
}
