// Package action decides whether an option calls for directions, a
// reservation or a purchase.
package action

import (
	"strings"
	"unicode"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/textnorm"
)

// Input is everything the rules look at.
type Input struct {
	Option   string
	Question string
	Language string
	Vertical links.Vertical

	// City is filled by Classify from the question when empty.
	City string
}

// Rule is one entry of the ordered rule list. The first rule whose Match
// returns true decides the action.
type Rule struct {
	Name   string
	Match  func(cat *catalog.Catalog, in Input) bool
	Action links.Action
}

// Decision is the outcome of Classify.
type Decision struct {
	Action links.Action
	Rule   string
	City   string
}

// DefaultRules returns the production rule list.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "product-keyword",
			Action: links.ActionBuy,
			Match: func(cat *catalog.Catalog, in Input) bool {
				return cat.ProductMatcher().Match(textnorm.Fold(in.Option))
			},
		},
		{
			Name:   "automotive",
			Action: links.ActionBuy,
			Match: func(_ *catalog.Catalog, in Input) bool {
				return in.Vertical == links.VerticalAutomotive
			},
		},
		{
			Name:   "place-keyword",
			Action: links.ActionDirections,
			Match: func(cat *catalog.Catalog, in Input) bool {
				return cat.PlaceMatcher().Match(textnorm.Fold(in.Option))
			},
		},
		{
			Name:   "local-business",
			Action: links.ActionDirections,
			Match: func(cat *catalog.Catalog, in Input) bool {
				if in.City == "" || !cat.LocalCueMatcher(in.Language).Match(textnorm.Fold(in.Question)) {
					return false
				}
				if cat.BusinessMatcher().Match(textnorm.Fold(in.Option)) {
					return true
				}
				return in.Vertical == links.VerticalDining && looksLikeName(in.Option)
			},
		},
		{
			Name:   "bookable-without-city",
			Action: links.ActionReserve,
			Match: func(_ *catalog.Catalog, in Input) bool {
				if in.City != "" {
					return false
				}
				switch in.Vertical {
				case links.VerticalDining, links.VerticalAccommodation, links.VerticalTravel:
					return true
				}
				return false
			},
		},
		{
			Name:   "default",
			Action: links.ActionBuy,
			Match:  func(*catalog.Catalog, Input) bool { return true },
		},
	}
}

// Classifier runs an ordered rule list against the current catalog.
type Classifier struct {
	src   catalog.Source
	rules []Rule
}

// NewClassifier creates a classifier. With no rules, DefaultRules is used.
func NewClassifier(src catalog.Source, rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{src: src, rules: rules}
}

// Classify returns the action for in. It never fails: a rule list without
// a match yields ActionBuy.
func (c *Classifier) Classify(in Input) Decision {
	cat := c.src.Current()
	if in.City == "" {
		in.City = ExtractCity(cat, in.Question, in.Language)
	}
	for _, r := range c.rules {
		if r.Match(cat, in) {
			return Decision{Action: r.Action, Rule: r.Name, City: in.City}
		}
	}
	return Decision{Action: links.ActionBuy, Rule: "none", City: in.City}
}

// ExtractCity finds a city in question: the earliest known city first, then
// the language's prepositional patterns ("à Annecy", "in Seattle").
func ExtractCity(cat *catalog.Catalog, question, lang string) string {
	if strings.TrimSpace(question) == "" {
		return ""
	}

	best, bestAt := "", -1
	for _, city := range cat.Cities() {
		if at := city.Index(question); at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = city.Name, at
		}
	}
	if best != "" {
		return best
	}

	stripped := textnorm.StripAccents(question)
	for _, re := range cat.CityPatterns(lang) {
		for _, m := range re.FindAllStringSubmatch(stripped, -1) {
			if len(m) < 2 {
				continue
			}
			name := strings.TrimSpace(m[1])
			first := strings.Fields(name)
			if len(first) == 0 || cat.IsCityStopword(first[0]) {
				continue
			}
			return name
		}
	}
	return ""
}

// looksLikeName reports whether option reads like a proper name: it starts
// with an upper-case letter and is short.
func looksLikeName(option string) bool {
	option = strings.TrimSpace(option)
	if option == "" {
		return false
	}
	r := []rune(option)[0]
	if !unicode.IsUpper(r) {
		return false
	}
	return len(strings.Fields(option)) <= 6
}
