// Package ranking filters and scores merchant candidates.
package ranking

import (
	"sort"
	"strings"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/textnorm"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/urlx"
)

// Context carries the request attributes scoring depends on.
type Context struct {
	Action   links.Action
	Vertical links.Vertical
	Language string
	City     string
}

// Scored is a candidate link with its score and provider position.
type Scored struct {
	Link     links.Link
	Score    int
	Position int
	Category string
}

// titleKinds lists the title keyword kinds that earn a bonus per action.
var titleKinds = map[links.Action][]string{
	links.ActionDirections: {catalog.TitleReview},
	links.ActionReserve:    {catalog.TitleBook, catalog.TitleReview},
	links.ActionBuy:        {catalog.TitleBuy, catalog.TitlePrice, catalog.TitleReview},
}

// Scorer ranks merchant candidates with the catalog's reputation tables.
type Scorer struct {
	src catalog.Source
}

// NewScorer creates a scorer.
func NewScorer(src catalog.Source) *Scorer {
	return &Scorer{src: src}
}

// Filter drops candidates that can never be merchants: unparsable URLs,
// search engines, and categories the vertical excludes.
func (s *Scorer) Filter(items []links.Link, sc Context) []links.Link {
	return s.filter(s.src.Current(), items, sc)
}

// Score computes the additive score of one candidate.
func (s *Scorer) Score(l links.Link, position int, sc Context) Scored {
	return s.score(s.src.Current(), l, position, sc)
}

// Rank filters, scores and sorts candidates by descending score. Ties keep
// provider order.
func (s *Scorer) Rank(items []links.Link, sc Context) []Scored {
	cat := s.src.Current()
	kept := s.filter(cat, items, sc)

	out := make([]Scored, 0, len(kept))
	for i, l := range kept {
		out = append(out, s.score(cat, l, i, sc))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Top returns the links of the first n ranked candidates.
func Top(ranked []Scored, n int) []links.Link {
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]links.Link, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, r.Link)
	}
	return out
}

func (s *Scorer) filter(cat *catalog.Catalog, items []links.Link, sc Context) []links.Link {
	excluded := cat.VerticalExclusions[string(sc.Vertical)]
	out := make([]links.Link, 0, len(items))
	for _, l := range items {
		host := urlx.Host(l.URL)
		if host == "" {
			continue
		}
		label := urlx.Label(urlx.RegistrableDomain(host))
		if cat.IsSearchEngine(label) {
			continue
		}
		if containsString(excluded, cat.CategoryOf(label)) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s *Scorer) score(cat *catalog.Catalog, l links.Link, position int, sc Context) Scored {
	domain := urlx.DomainOf(l.URL)
	category := cat.CategoryOf(urlx.Label(domain))

	score, ok := cat.Reputation[category]
	if !ok {
		score = cat.Reputation["unknown"]
	}

	if sc.City != "" && mentionsCity(l, sc.City) {
		score += cat.CityBonus
	}

	score += cat.ActionBonuses[string(sc.Action)][category]

	title := textnorm.Fold(l.Title)
	for _, kind := range titleKinds[sc.Action] {
		if cat.TitleMatcher(sc.Language, kind).Match(title) {
			score += cat.TitleBonus
		}
	}

	if l.Domain == "" {
		l.Domain = domain
	}
	return Scored{Link: l, Score: score, Position: position, Category: category}
}

func mentionsCity(l links.Link, city string) bool {
	folded := textnorm.Fold(city)
	if strings.Contains(textnorm.Fold(l.Title), folded) {
		return true
	}
	u := strings.ToLower(l.URL)
	slug := textnorm.Slugify(city)
	return strings.Contains(u, slug) || strings.Contains(textnorm.Fold(u), folded)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
