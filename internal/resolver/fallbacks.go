package resolver

import (
	"net/url"
	"strings"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/brand"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/textnorm"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/urlx"
)

// FallbackProvider is the provider name reported on synthesized results.
const FallbackProvider = "fallback"

// Synthesizer builds degraded results from the catalog alone. It never
// fails and never calls out.
type Synthesizer struct {
	src          catalog.Source
	brands       *brand.Detector
	maxMerchants int
}

// NewSynthesizer creates a fallback synthesizer.
func NewSynthesizer(src catalog.Source, maxMerchants int) *Synthesizer {
	if maxMerchants <= 0 {
		maxMerchants = 2
	}
	return &Synthesizer{src: src, brands: brand.NewDetector(src), maxMerchants: maxMerchants}
}

// Synthesize returns a structurally valid result for p. official, when not
// nil, is an official link found before the failure and is kept.
func (s *Synthesizer) Synthesize(p plan, official *links.Link) *links.ResolvedLinks {
	cat := s.src.Current()

	out := &links.ResolvedLinks{
		Merchants:  s.merchants(cat, p),
		ActionType: p.Action,
		Provider:   FallbackProvider,
	}

	switch {
	case official != nil:
		o := *official
		out.Official = &o
	case p.Brand != nil:
		out.Official = s.brands.OfficialLink(*p.Brand, p.Language)
	}

	out.Maps = mapsLink(cat, p)
	return out
}

// merchants expands the catalog's generic search templates for the
// request's vertical and action.
func (s *Synthesizer) merchants(cat *catalog.Catalog, p plan) []links.Link {
	tmpls := cat.FallbackLinks(string(p.Vertical), string(p.Action), p.Language)

	q := url.QueryEscape(withCity(p.Option, p.City))
	lang := cat.Lang(p.Language)
	r := strings.NewReplacer("{q}", q, "{lang}", langCode(cat, p.Language), "{tld}", lang.TLD)

	out := make([]links.Link, 0, s.maxMerchants)
	for _, t := range tmpls {
		if len(out) == s.maxMerchants {
			break
		}
		u := r.Replace(t.URL)
		if urlx.Host(u) == "" {
			continue
		}
		out = append(out, links.Link{URL: u, Title: t.Title, Domain: urlx.DomainOf(u)})
	}
	return out
}

// mapsLink returns the directions link for directions requests and nil
// otherwise. It depends on the catalog only, so it survives every failure.
func mapsLink(cat *catalog.Catalog, p plan) *links.MapsLink {
	if p.Action != links.ActionDirections || cat.MapsURL == "" {
		return nil
	}
	q := url.QueryEscape(withCity(p.Option, p.City))
	title := cat.Lang(p.Language).MapsTitle
	if title == "" {
		title = p.Option
	}
	return &links.MapsLink{
		URL:   strings.ReplaceAll(cat.MapsURL, "{q}", q),
		Title: title,
	}
}

// withCity appends city to option unless the option already names it.
func withCity(option, city string) string {
	option = strings.TrimSpace(option)
	if city == "" || strings.Contains(textnorm.Fold(option), textnorm.Fold(city)) {
		return option
	}
	return option + " " + city
}

func langCode(cat *catalog.Catalog, lang string) string {
	if cat.Supports(lang) {
		return lang
	}
	return cat.DefaultLanguage
}
