// Package catalog holds the versioned dictionaries the link engine
// classifies, scores and validates with: language markers, vertical
// keywords, brands, domain reputation, safety lists and fallback merchants.
//
// A default catalog is embedded in the binary. Operators can point the
// engine at an override file, which is watched and hot-reloaded.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/textnorm"
)

//go:embed data/catalog.yaml
var defaultCatalog []byte

// Title keyword kinds used by the scorer.
const (
	TitleReview = "review"
	TitleBook   = "book"
	TitlePrice  = "price"
	TitleBuy    = "buy"
)

// Catalog is the parsed catalog. Compiled matchers are built once by Parse
// and the value is treated as immutable afterwards.
type Catalog struct {
	Version         string              `yaml:"version"`
	DefaultLanguage string              `yaml:"default_language"`
	Languages       map[string]Language `yaml:"languages"`

	ProductKeywords       []string `yaml:"product_keywords"`
	PlaceKeywords         []string `yaml:"place_keywords"`
	LocalBusinessKeywords []string `yaml:"local_business_keywords"`
	KnownCities           []string `yaml:"known_cities"`
	CaseSensitiveCities   []string `yaml:"case_sensitive_cities"`
	CityStopwords         []string `yaml:"city_stopwords"`

	ProductPaths  map[string]string `yaml:"product_paths"`
	Brands        []Brand           `yaml:"brands"`
	Marketplaces  []string          `yaml:"marketplaces"`
	SearchEngines []string          `yaml:"search_engines"`

	DomainCategories   map[string][]string       `yaml:"domain_categories"`
	Reputation         map[string]int            `yaml:"reputation"`
	ActionBonuses      map[string]map[string]int `yaml:"action_bonuses"`
	TitleBonus         int                       `yaml:"title_bonus"`
	CityBonus          int                       `yaml:"city_bonus"`
	VerticalExclusions map[string][]string       `yaml:"vertical_exclusions"`

	Fallbacks     map[string]map[string][]FallbackLink `yaml:"fallbacks"`
	MapsURL       string                               `yaml:"maps_url"`
	SafeSearchURL string                               `yaml:"safe_search_url"`

	Safety Safety `yaml:"safety"`

	c compiled
}

// Language is the per-language slice of the catalog.
type Language struct {
	Markers          []string                     `yaml:"markers"`
	Verticals        map[string][]string          `yaml:"verticals"`
	LocalCues        []string                     `yaml:"local_cues"`
	CityPatterns     []string                     `yaml:"city_patterns"`
	Queries          map[string]map[string]string `yaml:"queries"`
	OfficialTemplate string                       `yaml:"official_template"`
	TitleKeywords    map[string][]string          `yaml:"title_keywords"`
	MapsTitle        string                       `yaml:"maps_title"`
	OfficialTitle    string                       `yaml:"official_title"`
	TLD              string                       `yaml:"tld"`
}

// Brand maps option keywords to the brand's official domains.
type Brand struct {
	ID          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	Keywords    []string            `yaml:"keywords"`
	Domains     map[string][]string `yaml:"domains"`
	ProductPath string              `yaml:"product_path"`
	Vertical    string              `yaml:"vertical"`
}

// DomainsFor returns the brand's domains for lang followed by its default
// domains, without duplicates. The first entry is the primary domain.
func (b Brand) DomainsFor(lang string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range append(append([]string{}, b.Domains[lang]...), b.Domains["default"]...) {
		d = strings.ToLower(d)
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// AllDomains returns every domain of the brand across locales.
func (b Brand) AllDomains() []string {
	seen := make(map[string]bool)
	var out []string
	keys := make([]string, 0, len(b.Domains))
	for k := range b.Domains {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, d := range b.Domains[k] {
			d = strings.ToLower(d)
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// FallbackLink is a generic merchant search URL template. {q}, {lang} and
// {tld} are substituted at synthesis time.
type FallbackLink struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// Safety holds the link safety policy.
type Safety struct {
	Allow             map[string][]string `yaml:"allow"`
	Deny              []string            `yaml:"deny"`
	HighRiskDeny      []string            `yaml:"high_risk_deny"`
	DeniedSubdomains  []string            `yaml:"denied_subdomains"`
	TrackingParams    []string            `yaml:"tracking_params"`
	AdSubdomains      []string            `yaml:"ad_subdomains"`
	MaxSubdomainDepth int                 `yaml:"max_subdomain_depth"`
	Forbidden         []ForbiddenGroup    `yaml:"forbidden"`
}

// ForbiddenGroup is a category of forbidden terms.
type ForbiddenGroup struct {
	Category string   `yaml:"category"`
	HighRisk bool     `yaml:"high_risk"`
	Terms    []string `yaml:"terms"`
}

// CompiledForbidden is a ForbiddenGroup with its terms compiled.
type CompiledForbidden struct {
	Category string
	HighRisk bool
	Matcher  *textnorm.Matcher
}

// City is a known city with its compiled matcher.
type City struct {
	Name string
	re   *regexp.Regexp
	m    *textnorm.Matcher
}

// Index returns the position of the city in text, or -1. Case-sensitive
// cities are matched against the accent-stripped original text, the others
// against its folded form.
func (c City) Index(text string) int {
	if c.re != nil {
		loc := c.re.FindStringIndex(textnorm.StripAccents(text))
		if loc == nil {
			return -1
		}
		return loc[0]
	}
	folded := textnorm.Fold(text)
	if !c.m.Match(folded) {
		return -1
	}
	return strings.Index(folded, textnorm.Fold(c.Name))
}

type brandKeyword struct {
	folded string
	brand  int
	word   *textnorm.Matcher
}

type compiled struct {
	markers      map[string]*textnorm.Matcher
	verticals    map[string]map[string]*textnorm.Matcher
	localCues    map[string]*textnorm.Matcher
	cityPatterns map[string][]*regexp.Regexp
	titles       map[string]map[string]*textnorm.Matcher

	product  *textnorm.Matcher
	place    *textnorm.Matcher
	business *textnorm.Matcher
	cities   []City
	cityStop map[string]bool

	brandKeywords []brandKeyword
	brandByID     map[string]int
	marketplaces  map[string]bool
	searchEngines map[string]bool
	categoryOf    map[string]string
	forbidden     []CompiledForbidden
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// MustDefault is Default for tests and static wiring; it panics on a broken embed.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load returns the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes, validates and compiles a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := c.compile(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the structural requirements of a catalog.
func (c *Catalog) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("catalog: version is required")
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("catalog: at least one language is required")
	}
	if _, ok := c.Languages[c.DefaultLanguage]; !ok {
		return fmt.Errorf("catalog: default language %q has no entry", c.DefaultLanguage)
	}
	for code, l := range c.Languages {
		if len(l.Queries["default"]) == 0 {
			return fmt.Errorf("catalog: language %q has no default queries", code)
		}
		if l.OfficialTemplate == "" {
			return fmt.Errorf("catalog: language %q has no official template", code)
		}
	}
	seen := make(map[string]bool)
	for _, b := range c.Brands {
		if b.ID == "" || len(b.Keywords) == 0 {
			return fmt.Errorf("catalog: brand %q needs an id and keywords", b.Name)
		}
		if seen[b.ID] {
			return fmt.Errorf("catalog: duplicate brand id %q", b.ID)
		}
		seen[b.ID] = true
	}
	if c.Safety.MaxSubdomainDepth <= 0 {
		c.Safety.MaxSubdomainDepth = 3
	}
	return nil
}

func (c *Catalog) compile() error {
	cc := compiled{
		markers:       make(map[string]*textnorm.Matcher),
		verticals:     make(map[string]map[string]*textnorm.Matcher),
		localCues:     make(map[string]*textnorm.Matcher),
		cityPatterns:  make(map[string][]*regexp.Regexp),
		titles:        make(map[string]map[string]*textnorm.Matcher),
		cityStop:      make(map[string]bool),
		brandByID:     make(map[string]int),
		marketplaces:  make(map[string]bool),
		searchEngines: make(map[string]bool),
		categoryOf:    make(map[string]string),
	}

	for code, l := range c.Languages {
		cc.markers[code] = textnorm.NewMatcher(l.Markers)
		cc.localCues[code] = textnorm.NewMatcher(l.LocalCues)
		vm := make(map[string]*textnorm.Matcher, len(l.Verticals))
		for v, kws := range l.Verticals {
			vm[v] = textnorm.NewMatcher(kws)
		}
		cc.verticals[code] = vm
		tm := make(map[string]*textnorm.Matcher, len(l.TitleKeywords))
		for kind, kws := range l.TitleKeywords {
			tm[kind] = textnorm.NewMatcher(kws)
		}
		cc.titles[code] = tm
		for _, p := range l.CityPatterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return fmt.Errorf("catalog: bad city pattern for %q: %w", code, err)
			}
			cc.cityPatterns[code] = append(cc.cityPatterns[code], re)
		}
	}

	cc.product = textnorm.NewMatcher(c.ProductKeywords)
	cc.place = textnorm.NewMatcher(c.PlaceKeywords)
	cc.business = textnorm.NewMatcher(c.LocalBusinessKeywords)

	caseSensitive := make(map[string]bool, len(c.CaseSensitiveCities))
	for _, name := range c.CaseSensitiveCities {
		caseSensitive[name] = true
	}
	for _, name := range c.KnownCities {
		city := City{Name: name}
		if caseSensitive[name] {
			city.re = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(textnorm.StripAccents(name)) + `(?:$|[^\p{L}\p{N}])`)
		} else {
			city.m = textnorm.NewMatcher([]string{name})
		}
		cc.cities = append(cc.cities, city)
	}
	for _, w := range c.CityStopwords {
		cc.cityStop[textnorm.Fold(w)] = true
	}

	for i, b := range c.Brands {
		cc.brandByID[b.ID] = i
		for _, kw := range b.Keywords {
			f := textnorm.Fold(kw)
			bk := brandKeyword{folded: f, brand: i}
			if len(f) < 5 {
				bk.word = textnorm.NewMatcher([]string{f})
			}
			cc.brandKeywords = append(cc.brandKeywords, bk)
		}
	}
	// longest keyword first so "urban arrow" beats a shorter overlapping entry
	sort.SliceStable(cc.brandKeywords, func(i, j int) bool {
		return len(cc.brandKeywords[i].folded) > len(cc.brandKeywords[j].folded)
	})

	for _, m := range c.Marketplaces {
		cc.marketplaces[strings.ToLower(m)] = true
	}
	for _, s := range c.SearchEngines {
		cc.searchEngines[strings.ToLower(s)] = true
	}
	cats := make([]string, 0, len(c.DomainCategories))
	for cat := range c.DomainCategories {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		for _, label := range c.DomainCategories[cat] {
			label = strings.ToLower(label)
			if _, ok := cc.categoryOf[label]; !ok {
				cc.categoryOf[label] = cat
			}
		}
	}

	for _, g := range c.Safety.Forbidden {
		cc.forbidden = append(cc.forbidden, CompiledForbidden{
			Category: g.Category,
			HighRisk: g.HighRisk,
			Matcher:  textnorm.NewMatcher(g.Terms),
		})
	}

	c.c = cc
	return nil
}

// Supports reports whether lang has an entry in the catalog.
func (c *Catalog) Supports(lang string) bool {
	_, ok := c.Languages[lang]
	return ok
}

// LanguageCodes returns the supported language codes in sorted order.
func (c *Catalog) LanguageCodes() []string {
	out := make([]string, 0, len(c.Languages))
	for code := range c.Languages {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Lang returns the entry for lang, falling back to the default language.
func (c *Catalog) Lang(lang string) Language {
	if l, ok := c.Languages[lang]; ok {
		return l
	}
	return c.Languages[c.DefaultLanguage]
}

// MarkerMatcher returns the stop-word matcher used for language detection.
func (c *Catalog) MarkerMatcher(lang string) *textnorm.Matcher { return c.c.markers[lang] }

// VerticalMatchers returns the keyword matchers per vertical for lang.
func (c *Catalog) VerticalMatchers(lang string) map[string]*textnorm.Matcher {
	return c.c.verticals[lang]
}

// LocalCueMatcher returns the local-search cue matcher for lang.
func (c *Catalog) LocalCueMatcher(lang string) *textnorm.Matcher { return c.c.localCues[lang] }

// CityPatterns returns the prepositional city patterns for lang.
func (c *Catalog) CityPatterns(lang string) []*regexp.Regexp { return c.c.cityPatterns[lang] }

// TitleMatcher returns the title keyword matcher of the given kind for lang.
func (c *Catalog) TitleMatcher(lang, kind string) *textnorm.Matcher {
	return c.c.titles[lang][kind]
}

func (c *Catalog) ProductMatcher() *textnorm.Matcher  { return c.c.product }
func (c *Catalog) PlaceMatcher() *textnorm.Matcher    { return c.c.place }
func (c *Catalog) BusinessMatcher() *textnorm.Matcher { return c.c.business }

// Cities returns the known cities in catalog order.
func (c *Catalog) Cities() []City { return c.c.cities }

// IsCityStopword reports whether a capitalized word must not be taken for a city.
func (c *Catalog) IsCityStopword(word string) bool { return c.c.cityStop[textnorm.Fold(word)] }

// MatchBrand returns the brand whose longest keyword occurs in option.
func (c *Catalog) MatchBrand(option string) (Brand, bool) {
	folded := textnorm.Fold(option)
	if folded == "" {
		return Brand{}, false
	}
	for _, kw := range c.c.brandKeywords {
		var hit bool
		if kw.word != nil {
			hit = kw.word.Match(folded)
		} else {
			hit = strings.Contains(folded, kw.folded)
		}
		if hit {
			return c.Brands[kw.brand], true
		}
	}
	return Brand{}, false
}

// BrandByID looks up a brand by id.
func (c *Catalog) BrandByID(id string) (Brand, bool) {
	i, ok := c.c.brandByID[id]
	if !ok {
		return Brand{}, false
	}
	return c.Brands[i], true
}

// IsMarketplace reports whether a registrable label ("amazon") is a marketplace.
func (c *Catalog) IsMarketplace(label string) bool { return c.c.marketplaces[strings.ToLower(label)] }

// IsSearchEngine reports whether a registrable label is a search engine.
func (c *Catalog) IsSearchEngine(label string) bool { return c.c.searchEngines[strings.ToLower(label)] }

// CategoryOf returns the reputation category of a registrable label, or "unknown".
func (c *Catalog) CategoryOf(label string) string {
	if cat, ok := c.c.categoryOf[strings.ToLower(label)]; ok {
		return cat
	}
	return "unknown"
}

// Forbidden returns the compiled forbidden keyword groups.
func (c *Catalog) Forbidden() []CompiledForbidden { return c.c.forbidden }

// ProductPath returns the product path template for a brand and vertical.
func (c *Catalog) ProductPath(b Brand, vertical string) string {
	if b.ProductPath != "" {
		return b.ProductPath
	}
	if vertical == "" {
		vertical = b.Vertical
	}
	if p, ok := c.ProductPaths[vertical]; ok {
		return p
	}
	return c.ProductPaths["default"]
}

// FallbackLinks returns the fallback merchant templates for vertical, action
// and lang. Lookup order is "vertical/action", "vertical", "*/action"; the
// first key present wins even when it lists no links.
func (c *Catalog) FallbackLinks(vertical, action, lang string) []FallbackLink {
	keys := []string{"*/" + action}
	if vertical != "" {
		keys = []string{vertical + "/" + action, vertical, "*/" + action}
	}
	for _, k := range keys {
		byLang, ok := c.Fallbacks[k]
		if !ok {
			continue
		}
		if links, ok := byLang[lang]; ok {
			return links
		}
		return byLang["default"]
	}
	return nil
}
