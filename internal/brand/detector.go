// Package brand detects brands in option names and recognises their
// official domains.
package brand

import (
	"net/url"
	"strings"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/textnorm"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/urlx"
)

// Match is a detected brand with its domains for the request language.
type Match struct {
	Brand   catalog.Brand
	Domains []string
}

// Primary returns the brand's primary domain for the language, or "".
func (m Match) Primary() string {
	if len(m.Domains) == 0 {
		return ""
	}
	return m.Domains[0]
}

// Detector looks brands up in the current catalog.
type Detector struct {
	src catalog.Source
}

// NewDetector creates a brand detector.
func NewDetector(src catalog.Source) *Detector {
	return &Detector{src: src}
}

// Detect returns the brand whose keyword occurs in option.
func (d *Detector) Detect(option, lang string) (Match, bool) {
	b, ok := d.src.Current().MatchBrand(option)
	if !ok {
		return Match{}, false
	}
	return Match{Brand: b, Domains: b.DomainsFor(lang)}, true
}

// IsOfficialDomain reports whether rawURL belongs to one of the brand's
// domains. Marketplace hosts never count as official, even for a brand
// that sells on them.
func (d *Detector) IsOfficialDomain(rawURL string, b catalog.Brand) bool {
	host := urlx.Host(rawURL)
	if host == "" {
		return false
	}
	reg := urlx.RegistrableDomain(host)
	if d.src.Current().IsMarketplace(urlx.Label(reg)) {
		return false
	}
	for _, domain := range b.AllDomains() {
		if urlx.MatchesDomain(host, domain) || reg == domain {
			return true
		}
	}
	return false
}

// Homepage returns the https homepage of a brand domain.
func Homepage(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ""
	}
	if urlx.RegistrableDomain(domain) == domain {
		domain = "www." + domain
	}
	return "https://" + domain + "/"
}

// OfficialLink builds the official homepage link for a detected brand.
func (d *Detector) OfficialLink(m Match, lang string) *links.Link {
	primary := m.Primary()
	if primary == "" {
		return nil
	}
	title := m.Brand.Name
	if t := d.src.Current().Lang(lang).OfficialTitle; t != "" {
		title = m.Brand.Name + " - " + t
	}
	return &links.Link{URL: Homepage(primary), Title: title, Domain: urlx.RegistrableDomain(primary)}
}

// ConstructProductPageURL appends the brand's product path to a homepage
// URL ("https://www.ternbicycles.com/" + "Tern GSD" -> ".../bikes/gsd").
// URLs that already point below the homepage, and URLs that do not parse,
// are returned unchanged.
func (d *Detector) ConstructProductPageURL(homepage, option string, b catalog.Brand, vertical links.Vertical) string {
	u, err := urlx.Parse(homepage)
	if err != nil || !urlx.IsHomepage(u) {
		return homepage
	}
	tmpl := d.src.Current().ProductPath(b, string(vertical))
	if tmpl == "" || tmpl == "/" {
		return homepage
	}

	slug := textnorm.Slugify(stripBrand(option, b))
	if slug == "" {
		slug = textnorm.Slugify(option)
	}
	if slug == "" && strings.Contains(tmpl, "{slug}") {
		return homepage
	}

	prefix := strings.TrimSuffix(u.Path, "/")
	path := prefix + strings.ReplaceAll(tmpl, "{slug}", url.PathEscape(slug))
	out := *u
	out.Path = path
	out.RawQuery = ""
	out.Fragment = ""
	return out.String()
}

// stripBrand removes the brand's name and keywords from option so the slug
// names the product, not the maker.
func stripBrand(option string, b catalog.Brand) string {
	folded := " " + textnorm.Fold(option) + " "
	words := append([]string{b.Name}, b.Keywords...)
	for _, w := range words {
		w = textnorm.Fold(w)
		if w == "" {
			continue
		}
		folded = strings.ReplaceAll(folded, " "+w+" ", " ")
	}
	return strings.TrimSpace(folded)
}
