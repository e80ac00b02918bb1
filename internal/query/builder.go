// Package query turns an option into provider search queries.
package query

import (
	"strings"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/textnorm"
)

// Builder renders the catalog's query templates. It is pure: the same
// inputs always give the same query.
type Builder struct {
	src catalog.Source
}

// NewBuilder creates a query builder.
func NewBuilder(src catalog.Source) *Builder {
	return &Builder{src: src}
}

// Merchant builds the location-boosted merchant query for option.
func (b *Builder) Merchant(option, lang string, vertical links.Vertical, action links.Action, city string) string {
	cat := b.src.Current()
	l := cat.Lang(lang)

	tmpl := lookup(l.Queries, string(vertical), string(action))
	q := strings.ReplaceAll(tmpl, "{option}", strings.TrimSpace(option))
	if city != "" && !strings.Contains(textnorm.Fold(q), textnorm.Fold(city)) {
		q += " " + city
	}
	return collapse(q)
}

// Official builds the localized official-site query. The brand name is
// left out when the option already carries it.
func (b *Builder) Official(option, lang string, brand catalog.Brand) string {
	cat := b.src.Current()
	tmpl := cat.Lang(lang).OfficialTemplate

	name := brand.Name
	if name == "" || strings.Contains(textnorm.Fold(option), textnorm.Fold(name)) {
		name = ""
	}
	q := strings.ReplaceAll(tmpl, "{brand}", name)
	q = strings.ReplaceAll(q, "{option}", strings.TrimSpace(option))
	return collapse(q)
}

func lookup(queries map[string]map[string]string, vertical, action string) string {
	if vertical != "" {
		if t, ok := queries[vertical][action]; ok {
			return t
		}
	}
	if t, ok := queries["default"][action]; ok {
		return t
	}
	return "{option}"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
