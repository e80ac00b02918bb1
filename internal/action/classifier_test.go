package action

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(catalog.NewStore(catalog.MustDefault()))

	tests := []struct {
		name     string
		in       Input
		want     links.Action
		wantRule string
	}{
		{
			name:     "cargo bike is bought",
			in:       Input{Option: "Vélo cargo Tern GSD", Language: "fr", Vertical: links.VerticalAutomotive},
			want:     links.ActionBuy,
			wantRule: "product-keyword",
		},
		{
			name:     "automotive without product keyword",
			in:       Input{Option: "Tern GSD", Language: "fr", Vertical: links.VerticalAutomotive},
			want:     links.ActionBuy,
			wantRule: "automotive",
		},
		{
			name:     "castle gets directions",
			in:       Input{Option: "Château de Chambord", Question: "Quel château visiter ce week-end ?", Language: "fr"},
			want:     links.ActionDirections,
			wantRule: "place-keyword",
		},
		{
			name:     "named bistrot in a city",
			in:       Input{Option: "Le Petit Bistrot", Question: "où manger à Nice", Language: "fr", Vertical: links.VerticalDining},
			want:     links.ActionDirections,
			wantRule: "local-business",
		},
		{
			name:     "iphone is bought",
			in:       Input{Option: "iPhone 15", Question: "Which phone should I buy?", Language: "en"},
			want:     links.ActionBuy,
			wantRule: "product-keyword",
		},
		{
			name:     "hotel without city is reserved",
			in:       Input{Option: "Hôtel des Voyageurs", Question: "Quel hôtel pour nos vacances ?", Language: "fr", Vertical: links.VerticalAccommodation},
			want:     links.ActionReserve,
			wantRule: "bookable-without-city",
		},
		{
			name:     "software falls through to buy",
			in:       Input{Option: "Notion", Question: "Which note taking app?", Language: "en", Vertical: links.VerticalSoftware},
			want:     links.ActionBuy,
			wantRule: "default",
		},
		{
			name:     "dining in a city without local cue is not directions",
			in:       Input{Option: "Chez Paul", Question: "Best restaurants Paris guide", Language: "en", Vertical: links.VerticalDining},
			want:     links.ActionBuy,
			wantRule: "default",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := c.Classify(tc.in)
			assert.Equal(t, tc.want, d.Action)
			assert.Equal(t, tc.wantRule, d.Rule)
		})
	}
}

func TestClassifier_CustomRules(t *testing.T) {
	always := Rule{
		Name:   "always-reserve",
		Action: links.ActionReserve,
		Match:  func(*catalog.Catalog, Input) bool { return true },
	}
	c := NewClassifier(catalog.NewStore(catalog.MustDefault()), always)

	d := c.Classify(Input{Option: "iPhone 15"})
	assert.Equal(t, links.ActionReserve, d.Action)
	assert.Equal(t, "always-reserve", d.Rule)
}

func TestExtractCity(t *testing.T) {
	cat := catalog.MustDefault()

	tests := []struct {
		name     string
		question string
		lang     string
		want     string
	}{
		{"known city", "où manger à Nice", "fr", "Nice"},
		{"earliest known city wins", "Lyon ou Paris pour un week-end", "fr", "Lyon"},
		{"lower case known city", "where to eat in barcelona", "en", "Barcelona"},
		{"nice as an adjective is not a city", "a nice place to eat", "en", ""},
		{"french preposition pattern", "Où dormir à Trifouilly-les-Oies ?", "fr", "Trifouilly-les-Oies"},
		{"english preposition pattern", "Where to eat in Springfield", "en", "Springfield"},
		{"month is not a city", "Where to go in June", "en", ""},
		{"empty question", "", "fr", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractCity(cat, tc.question, tc.lang))
		})
	}
}
