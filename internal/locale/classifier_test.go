package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
)

func newTestClassifier() *Classifier {
	return NewClassifier(catalog.NewStore(catalog.MustDefault()), "en")
}

func TestClassifier_DetectLanguage(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		text string
		want string
	}{
		{"Quel vélo cargo acheter pour la famille ?", "fr"},
		{"Où manger à Nice ce soir", "fr"},
		{"Which laptop should I buy for the office", "en"},
		{"¿Dónde comer en Madrid con los niños?", "es"},
		{"Dove mangiare a Roma con la famiglia", "it"},
		{"Welche Kamera ist die beste für mich", "de"},
		{"Tern GSD", "en"},
		{"", "en"},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, c.DetectLanguage(tc.text))
		})
	}
}

func TestClassifier_ClassifyVertical(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name string
		text string
		lang string
		want links.Vertical
	}{
		{"cargo bike", "Tern GSD quel vélo cargo acheter", "fr", links.VerticalAutomotive},
		{"dining", "Le Petit Bistrot où manger à Nice", "fr", links.VerticalDining},
		{"accommodation", "Which hotel for two nights in Lisbon", "en", links.VerticalAccommodation},
		{"software", "Notion or Obsidian, which note taking app", "en", links.VerticalSoftware},
		{"no keywords", "Château de Chambord ou Chenonceau", "fr", links.VerticalNone},
		{"tie is none", "restaurant or hotel", "en", links.VerticalNone},
		{"word boundary", "scarface", "en", links.VerticalNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.ClassifyVertical(tc.text, tc.lang))
		})
	}
}

func TestClassifier_ExplicitValuesWin(t *testing.T) {
	c := newTestClassifier()

	res := c.Classify("Which hotel in Paris", "fr", "travel")
	assert.Equal(t, "fr", res.Language)
	assert.Equal(t, links.VerticalTravel, res.Vertical)

	res = c.Classify("Which hotel in Paris", "xx", "spaceships")
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, links.VerticalAccommodation, res.Vertical)
}

func TestClassifier_UnsupportedDefaultFallsBackToCatalog(t *testing.T) {
	c := NewClassifier(catalog.NewStore(catalog.MustDefault()), "pt")
	assert.Equal(t, "en", c.DetectLanguage(""))
}
