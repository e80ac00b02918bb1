package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
)

func TestBuilder_Merchant(t *testing.T) {
	b := NewBuilder(catalog.NewStore(catalog.MustDefault()))

	tests := []struct {
		name     string
		option   string
		lang     string
		vertical links.Vertical
		action   links.Action
		city     string
		want     string
	}{
		{"automotive buy fr", "Tern GSD", "fr", links.VerticalAutomotive, links.ActionBuy, "", "acheter Tern GSD prix concessionnaire"},
		{"dining directions with city", "Le Petit Bistrot", "fr", links.VerticalDining, links.ActionDirections, "Nice", "Le Petit Bistrot restaurant avis Nice"},
		{"default template when vertical has none", "Château de Chambord", "fr", links.VerticalNone, links.ActionDirections, "", "Château de Chambord avis adresse"},
		{"english reserve", "Ritz", "en", links.VerticalAccommodation, links.ActionReserve, "", "book Ritz hotel"},
		{"city already in option", "Pizza Napoli Paris", "en", links.VerticalDining, links.ActionDirections, "Paris", "Pizza Napoli Paris restaurant reviews"},
		{"unknown language uses default", "iPhone 15", "pt", links.VerticalNone, links.ActionBuy, "", "buy iPhone 15 price"},
		{"whitespace collapsed", "  iPhone   15 ", "en", links.VerticalNone, links.ActionBuy, "", "buy iPhone 15 price"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, b.Merchant(tc.option, tc.lang, tc.vertical, tc.action, tc.city))
		})
	}
}

func TestBuilder_Official(t *testing.T) {
	cat := catalog.MustDefault()
	b := NewBuilder(catalog.NewStore(cat))

	tern, ok := cat.BrandByID("tern")
	require.True(t, ok)
	apple, ok := cat.BrandByID("apple")
	require.True(t, ok)

	assert.Equal(t, "Tern GSD site officiel", b.Official("Tern GSD", "fr", tern))
	assert.Equal(t, "Apple iPhone 15 official site", b.Official("iPhone 15", "en", apple))
	assert.Equal(t, "iPhone 15 official site", b.Official("iPhone 15", "en", catalog.Brand{}))
}

func TestBuilder_Idempotent(t *testing.T) {
	b := NewBuilder(catalog.NewStore(catalog.MustDefault()))

	first := b.Merchant("Vélo cargo Tern GSD", "fr", links.VerticalAutomotive, links.ActionBuy, "Lyon")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, b.Merchant("Vélo cargo Tern GSD", "fr", links.VerticalAutomotive, links.ActionBuy, "Lyon"))
	}
}
