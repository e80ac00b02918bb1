package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/brand"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
)

func TestSynthesizer(t *testing.T) {
	src := catalog.NewStore(catalog.MustDefault())
	s := NewSynthesizer(src, 2)
	tern, ok := brand.NewDetector(src).Detect("Tern GSD", "fr")
	require.True(t, ok)

	tests := []struct {
		name          string
		plan          plan
		wantOfficial  string
		wantMerchants []string
		wantMaps      bool
	}{
		{
			name:         "automotive buy has no generic merchant",
			plan:         plan{Option: "Tern GSD", Language: "fr", Vertical: links.VerticalAutomotive, Action: links.ActionBuy, Brand: &tern},
			wantOfficial: "https://www.ternbicycles.com/",
		},
		{
			name:          "accommodation fills lang and tld",
			plan:          plan{Option: "Hôtel des Voyageurs", Language: "de", Vertical: links.VerticalAccommodation, Action: links.ActionReserve},
			wantMerchants: []string{"https://www.booking.com/searchresults.de.html?ss=H%C3%B4tel+des+Voyageurs", "https://www.tripadvisor.de/Search?q=H%C3%B4tel+des+Voyageurs"},
		},
		{
			name:          "directions keep maps and add city",
			plan:          plan{Option: "Le Petit Bistrot", Language: "fr", Vertical: links.VerticalDining, Action: links.ActionDirections, City: "Nice"},
			wantMerchants: []string{"https://www.thefork.fr/recherche?queryText=Le+Petit+Bistrot+Nice", "https://www.tripadvisor.fr/Search?q=Le+Petit+Bistrot+Nice"},
			wantMaps:      true,
		},
		{
			name:          "no vertical buy",
			plan:          plan{Option: "Casque audio", Language: "en", Action: links.ActionBuy},
			wantMerchants: []string{"https://www.idealo.com/prechcat.html?q=Casque+audio"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := s.Synthesize(tc.plan, nil)
			require.NotNil(t, res)
			assert.Equal(t, FallbackProvider, res.Provider)
			assert.Equal(t, tc.plan.Action, res.ActionType)

			if tc.wantOfficial == "" {
				assert.Nil(t, res.Official)
			} else {
				require.NotNil(t, res.Official)
				assert.Equal(t, tc.wantOfficial, res.Official.URL)
			}

			got := make([]string, 0, len(res.Merchants))
			for _, m := range res.Merchants {
				got = append(got, m.URL)
			}
			if tc.wantMerchants == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tc.wantMerchants, got)
			}
			assert.Equal(t, tc.wantMaps, res.Maps != nil)
		})
	}
}

func TestSynthesizer_KeepsFoundOfficial(t *testing.T) {
	s := NewSynthesizer(catalog.NewStore(catalog.MustDefault()), 2)
	found := &links.Link{URL: "https://www.ternbicycles.com/fr/bikes/gsd", Title: "GSD", Domain: "ternbicycles.com"}

	res := s.Synthesize(plan{Option: "Tern GSD", Language: "fr", Action: links.ActionBuy}, found)
	require.NotNil(t, res.Official)
	assert.Equal(t, found.URL, res.Official.URL)
	assert.NotSame(t, found, res.Official)
}
