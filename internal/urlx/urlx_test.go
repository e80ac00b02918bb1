package urlx

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	u, err := Parse(" https://WWW.Example.COM/Path ")
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", u.Host)
	assert.Equal(t, "/Path", u.Path)

	for _, raw := range []string{"", "ftp://example.com", "https://localhost/", "https://exa mple.com", "not a url", "//example.com"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

func TestDomains(t *testing.T) {
	assert.Equal(t, "amazon.co.uk", RegistrableDomain("www.amazon.co.uk"))
	assert.Equal(t, "amazon.co.uk", DomainOf("https://smile.amazon.co.uk/dp/1"))
	assert.Equal(t, "", DomainOf("garbage"))
	assert.Equal(t, "amazon", Label("www.amazon.co.uk"))
	assert.Equal(t, "fnac", Label("fnac.com"))
}

func TestSubdomains(t *testing.T) {
	assert.Equal(t, 0, SubdomainDepth("ternbicycles.com"))
	assert.Equal(t, 1, SubdomainDepth("www.ternbicycles.com"))
	assert.Equal(t, 4, SubdomainDepth("a.b.c.d.example.fr"))
	assert.Equal(t, []string{"ads", "www"}, Subdomains("ads.www.example.com"))
	assert.Nil(t, Subdomains("example.com"))
}

func TestMatchesDomain(t *testing.T) {
	assert.True(t, MatchesDomain("www.ternbicycles.com", "ternbicycles.com"))
	assert.True(t, MatchesDomain("ternbicycles.com", "www.ternbicycles.com"))
	assert.False(t, MatchesDomain("faketernbicycles.com", "ternbicycles.com"))
}

func TestIsHomepage(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://www.apple.com/", true},
		{"https://www.apple.com", true},
		{"https://www.apple.com/fr/", true},
		{"https://www.apple.com/en-us", true},
		{"https://www.apple.com/?ref=x", false},
		{"https://www.apple.com/iphone/", false},
		{"https://www.apple.com/fr/iphone", false},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			u, err := url.Parse(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, IsHomepage(u))
		})
	}
}
