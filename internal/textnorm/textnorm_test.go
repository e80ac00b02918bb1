package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Château de Chambord", "chateau de chambord"},
		{"  Où   manger\tà Nice ? ", "ou manger a nice ?"},
		{"l’hôtel", "l'hotel"},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Fold(tc.in))
		})
	}
}

func TestStripAccentsKeepsCase(t *testing.T) {
	assert.Equal(t, "Velo a Montreal", StripAccents("Vélo à Montréal"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "tern-gsd-s10", Slugify("Tern GSD S10"))
	assert.Equal(t, "velo-cargo-electrique", Slugify("  Vélo cargo / électrique! "))
}

func TestMatcher(t *testing.T) {
	m := NewMatcher([]string{"vélo cargo", "resto"})

	assert.True(t, m.Match(Fold("Un VELO  cargo pour Paris")))
	assert.True(t, m.Match("resto"))
	assert.False(t, m.Match("restaurant"))
	assert.False(t, m.Match("restoé"))

	assert.Equal(t, 2, m.Count("resto resto"))
	assert.Equal(t, 0, m.Count("restaurants"))

	var empty *Matcher
	assert.False(t, empty.Match("anything"))
	assert.False(t, NewMatcher(nil).Match("anything"))
	assert.Equal(t, 0, NewMatcher([]string{" "}).Count("x"))
}

func TestMatcher_Wildcards(t *testing.T) {
	m := NewMatcher([]string{"escort*", "*porn*", "meth"})

	assert.True(t, m.Match("escorts agenda"))
	assert.True(t, m.Match("escort"))
	assert.False(t, m.Match("unescorted"))

	assert.True(t, m.Match("pornstar dvd"))
	assert.True(t, m.Match("k hardporn"))

	assert.False(t, m.Match("method"))
	assert.True(t, m.Match("no meth here"))

	assert.Equal(t, 2, m.Count("escorts pornstar"))
	assert.False(t, NewMatcher([]string{"*", "**"}).Match("anything"))
}
