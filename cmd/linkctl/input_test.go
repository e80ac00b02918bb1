package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/resolver"
)

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("# urls\nhttps://a.example\n\n   https://b.example  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, lines)
}

func TestReadRequests(t *testing.T) {
	in := `Tern GSD
{"option":"Le Petit Bistrot","question":"Où dîner à Nice ?","language":"fr","vertical":"dining"}
# comment
`
	reqs, err := readRequests(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []links.Request{
		{Option: "Tern GSD"},
		{Option: "Le Petit Bistrot", Question: "Où dîner à Nice ?", Language: "fr", Vertical: "dining"},
	}, reqs)
}

func TestReadRequests_Errors(t *testing.T) {
	tests := []struct {
		name, in string
	}{
		{"bad json", `{"option":`},
		{"missing option", `{"question":"?"}`},
		{"unknown vertical", `{"option":"x","vertical":"gardening"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readRequests(strings.NewReader(tc.in))
			assert.Error(t, err)
		})
	}
}

func TestWarmSummary(t *testing.T) {
	var s warmSummary
	s.add(resolver.BatchItem{Result: &links.ResolvedLinks{FromCache: true, Provider: "stub"}})
	s.add(resolver.BatchItem{Result: &links.ResolvedLinks{Provider: "stub"}})
	s.add(resolver.BatchItem{Result: &links.ResolvedLinks{Provider: resolver.FallbackProvider}})
	s.add(resolver.BatchItem{})

	assert.Equal(t, 1, s.Cached)
	assert.Equal(t, 1, s.Resolved)
	assert.Equal(t, 1, s.Fallback)
}

func TestUI_TableAndJSONMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewUI(&buf, false, true)
	ui.Table([]string{"Kind", "URL"}, [][]string{{"official", "https://www.apple.com/"}})
	out := buf.String()
	assert.Contains(t, out, "official")
	assert.Contains(t, out, "https://www.apple.com/")

	buf.Reset()
	quiet := NewUI(&buf, true, true)
	quiet.Success("hidden")
	quiet.Table([]string{"a"}, nil)
	assert.Empty(t, buf.String())
	require.NoError(t, quiet.JSON(map[string]int{"n": 1}))
	assert.Contains(t, buf.String(), `"n": 1`)
}
