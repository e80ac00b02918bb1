package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/resolver"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
)

type stubResolver struct {
	best     *links.ResolvedLinks
	first    *links.FirstResult
	firstErr error
	got      links.Request
}

func (s *stubResolver) GetBestLinks(_ context.Context, req links.Request) *links.ResolvedLinks {
	s.got = req
	return s.best
}

func (s *stubResolver) GetFirstResultURL(_ context.Context, req links.Request) (*links.FirstResult, error) {
	s.got = req
	return s.first, s.firstErr
}

func newTestServer(res *stubResolver) *Server {
	validator := safety.NewValidator(catalog.NewStore(catalog.MustDefault()), nil, nil)
	return NewServer(res, validator, nil)
}

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandleGetBestLinks(t *testing.T) {
	stub := &stubResolver{best: &links.ResolvedLinks{
		Merchants:  []links.Link{{URL: "https://www.thefork.fr/restaurant/le-petit-bistrot", Title: "Le Petit Bistrot", Domain: "thefork.fr"}},
		Maps:       &links.MapsLink{URL: "https://www.google.com/maps/search/?api=1&query=Le+Petit+Bistrot", Title: "Itinéraire"},
		ActionType: links.ActionDirections,
		Provider:   "stub",
	}}
	s := newTestServer(stub)

	res, err := s.handleGetBestLinks(context.Background(), call("get_best_links", map[string]interface{}{
		"option":   "Le Petit Bistrot",
		"question": "Comment aller au restaurant ?",
		"language": "fr",
	}))
	require.NoError(t, err)

	var got links.ResolvedLinks
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Equal(t, links.ActionDirections, got.ActionType)
	require.NotNil(t, got.Maps)
	assert.Equal(t, "fr", stub.got.Language)
	assert.Equal(t, "Comment aller au restaurant ?", stub.got.Question)
}

func TestHandleGetBestLinks_InvalidParams(t *testing.T) {
	s := newTestServer(&stubResolver{})

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing option", map[string]interface{}{}},
		{"empty option", map[string]interface{}{"option": ""}},
		{"bad vertical", map[string]interface{}{"option": "x", "vertical": "gardening"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.handleGetBestLinks(context.Background(), call("get_best_links", tc.args))
			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestHandleGetFirstResultURL(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s := newTestServer(&stubResolver{first: &links.FirstResult{URL: "https://www.darty.com/casque", Title: "Casque"}})
		res, err := s.handleGetFirstResultURL(context.Background(), call("get_first_result_url", map[string]interface{}{"option": "Casque audio"}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Contains(t, resultText(t, res), "https://www.darty.com/casque")
	})

	t.Run("no pertinent results is a tool error", func(t *testing.T) {
		s := newTestServer(&stubResolver{firstErr: fmt.Errorf("%w: %w", resolver.ErrNoPertinentResults, resolver.ErrVerificationFailed)})
		res, err := s.handleGetFirstResultURL(context.Background(), call("get_first_result_url", map[string]interface{}{"option": "Casque audio"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "no pertinent results")
	})

	t.Run("other errors are protocol errors", func(t *testing.T) {
		s := newTestServer(&stubResolver{firstErr: context.Canceled})
		_, err := s.handleGetFirstResultURL(context.Background(), call("get_first_result_url", map[string]interface{}{"option": "Casque audio"}))
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInternalError, mcpErr.Code)
	})
}

func TestHandleValidateLinks(t *testing.T) {
	s := newTestServer(&stubResolver{})

	res, err := s.handleValidateLinks(context.Background(), call("validate_links", map[string]interface{}{
		"urls": []interface{}{"https://www.fnac.com/casque", "https://mega.nz/file/abc", "https://www.reddit.com/r/audio"},
	}))
	require.NoError(t, err)

	var got struct {
		ValidLinks    []links.Link  `json:"validLinks"`
		BlockedLinks  []interface{} `json:"blockedLinks"`
		HighRiskCount int           `json:"highRiskCount"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	assert.Len(t, got.ValidLinks, 1)
	assert.Len(t, got.BlockedLinks, 2)
	assert.Equal(t, 1, got.HighRiskCount)

	_, err = s.handleValidateLinks(context.Background(), call("validate_links", map[string]interface{}{"urls": []interface{}{}}))
	assert.Error(t, err)

	_, err = s.handleValidateLinks(context.Background(), call("validate_links", map[string]interface{}{"urls": []interface{}{42}}))
	assert.Error(t, err)
}

func TestToolSchemas(t *testing.T) {
	for _, tool := range []mcp.Tool{getBestLinksTool(), getFirstResultURLTool(), validateLinksTool()} {
		assert.NotEmpty(t, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type)
		assert.NotEmpty(t, tool.InputSchema.Required)
	}
}
