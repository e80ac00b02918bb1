package grpc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
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

func newTestClient(t *testing.T, res *stubResolver) *LinksClient {
	t.Helper()
	validator := safety.NewValidator(catalog.NewStore(catalog.MustDefault()), nil, nil)
	svc := NewLinksService(observability.NopLogger(), res, validator)

	mux := http.NewServeMux()
	path, handler := svc.Handler()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewLinksClient(srv.Client(), srv.URL)
}

func TestLinksService_GetBestLinks(t *testing.T) {
	res := &stubResolver{best: &links.ResolvedLinks{
		Official:   &links.Link{URL: "https://www.ternbicycles.com/", Title: "Tern", Domain: "ternbicycles.com"},
		Merchants:  []links.Link{{URL: "https://www.lecyclo.com/tern-gsd", Title: "GSD", Domain: "lecyclo.com"}},
		ActionType: links.ActionBuy,
		Provider:   "stub",
	}}
	client := newTestClient(t, res)

	resp, err := client.GetBestLinks(context.Background(), &LinksRequest{Option: "Tern GSD", Language: "fr", Vertical: "automotive"})
	require.NoError(t, err)
	require.NotNil(t, resp.Links)
	assert.Equal(t, "https://www.ternbicycles.com/", resp.Links.Official.URL)
	assert.Len(t, resp.Links.Merchants, 1)
	assert.Equal(t, links.ActionBuy, resp.Links.ActionType)
	assert.Equal(t, links.Request{Option: "Tern GSD", Language: "fr", Vertical: "automotive"}, res.got)
}

func TestLinksService_InvalidArgument(t *testing.T) {
	client := newTestClient(t, &stubResolver{})

	tests := []struct {
		name string
		req  *LinksRequest
	}{
		{"missing option", &LinksRequest{}},
		{"unknown vertical", &LinksRequest{Option: "x", Vertical: "gardening"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.GetBestLinks(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
		})
	}
}

func TestLinksService_GetFirstResultURL(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		client := newTestClient(t, &stubResolver{first: &links.FirstResult{URL: "https://www.fnac.com/casque", Title: "Casque", Provider: "stub"}})
		resp, err := client.GetFirstResultURL(context.Background(), &LinksRequest{Option: "Casque audio"})
		require.NoError(t, err)
		assert.Equal(t, "https://www.fnac.com/casque", resp.Result.URL)
	})

	t.Run("no pertinent results", func(t *testing.T) {
		client := newTestClient(t, &stubResolver{firstErr: fmt.Errorf("%w: %w", resolver.ErrNoPertinentResults, resolver.ErrPolicyBlocked)})
		_, err := client.GetFirstResultURL(context.Background(), &LinksRequest{Option: "Casque audio"})
		require.Error(t, err)
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})
}

func TestLinksService_ValidateLinks(t *testing.T) {
	client := newTestClient(t, &stubResolver{})

	resp, err := client.ValidateLinks(context.Background(), &ValidateLinksRequest{
		Option: "Casque audio",
		Links: []links.Link{
			{URL: "https://www.fnac.com/casque", Title: "Casque"},
			{URL: "https://mega.nz/file/abc", Title: "Download"},
			{URL: "https://www.facebook.com/page", Title: "Page"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, resp.ValidLinks, 1)
	assert.Len(t, resp.BlockedLinks, 2)
	assert.Equal(t, 1, resp.HighRiskCount)

	_, err = client.ValidateLinks(context.Background(), &ValidateLinksRequest{})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestConnectError(t *testing.T) {
	assert.Equal(t, connect.CodeDeadlineExceeded, connect.CodeOf(connectError(context.DeadlineExceeded)))
	assert.Equal(t, connect.CodeCanceled, connect.CodeOf(connectError(context.Canceled)))
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(connectError(fmt.Errorf("boom"))))
}
