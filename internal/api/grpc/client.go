package grpc

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// LinksClient calls a LinksService over the Connect protocol.
type LinksClient struct {
	bestLinks   *connect.Client[LinksRequest, BestLinksResponse]
	firstResult *connect.Client[LinksRequest, FirstResultResponse]
	validate    *connect.Client[ValidateLinksRequest, ValidateLinksResponse]
}

// NewLinksClient creates a client for the service mounted at baseURL.
func NewLinksClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LinksClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &LinksClient{
		bestLinks:   connect.NewClient[LinksRequest, BestLinksResponse](httpClient, baseURL+GetBestLinksProcedure, opts...),
		firstResult: connect.NewClient[LinksRequest, FirstResultResponse](httpClient, baseURL+GetFirstResultURLProcedure, opts...),
		validate:    connect.NewClient[ValidateLinksRequest, ValidateLinksResponse](httpClient, baseURL+ValidateLinksProcedure, opts...),
	}
}

// GetBestLinks calls LinksService.GetBestLinks.
func (c *LinksClient) GetBestLinks(ctx context.Context, req *LinksRequest) (*BestLinksResponse, error) {
	resp, err := c.bestLinks.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// GetFirstResultURL calls LinksService.GetFirstResultURL.
func (c *LinksClient) GetFirstResultURL(ctx context.Context, req *LinksRequest) (*FirstResultResponse, error) {
	resp, err := c.firstResult.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ValidateLinks calls LinksService.ValidateLinks.
func (c *LinksClient) ValidateLinks(ctx context.Context, req *ValidateLinksRequest) (*ValidateLinksResponse, error) {
	resp, err := c.validate.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
