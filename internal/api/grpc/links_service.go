// Package grpc provides the Connect service implementation for the link engine.
// Messages are plain Go structs carried by a JSON codec, so any Connect or
// HTTP/JSON client can call the service without generated stubs.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/resolver"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
)

// ServiceName is the fully-qualified name of the links service.
const ServiceName = "linkengine.v1.LinksService"

// Procedure paths.
const (
	GetBestLinksProcedure      = "/" + ServiceName + "/GetBestLinks"
	GetFirstResultURLProcedure = "/" + ServiceName + "/GetFirstResultURL"
	ValidateLinksProcedure     = "/" + ServiceName + "/ValidateLinks"
)

// MaxValidateLinks bounds a single ValidateLinks call.
const MaxValidateLinks = 100

// JSONCodec marshals messages with encoding/json. It replaces Connect's
// protojson codec for the "json" content subtype.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }

func (JSONCodec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }

// LinkResolver is the part of the resolver the service needs.
type LinkResolver interface {
	GetBestLinks(ctx context.Context, req links.Request) *links.ResolvedLinks
	GetFirstResultURL(ctx context.Context, req links.Request) (*links.FirstResult, error)
}

// BatchValidator validates a batch of links against the safety policy.
type BatchValidator interface {
	ValidateBatch(ctx context.Context, items []links.Link, opts safety.BatchOptions) safety.BatchResult
}

// LinksService implements the Connect links service.
type LinksService struct {
	logger    *observability.Logger
	resolver  LinkResolver
	validator BatchValidator
}

// NewLinksService creates a new links service.
func NewLinksService(logger *observability.Logger, resolver LinkResolver, validator BatchValidator) *LinksService {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LinksService{
		logger:    logger.WithComponent("links_service"),
		resolver:  resolver,
		validator: validator,
	}
}

// LinksRequest represents a GetBestLinks or GetFirstResultURL request.
type LinksRequest struct {
	Option   string `json:"option"`
	Question string `json:"question,omitempty"`
	Language string `json:"language,omitempty"`
	Vertical string `json:"vertical,omitempty"`
}

// BestLinksResponse represents the GetBestLinks response.
type BestLinksResponse struct {
	Links     *links.ResolvedLinks `json:"links"`
	LatencyMs int64                `json:"latencyMs"`
}

// FirstResultResponse represents the GetFirstResultURL response.
type FirstResultResponse struct {
	Result    *links.FirstResult `json:"result"`
	LatencyMs int64              `json:"latencyMs"`
}

// ValidateLinksRequest represents the ValidateLinks request.
type ValidateLinksRequest struct {
	Links  []links.Link `json:"links"`
	Option string       `json:"option,omitempty"`
	Flow   string       `json:"flow,omitempty"`
}

// ValidateLinksResponse represents the ValidateLinks response.
type ValidateLinksResponse struct {
	safety.BatchResult
	HighRiskCount int `json:"highRiskCount"`
}

// Handler returns the path prefix and handler serving all procedures.
func (s *LinksService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetBestLinksProcedure, connect.NewUnaryHandler(GetBestLinksProcedure, s.GetBestLinks, opts...))
	mux.Handle(GetFirstResultURLProcedure, connect.NewUnaryHandler(GetFirstResultURLProcedure, s.GetFirstResultURL, opts...))
	mux.Handle(ValidateLinksProcedure, connect.NewUnaryHandler(ValidateLinksProcedure, s.ValidateLinks, opts...))
	return "/" + ServiceName + "/", mux
}

// GetBestLinks resolves the action links for one option. It never fails
// once the request is valid: degraded resolutions come back as fallbacks.
func (s *LinksService) GetBestLinks(ctx context.Context, req *connect.Request[LinksRequest]) (*connect.Response[BestLinksResponse], error) {
	in, err := toRequest(req.Msg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := s.resolver.GetBestLinks(ctx, in)

	return connect.NewResponse(&BestLinksResponse{
		Links:     res,
		LatencyMs: time.Since(start).Milliseconds(),
	}), nil
}

// GetFirstResultURL returns the first usable link for the info/shopping flow.
func (s *LinksService) GetFirstResultURL(ctx context.Context, req *connect.Request[LinksRequest]) (*connect.Response[FirstResultResponse], error) {
	in, err := toRequest(req.Msg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.resolver.GetFirstResultURL(ctx, in)
	if err != nil {
		s.logger.WithContext(ctx).Debug().Err(err).Str("option", in.Option).Msg("No first result")
		return nil, connectError(err)
	}

	return connect.NewResponse(&FirstResultResponse{
		Result:    res,
		LatencyMs: time.Since(start).Milliseconds(),
	}), nil
}

// ValidateLinks runs the safety policy over a batch of links.
func (s *LinksService) ValidateLinks(ctx context.Context, req *connect.Request[ValidateLinksRequest]) (*connect.Response[ValidateLinksResponse], error) {
	msg := req.Msg
	if len(msg.Links) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("links are required"))
	}
	if len(msg.Links) > MaxValidateLinks {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("at most %d links per call", MaxValidateLinks))
	}

	flow := msg.Flow
	if flow == "" {
		flow = "validate"
	}
	res := s.validator.ValidateBatch(ctx, msg.Links, safety.BatchOptions{Option: msg.Option, Flow: flow})

	return connect.NewResponse(&ValidateLinksResponse{
		BatchResult:   res,
		HighRiskCount: res.HighRiskCount(),
	}), nil
}

func toRequest(msg *LinksRequest) (links.Request, error) {
	if msg.Option == "" {
		return links.Request{}, connect.NewError(connect.CodeInvalidArgument, errors.New("option is required"))
	}
	if msg.Vertical != "" {
		if _, ok := links.ParseVertical(msg.Vertical); !ok {
			return links.Request{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown vertical %q", msg.Vertical))
		}
	}
	return links.Request{
		Option:   msg.Option,
		Question: msg.Question,
		Language: msg.Language,
		Vertical: msg.Vertical,
	}, nil
}

// connectError maps resolver errors to Connect codes.
func connectError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, resolver.ErrNoPertinentResults):
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
