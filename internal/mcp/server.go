// Package mcp exposes the link engine as Model Context Protocol tools so
// assistant runtimes can attach links without going through the HTTP API.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
)

const (
	// ServerName is the MCP server name
	ServerName = "link-engine"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// LinkResolver resolves action links for one option.
type LinkResolver interface {
	GetBestLinks(ctx context.Context, req links.Request) *links.ResolvedLinks
	GetFirstResultURL(ctx context.Context, req links.Request) (*links.FirstResult, error)
}

// BatchValidator validates links against the safety policy.
type BatchValidator interface {
	ValidateBatch(ctx context.Context, items []links.Link, opts safety.BatchOptions) safety.BatchResult
}

// Server wraps the MCP server with the engine's collaborators.
type Server struct {
	mcp       *server.MCPServer
	resolver  LinkResolver
	validator BatchValidator
	logger    *observability.Logger
}

// NewServer creates an MCP server with all tools registered.
func NewServer(resolver LinkResolver, validator BatchValidator, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		resolver:  resolver,
		validator: validator,
		logger:    logger.WithComponent("mcp"),
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdio until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Msg("MCP server listening on stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(getBestLinksTool(), s.handleGetBestLinks)
	s.mcp.AddTool(getFirstResultURLTool(), s.handleGetFirstResultURL)
	s.mcp.AddTool(validateLinksTool(), s.handleValidateLinks)
}
