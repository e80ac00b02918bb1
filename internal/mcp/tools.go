package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/resolver"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
)

// MaxValidateLinks bounds a validate_links call.
const MaxValidateLinks = 100

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// handleGetBestLinks handles the get_best_links tool invocation
func (s *Server) handleGetBestLinks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := parseRequest(request)
	if err != nil {
		return nil, err
	}

	res := s.resolver.GetBestLinks(ctx, req)
	return mcp.NewToolResultText(formatJSON(res)), nil
}

// handleGetFirstResultURL handles the get_first_result_url tool invocation.
// No pertinent result is a tool-level error the model can read, not a
// protocol failure.
func (s *Server) handleGetFirstResultURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := parseRequest(request)
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.GetFirstResultURL(ctx, req)
	if errors.Is(err, resolver.ErrNoPertinentResults) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "resolution failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(res)), nil
}

// handleValidateLinks handles the validate_links tool invocation
func (s *Server) handleValidateLinks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	raw, ok := args["urls"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "urls parameter is required", map[string]interface{}{
			"param":  "urls",
			"reason": "missing or empty",
		})
	}
	if len(raw) > MaxValidateLinks {
		return nil, newMCPError(ErrorCodeInvalidParams, "too many urls", map[string]interface{}{
			"param": "urls",
			"max":   MaxValidateLinks,
		})
	}

	items := make([]links.Link, 0, len(raw))
	for i, v := range raw {
		u, ok := v.(string)
		if !ok || u == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, "urls must be non-empty strings", map[string]interface{}{
				"param": "urls",
				"index": i,
			})
		}
		items = append(items, links.Link{URL: u})
	}

	res := s.validator.ValidateBatch(ctx, items, safety.BatchOptions{
		Option: getStringDefault(args, "option", ""),
		Flow:   "mcp",
	})
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"validLinks":    res.ValidLinks,
		"blockedLinks":  res.BlockedLinks,
		"riskLevel":     res.RiskLevel,
		"highRiskCount": res.HighRiskCount(),
	})), nil
}

func parseRequest(request mcp.CallToolRequest) (links.Request, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return links.Request{}, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	option, ok := args["option"].(string)
	if !ok || option == "" {
		return links.Request{}, newMCPError(ErrorCodeInvalidParams, "option parameter is required", map[string]interface{}{
			"param":  "option",
			"reason": "missing or empty",
		})
	}

	vertical := getStringDefault(args, "vertical", "")
	if vertical != "" {
		if _, ok := links.ParseVertical(vertical); !ok {
			return links.Request{}, newMCPError(ErrorCodeInvalidParams, "invalid vertical", map[string]interface{}{
				"param": "vertical",
				"value": vertical,
			})
		}
	}

	return links.Request{
		Option:   option,
		Question: getStringDefault(args, "question", ""),
		Language: getStringDefault(args, "language", ""),
		Vertical: vertical,
	}, nil
}

// formatJSON formats data as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
