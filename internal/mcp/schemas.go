package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func requestProperties() map[string]interface{} {
	return map[string]interface{}{
		"option": map[string]interface{}{
			"type":        "string",
			"description": "The recommended option to attach links to (e.g. \"Tern GSD\", \"Le Petit Bistrot\")",
		},
		"question": map[string]interface{}{
			"type":        "string",
			"description": "The user's original question, used to infer the action and city",
		},
		"language": map[string]interface{}{
			"type":        "string",
			"description": "ISO 639-1 language code; detected from the text when omitted",
		},
		"vertical": map[string]interface{}{
			"type":        "string",
			"description": "Domain of the option; inferred when omitted",
			"enum":        []string{"dining", "accommodation", "travel", "automotive", "software"},
		},
	}
}

// getBestLinksTool returns the tool definition for get_best_links
func getBestLinksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_best_links",
		Description: "Resolve an official link, up to two merchant or booking links, and a maps link for places",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: requestProperties(),
			Required:   []string{"option"},
		},
	}
}

// getFirstResultURLTool returns the tool definition for get_first_result_url
func getFirstResultURLTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_first_result_url",
		Description: "Return the first safe, reachable link for an option",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: requestProperties(),
			Required:   []string{"option"},
		},
	}
}

// validateLinksTool returns the tool definition for validate_links
func validateLinksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "validate_links",
		Description: "Check links against the safety policy and report the batch risk level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"urls": map[string]interface{}{
					"type":        "array",
					"description": "URLs to validate",
					"items":       map[string]interface{}{"type": "string"},
					"minItems":    1,
					"maxItems":    MaxValidateLinks,
				},
				"option": map[string]interface{}{
					"type":        "string",
					"description": "Option the links belong to, recorded in the audit trail",
				},
			},
			Required: []string{"urls"},
		},
	}
}
