package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchTemplatesTool returns the tool definition for search_templates
func searchTemplatesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_templates",
		Description: "Find project templates matching a natural-language description of what you want to build",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "What you want to build (e.g. 'react typescript starter with auth')",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-50)",
					"default":     5,
					"minimum":     1,
					"maximum":     50,
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters to narrow the search",
					"properties": map[string]interface{}{
						"tags": map[string]interface{}{
							"type":        "array",
							"description": "Tags a template must carry (all of them)",
							"items": map[string]interface{}{
								"type": "string",
							},
						},
						"language": map[string]interface{}{
							"type":        "string",
							"description": "Primary language exact match (e.g. 'typescript')",
						},
						"category": map[string]interface{}{
							"type":        "string",
							"description": "Template category exact match (e.g. 'web', 'cli', 'api')",
						},
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// listTemplatesTool returns the tool definition for list_templates
func listTemplatesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_templates",
		Description: "List all available templates in the template repository",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// useTemplateTool returns the tool definition for use_template
func useTemplateTool() mcp.Tool {
	return mcp.Tool{
		Name:        "use_template",
		Description: "Copy a template's files into a target folder",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"template_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the template to use (as returned by search_templates or list_templates)",
				},
				"target_folder": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the folder to copy the template into (created if missing)",
				},
			},
			Required: []string{"template_name", "target_folder"},
		},
	}
}
