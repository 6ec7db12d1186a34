package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/getstacklabs/stackhub/internal/fetcher"
	"github.com/getstacklabs/stackhub/internal/retrieval"
	"github.com/getstacklabs/stackhub/internal/vectorstore"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeRetrievalFailed    = -32001 // Search failed after retries
	ErrorCodeTemplateNotFound   = -32002 // Requested template does not exist
	ErrorCodeTemplateRepoFailed = -32003 // Template repository unreachable
)

// handleSearchTemplates handles the search_templates tool invocation.
//
// "No matching templates" is a successful result with count 0; only input
// errors and retrieval failures are surfaced as tool errors.
func (s *Server) handleSearchTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", s.defaultLimit)

	// Reject unrecognized filter keys before anything touches the network
	var filters vectorstore.Filters
	if rawFilters, present := args["filters"]; present {
		filterMap, ok := rawFilters.(map[string]interface{})
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "filters must be an object", nil)
		}
		parsed, err := vectorstore.ParseFilters(filterMap)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid filters", map[string]interface{}{
				"reason": err.Error(),
			})
		}
		filters = parsed
	}

	results, err := s.retrieval.Search(ctx, query, filters, limit)
	if err != nil {
		switch {
		case errors.Is(err, retrieval.ErrInvalidInput), errors.Is(err, vectorstore.ErrInvalidFilter):
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid search request", map[string]interface{}{
				"reason": err.Error(),
			})
		default:
			return nil, newMCPError(ErrorCodeRetrievalFailed, "template search failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	rendered := make([]map[string]interface{}, len(results))
	for i, r := range results {
		rendered[i] = map[string]interface{}{
			"template_id": r.TemplateID,
			"name":        r.Name,
			"rank":        r.Rank,
			"score":       r.FinalScore,
			"breakdown": map[string]interface{}{
				"similarity":    r.Breakdown.Similarity,
				"tag_boost":     r.Breakdown.TagBoost,
				"recency_boost": r.Breakdown.RecencyBoost,
			},
			"tags":     r.Tags,
			"language": r.Language,
			"category": r.Category,
		}
	}

	response := map[string]interface{}{
		"results": rendered,
		"count":   len(rendered),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListTemplates handles the list_templates tool invocation
func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.fetcher.ListTemplates(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeTemplateRepoFailed, "failed to list templates", map[string]interface{}{
			"error": err.Error(),
		})
	}

	templates := make([]map[string]interface{}, len(entries))
	for i, e := range entries {
		templates[i] = map[string]interface{}{
			"name": e.Name,
			"path": e.Path,
			"url":  e.URL,
		}
	}

	response := map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleUseTemplate handles the use_template tool invocation
func (s *Server) handleUseTemplate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	name, ok := args["template_name"].(string)
	if !ok || name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "template_name parameter is required", map[string]interface{}{
			"param":  "template_name",
			"reason": "missing or empty",
		})
	}

	target, ok := args["target_folder"].(string)
	if !ok || target == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "target_folder parameter is required", map[string]interface{}{
			"param":  "target_folder",
			"reason": "missing or empty",
		})
	}

	result, err := s.fetcher.CopyTemplate(ctx, name, target)
	if err != nil {
		if errors.Is(err, fetcher.ErrTemplateNotFound) {
			return nil, newMCPError(ErrorCodeTemplateNotFound, "template not found", map[string]interface{}{
				"template_name": name,
			})
		}
		return nil, newMCPError(ErrorCodeTemplateRepoFailed, "failed to copy template", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"template_name": result.TemplateName,
		"target_folder": result.TargetFolder,
		"files_copied":  result.FilesCopied,
		"files":         result.Files,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// newMCPError creates an MCP protocol error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

// Error implements the error interface
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
