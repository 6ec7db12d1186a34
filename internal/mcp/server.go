// Package mcp exposes template discovery to AI coding assistants over the
// Model Context Protocol. It is a thin protocol layer: argument parsing and
// result rendering live here, retrieval semantics live in internal/retrieval.
package mcp

import (
	"context"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/getstacklabs/stackhub/internal/fetcher"
	"github.com/getstacklabs/stackhub/internal/registry"
	"github.com/getstacklabs/stackhub/internal/retrieval"
)

const (
	// ServerName is the MCP server name
	ServerName = "stackhub-templates"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	retrieval *retrieval.Service
	registry  registry.TemplateRegistry
	fetcher   *fetcher.Fetcher

	defaultLimit int
}

// NewServer creates a new MCP server instance
func NewServer(svc *retrieval.Service, reg registry.TemplateRegistry, fetch *fetcher.Fetcher, defaultLimit int) *Server {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}

	s := &Server{
		mcp:          server.NewMCPServer(ServerName, ServerVersion),
		retrieval:    svc,
		registry:     reg,
		fetcher:      fetch,
		defaultLimit: defaultLimit,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until the context is
// cancelled or the transport closes, so MCP shutdown follows the same signal
// path as the HTTP server.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveStreams(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serveStreams(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchTemplatesTool(), s.handleSearchTemplates)
	s.mcp.AddTool(listTemplatesTool(), s.handleListTemplates)
	s.mcp.AddTool(useTemplateTool(), s.handleUseTemplate)
}
