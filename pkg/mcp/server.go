// Package mcp exposes the organization knowledge base to agents over the
// Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Server wraps the mcp-go MCPServer.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance. audit may be nil.
func NewServer(name, version string, audit *AuditLogger, logger *zap.Logger) *Server {
	opts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	}
	if audit != nil {
		opts = append(opts, server.WithHooks(audit.Hooks()))
	}

	return &Server{
		mcp:    server.NewMCPServer(name, version, opts...),
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
