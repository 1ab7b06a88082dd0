package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type healthResult struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and the state of each check.
func RegisterHealthTool(s *server.MCPServer, version string, checks map[string]HealthCheck) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out := healthResult{Status: "ok", Version: version}
		if len(checks) > 0 {
			out.Dependencies = make(map[string]string, len(checks))
			for name, check := range checks {
				if err := check(ctx); err != nil {
					out.Dependencies[name] = "error: " + err.Error()
					out.Status = "degraded"
					continue
				}
				out.Dependencies[name] = "ok"
			}
		}

		result, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
