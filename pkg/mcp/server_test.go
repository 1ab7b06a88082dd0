package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewServer(t *testing.T) {
	logger := zap.NewNop()
	s := NewServer("test-server", "1.0.0", nil, logger)

	require.NotNil(t, s)
	require.NotNil(t, s.mcp)
	assert.Same(t, logger, s.logger)
	assert.Same(t, s.mcp, s.MCP())
}

func TestServer_RegisterTool(t *testing.T) {
	s := NewServer("test-server", "1.0.0", nil, zap.NewNop())

	called := false
	s.RegisterTool(mcp.NewTool("echo", mcp.WithDescription("Echoes")), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("echo"), nil
	})
	assert.False(t, called, "handler should not be called during registration")

	raw := s.MCP().HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"echo"},"id":1}`))
	resultBytes, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.Contains(t, string(resultBytes), `"echo"`)
	assert.True(t, called)
}

func TestServer_WithAudit(t *testing.T) {
	audit := NewAuditLogger(zap.NewNop())
	s := NewServer("test-server", "1.0.0", audit, zap.NewNop())
	require.NotNil(t, s.MCP())
}

func TestServer_NewStreamableHTTPServer(t *testing.T) {
	s := NewServer("test-server", "1.0.0", nil, zap.NewNop())
	assert.NotNil(t, s.NewStreamableHTTPServer())
}
