// Package tools provides the MCP tools agents use to read and enrich an
// organization's knowledge base.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/database"
)

// ToolAccessError is an error the agent can act on (missing or malformed
// credentials). It is returned to the client as a tool result, not a Go error.
type ToolAccessError struct {
	Code    string
	Message string
	// MCPResult contains the pre-built MCP response for this error
	MCPResult *mcp.CallToolResult
}

func (e *ToolAccessError) Error() string {
	return e.Message
}

// AsToolAccessResult returns the tool result carried by a ToolAccessError,
// or nil for any other error:
//
//	orgID, userID, ctx, cleanup, err := AcquireToolAccess(ctx, deps, "my_tool")
//	if err != nil {
//	    if result := AsToolAccessResult(err); result != nil {
//	        return result, nil
//	    }
//	    return nil, err
//	}
func AsToolAccessResult(err error) *mcp.CallToolResult {
	var accessErr *ToolAccessError
	if errors.As(err, &accessErr) {
		return accessErr.MCPResult
	}
	return nil
}

func newToolAccessError(code, message string) *ToolAccessError {
	return &ToolAccessError{
		Code:      code,
		Message:   message,
		MCPResult: NewErrorResult(code, message),
	}
}

// ToolAccessDeps defines the dependencies needed for tool access control.
type ToolAccessDeps interface {
	GetTenantScopes() database.TenantScopeProvider
	GetLogger() *zap.Logger
}

// BaseMCPToolDeps provides the dependencies every tool needs. Tool-specific
// *Deps structs embed it.
type BaseMCPToolDeps struct {
	Scopes database.TenantScopeProvider
	Logger *zap.Logger
}

// GetTenantScopes implements ToolAccessDeps.
func (d *BaseMCPToolDeps) GetTenantScopes() database.TenantScopeProvider { return d.Scopes }

// GetLogger implements ToolAccessDeps.
func (d *BaseMCPToolDeps) GetLogger() *zap.Logger { return d.Logger }

// AcquireToolAccess resolves the caller from the token claims and opens an
// organization-scoped context for the tool. The returned cleanup must be
// called once the tool is done.
func AcquireToolAccess(ctx context.Context, deps ToolAccessDeps, toolName string) (uuid.UUID, string, context.Context, func(), error) {
	claims, ok := auth.GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil, "", nil, nil, newToolAccessError("authentication_required", "authentication required")
	}

	orgID, err := uuid.Parse(claims.OrganizationID)
	if err != nil {
		return uuid.Nil, "", nil, nil, newToolAccessError("invalid_organization_id",
			fmt.Sprintf("invalid organization ID: %v", err))
	}
	if claims.Subject == "" {
		return uuid.Nil, "", nil, nil, newToolAccessError("authentication_required", "token has no subject")
	}

	scopes := deps.GetTenantScopes()
	if scopes == nil {
		return orgID, claims.Subject, ctx, func() {}, nil
	}

	tenantCtx, cleanup, err := scopes.WithTenantScope(ctx, orgID)
	if err != nil {
		deps.GetLogger().Error("Failed to acquire tenant scope for tool",
			zap.String("tool", toolName),
			zap.String("organization_id", orgID.String()),
			zap.Error(err))
		return uuid.Nil, "", nil, nil, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return orgID, claims.Subject, tenantCtx, cleanup, nil
}
