package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/logging"
)

const (
	maxAuditStringLength  = 1024
	maxAuditPreviewLength = 200
)

// AuditLogger writes one structured log line per MCP tool call and per
// failed MCP authentication.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	fields := append(a.baseFields(ctx, id, req), zap.Any("result", summarizeResult(result)))

	if result != nil && result.IsError {
		a.logger.Info("MCP tool call rejected", fields...)
		return
	}
	a.logger.Info("MCP tool call", fields...)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	fields := append(a.baseFields(ctx, id, req), zap.String("error", logging.SanitizeError(err)))
	a.logger.Warn("MCP tool call failed", fields...)
}

func (a *AuditLogger) baseFields(ctx context.Context, id any, req *mcplib.CallToolRequest) []zap.Field {
	started := a.loadAndDeleteStart(id)
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Duration("duration", time.Since(started)),
	}
	if claims, ok := auth.GetClaims(ctx); ok {
		fields = append(fields,
			zap.String("organization_id", claims.OrganizationID),
			zap.String("user_id", claims.Subject))
	}
	return fields
}

func (a *AuditLogger) loadAndDeleteStart(id any) time.Time {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time)
	}
	return time.Now()
}

// RecordAuthFailure logs a failed MCP authentication attempt.
func (a *AuditLogger) RecordAuthFailure(organizationID, reason, clientIP string) {
	a.logger.Warn("MCP authentication failed",
		zap.String("organization_id", organizationID),
		zap.String("reason", reason),
		zap.String("client_ip", clientIP))
}

var sensitiveParamKeywords = []string{"password", "secret", "token", "api_key", "apikey", "credential"}

func isSensitiveParam(key string) bool {
	lower := strings.ToLower(key)
	for _, keyword := range sensitiveParamKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// sanitizeParams prepares tool arguments for the audit log: sensitive values
// are hashed, strings are redacted and truncated, nested maps are walked.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if isSensitiveParam(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return logging.TruncateString(logging.SanitizeText(val), maxAuditStringLength)
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

// hashSensitiveValue returns a SHA-256 prefix so entries can be correlated
// without storing the value.
func hashSensitiveValue(value any) string {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}
	if len(result.Content) > 0 {
		summary["content_count"] = len(result.Content)
		for _, c := range result.Content {
			if tc, ok := c.(mcplib.TextContent); ok {
				summary["preview"] = logging.TruncateString(tc.Text, maxAuditPreviewLength)
				break
			}
		}
	}
	return summary
}
