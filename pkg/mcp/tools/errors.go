package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/models"
)

// ErrorResponse represents a structured error in tool results.
// Returning it as a tool result keeps the details visible to the calling
// agent instead of being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the agent can act on (bad parameters, unknown ids).
// System failures still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "invalid_parameters",
//	    "invalid category value",
//	    map[string]any{"expected": validCategories, "actual": category},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// HandleServiceError converts errors the agent can act on into error results.
// It returns nil for system failures; the caller returns those as Go errors.
func HandleServiceError(err error, code string) *mcp.CallToolResult {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return NewErrorResultWithDetails("invalid_parameters", verr.Error(), verr.Fields)
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error())
	case errors.Is(err, apperrors.ErrVersionConflict):
		return NewErrorResult("version_conflict", "the knowledge base changed concurrently; retry the call")
	case errors.Is(err, apperrors.ErrConflict):
		return NewErrorResult(code, err.Error())
	}
	return nil
}
