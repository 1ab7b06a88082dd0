package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/adapters/document"
	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/logging"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services/pipeline"
)

// TenantMiddleware scopes a handler to the caller's organization.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// ApiResponse wraps successful payloads.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// FailureResponse is the body of every non-streamed failure that carries more
// than a code and a message.
type FailureResponse struct {
	Error       string              `json:"error"`
	Message     string              `json:"message"`
	Details     string              `json:"details,omitempty"`
	UserMessage string              `json:"userMessage,omitempty"`
	Fields      []models.FieldError `json:"fields,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// classifyError maps a service error to an HTTP status and response body.
func classifyError(err error) (int, FailureResponse) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, FailureResponse{
			Error:       "validation_failed",
			Message:     verr.Error(),
			UserMessage: "Please fill in the highlighted fields and try again.",
			Fields:      verr.Fields,
		}
	}

	// Extraction problems are the caller's file; the message is shown as is.
	var extractErr *document.ExtractionError
	if errors.As(err, &extractErr) {
		return http.StatusUnprocessableEntity, FailureResponse{
			Error:       "document_extraction_failed",
			Message:     extractErr.Error(),
			Details:     string(extractErr.Kind),
			UserMessage: extractErr.Error(),
		}
	}

	var failure *pipeline.AnalysisFailure
	if errors.As(err, &failure) {
		status := http.StatusBadGateway
		if failure.Kind == pipeline.FailureContext {
			status = http.StatusRequestTimeout
		}
		return status, FailureResponse{
			Error:       "analysis_failed",
			Message:     failure.Error(),
			Details:     failure.Details(),
			UserMessage: failure.UserMessage(),
		}
	}

	var parseErr *pipeline.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusBadGateway, FailureResponse{
			Error:       "invalid_model_output",
			Message:     "The AI response could not be understood",
			Details:     logging.SanitizeError(parseErr.Err),
			UserMessage: "The AI returned an incomplete answer. Please try again.",
		}
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return http.StatusBadGateway, FailureResponse{
			Error:       "llm_error",
			Message:     string(llmErr.Type),
			Details:     logging.SanitizeError(llmErr),
			UserMessage: llmErr.UserMessage(),
		}
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, FailureResponse{Error: "not_found", Message: "Resource not found"}
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, FailureResponse{Error: "forbidden", Message: "Only the author can change this resource"}
	case errors.Is(err, apperrors.ErrVersionConflict):
		return http.StatusConflict, FailureResponse{
			Error:       "version_conflict",
			Message:     "The knowledge base changed since it was loaded",
			UserMessage: "Someone else updated the knowledge base. Reload and try again.",
		}
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, FailureResponse{Error: "conflict", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, FailureResponse{
			Error:       "timeout",
			Message:     "Request timed out",
			UserMessage: llm.ErrorTypeTimeout.UserMessage(),
		}
	}

	return http.StatusInternalServerError, FailureResponse{
		Error:       "internal_error",
		Message:     "Internal server error",
		UserMessage: llm.ErrorTypeUnknown.UserMessage(),
	}
}

// writeServiceError answers with the status and body for err. Server-side
// failures are logged; caller mistakes are not.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, action string, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Failed to "+action,
			zap.Int("status", status),
			zap.String("error", logging.SanitizeError(err)))
	} else {
		logger.Debug("Rejected request to "+action, zap.Int("status", status), zap.Error(err))
	}
	if err := WriteJSON(w, status, body); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
