package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/adapters/document"
	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services/pipeline"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errorCode  string
		message    string
	}{
		{"bad request", http.StatusBadRequest, "bad_request", "invalid input"},
		{"not found", http.StatusNotFound, "not_found", "resource not found"},
		{"internal error", http.StatusInternalServerError, "internal_error", "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			err := ErrorResponse(w, tt.statusCode, tt.errorCode, tt.message)
			if err != nil {
				t.Fatalf("ErrorResponse returned error: %v", err)
			}

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != tt.statusCode {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.statusCode)
			}

			ct := resp.Header.Get("Content-Type")
			if ct != "application/json" {
				t.Errorf("Content-Type = %q, want %q", ct, "application/json")
			}

			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}

			if body["error"] != tt.errorCode {
				t.Errorf("body[error] = %q, want %q", body["error"], tt.errorCode)
			}
			if body["message"] != tt.message {
				t.Errorf("body[message] = %q, want %q", body["message"], tt.message)
			}
		})
	}
}

func TestWriteJSON_Status200(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"key": "value"}

	err := WriteJSON(w, http.StatusOK, data)
	if err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}

	resp := w.Result()
	defer resp.Body.Close()

	// Status 200 is the default for ResponseRecorder, WriteJSON should not call WriteHeader
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body["key"] != "value" {
		t.Errorf("body[key] = %q, want %q", body["key"], "value")
	}
}

func TestWriteJSON_NonOKStatus(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]int{"count": 5}

	err := WriteJSON(w, http.StatusCreated, data)
	if err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status code = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
}

func TestWriteJSON_UnencodableData(t *testing.T) {
	w := httptest.NewRecorder()
	data := make(chan int) // channels cannot be JSON-encoded

	err := WriteJSON(w, http.StatusOK, data)
	if err == nil {
		t.Error("expected error for unencodable data, got nil")
	}
}

func TestClassifyError(t *testing.T) {
	verr := &models.ValidationError{}
	verr.Add("business_name", "is required")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", verr, http.StatusBadRequest, "validation_failed"},
		{"extraction", &document.ExtractionError{Kind: document.KindUnsupported, Document: "scan.pdf", Message: "unsupported file type"}, http.StatusUnprocessableEntity, "document_extraction_failed"},
		{"analysis failure", &pipeline.AnalysisFailure{Stage: pipeline.StageDiscovery, Kind: pipeline.FailureLLM, LLMErrorType: llm.ErrorTypeQuota, Err: errors.New("quota")}, http.StatusBadGateway, "analysis_failed"},
		{"cancelled analysis", &pipeline.AnalysisFailure{Stage: pipeline.StageArchitecture, Kind: pipeline.FailureContext, Err: context.Canceled}, http.StatusRequestTimeout, "analysis_failed"},
		{"parse error", &pipeline.ParseError{Stage: "sop", Err: errors.New("bad json")}, http.StatusBadGateway, "invalid_model_output"},
		{"llm error", llm.NewError(llm.ErrorTypeRateLimit, "rate limited", true, nil), http.StatusBadGateway, "llm_error"},
		{"not found", fmt.Errorf("failed to load: %w", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{"forbidden", apperrors.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"version conflict", apperrors.ErrVersionConflict, http.StatusConflict, "version_conflict"},
		{"conflict", apperrors.ErrConflict, http.StatusConflict, "conflict"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := classifyError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Error)
		})
	}
}

func TestClassifyError_ExtractionMessageVerbatim(t *testing.T) {
	err := &document.ExtractionError{Kind: document.KindCorrupt, Document: "notes.docx", Message: "file is password protected"}

	_, body := classifyError(err)

	assert.Equal(t, "notes.docx: file is password protected", body.UserMessage)
	assert.Equal(t, body.UserMessage, body.Message)
}

func TestClassifyError_AnalysisFailureUserMessage(t *testing.T) {
	failure := &pipeline.AnalysisFailure{Stage: pipeline.StageDiscovery, Kind: pipeline.FailureLLM, LLMErrorType: llm.ErrorTypeAuth, Err: errors.New("401")}

	_, body := classifyError(failure)

	assert.Equal(t, llm.ErrorTypeAuth.UserMessage(), body.UserMessage)
	assert.NotEmpty(t, body.Details)
}

func TestWriteServiceError(t *testing.T) {
	rec := httptest.NewRecorder()
	verr := &models.ValidationError{}
	verr.Add("tasks", "at least one task is required")

	writeServiceError(rec, zap.NewNop(), "analyze", verr)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body FailureResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "validation_failed", body.Error)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "tasks", body.Fields[0].Field)
}
