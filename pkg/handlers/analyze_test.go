package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/adapters/document"
	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services"
	"github.com/vaforge/vaforge-engine/pkg/services/pipeline"
)

func validIntake() *models.IntakeForm {
	return &models.IntakeForm{
		BusinessName: "Acme Dental",
		Tasks:        []string{"Answer patient email", "Confirm appointments"},
		WeeklyHours:  20,
	}
}

// readStream splits an NDJSON body into events.
func readStream(t *testing.T, rec *httptest.ResponseRecorder) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var event StreamEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event), "line: %s", scanner.Text())
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestAnalyzeHandler_StreamsProgressThenResult(t *testing.T) {
	orgID := uuid.New()
	service := &mockAnalysisService{
		stages: []pipeline.StageName{pipeline.StageDiscovery, pipeline.StageClassification},
		outcome: &services.AnalysisOutcome{Result: &models.PipelineResult{
			Package: models.EngagementPackage{ServiceType: models.ServiceTypeDedicatedVA},
		}},
	}
	handler := NewAnalyzeHandler(service, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Analyze(rec, authedRequest(http.MethodPost, "/api/jd/analyze", validIntake(), orgID, "user-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, orgID, service.gotOrgID)
	assert.Equal(t, "Acme Dental", service.gotIntake.BusinessName)

	events := readStream(t, rec)
	require.Len(t, events, 3)
	assert.Equal(t, StreamProgress, events[0].Type)
	assert.Equal(t, string(pipeline.StageDiscovery), events[0].Stage)
	assert.Equal(t, 1, events[0].Current)
	assert.Equal(t, 2, events[0].Total)
	assert.Equal(t, StreamProgress, events[1].Type)
	assert.Equal(t, StreamResult, events[2].Type)

	data, err := json.Marshal(events[2].Data)
	require.NoError(t, err)
	var outcome services.AnalysisOutcome
	require.NoError(t, json.Unmarshal(data, &outcome))
	require.NotNil(t, outcome.Result)
	assert.Equal(t, models.ServiceTypeDedicatedVA, outcome.Result.Package.ServiceType)
}

func TestAnalyzeHandler_FailureAfterProgressIsTerminalErrorLine(t *testing.T) {
	llmErr := llm.NewError(llm.ErrorTypeRateLimit, "too many requests", true, nil)
	service := &mockAnalysisService{
		stages: []pipeline.StageName{pipeline.StageDiscovery},
		err: &pipeline.AnalysisFailure{
			Stage:        pipeline.StageClassification,
			Kind:         pipeline.FailureLLM,
			LLMErrorType: llm.ErrorTypeRateLimit,
			Err:          llmErr,
		},
	}
	handler := NewAnalyzeHandler(service, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Analyze(rec, authedRequest(http.MethodPost, "/api/jd/analyze", validIntake(), uuid.New(), "user-1"))

	// Headers went out with the first progress line.
	assert.Equal(t, http.StatusOK, rec.Code)

	events := readStream(t, rec)
	require.Len(t, events, 2)
	last := events[len(events)-1]
	assert.Equal(t, StreamError, last.Type)
	assert.Equal(t, "analysis_failed", last.Error)
	assert.Equal(t, llm.ErrorTypeRateLimit.UserMessage(), last.UserMessage)
	assert.NotEmpty(t, last.Details)
}

func TestAnalyzeHandler_FailureBeforeProgressIsPlainJSON(t *testing.T) {
	service := &mockAnalysisService{
		err: &document.ExtractionError{Kind: document.KindUnsupported, Document: "notes.pages", Message: "unsupported file type"},
	}
	handler := NewAnalyzeHandler(service, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Analyze(rec, authedRequest(http.MethodPost, "/api/jd/analyze", validIntake(), uuid.New(), "user-1"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body FailureResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "document_extraction_failed", body.Error)
	assert.Equal(t, "notes.pages: unsupported file type", body.UserMessage)
}

func TestAnalyzeHandler_InvalidIntakeRejectedBeforeRun(t *testing.T) {
	service := &mockAnalysisService{}
	handler := NewAnalyzeHandler(service, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Analyze(rec, authedRequest(http.MethodPost, "/api/jd/analyze", &models.IntakeForm{}, uuid.New(), "user-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, service.calledWith, "pipeline must not run")

	var body FailureResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "validation_failed", body.Error)
	fields := make([]string, 0, len(body.Fields))
	for _, f := range body.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"business_name", "tasks"}, fields)
}

func TestAnalyzeHandler_MalformedBody(t *testing.T) {
	handler := NewAnalyzeHandler(&mockAnalysisService{}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Analyze(rec, authedRequest(http.MethodPost, "/api/jd/analyze", "{not json", uuid.New(), "user-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeHandler_RequiresCaller(t *testing.T) {
	handler := NewAnalyzeHandler(&mockAnalysisService{}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Analyze(rec, httptest.NewRequest(http.MethodPost, "/api/jd/analyze", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyzeHandler_Refine(t *testing.T) {
	analysisID := uuid.New()
	service := &mockAnalysisService{
		stages:  []pipeline.StageName{pipeline.StageSpecification, pipeline.StageValidation, pipeline.StageAssembly},
		refined: &models.SavedAnalysis{ID: uuid.New(), VersionNumber: 2, ParentAnalysisID: &analysisID},
	}
	handler := NewAnalyzeHandler(service, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Refine(rec, authedRequest(http.MethodPatch, "/api/jd/analyze",
		RefineRequest{AnalysisID: analysisID, Feedback: "Make it part-time"}, uuid.New(), "user-1"))

	assert.Equal(t, "refine", service.calledWith)
	assert.Equal(t, "Make it part-time", service.gotRefine)

	events := readStream(t, rec)
	require.Len(t, events, 4)
	last := events[3]
	assert.Equal(t, StreamResult, last.Type)

	data, err := json.Marshal(last.Data)
	require.NoError(t, err)
	var saved models.SavedAnalysis
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 2, saved.VersionNumber)
}

func TestAnalyzeHandler_RefineValidation(t *testing.T) {
	tests := []struct {
		name string
		req  RefineRequest
	}{
		{"missing analysis id", RefineRequest{Feedback: "shorter"}},
		{"blank feedback", RefineRequest{AnalysisID: uuid.New(), Feedback: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockAnalysisService{}
			handler := NewAnalyzeHandler(service, zap.NewNop())

			rec := httptest.NewRecorder()
			handler.Refine(rec, authedRequest(http.MethodPatch, "/api/jd/analyze", tt.req, uuid.New(), "user-1"))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, service.calledWith)
		})
	}
}

func TestAnalyzeHandler_RegisterRoutes(t *testing.T) {
	orgID := uuid.New()
	service := &mockAnalysisService{outcome: &services.AnalysisOutcome{Result: &models.PipelineResult{}}}
	handler := NewAnalyzeHandler(service, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth.NewMiddleware(newFixedAuthService(orgID, "user-1"), zap.NewNop()), passthroughTenant)

	body, err := json.Marshal(validIntake())
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jd/analyze", bytesReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orgID, service.gotOrgID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jd/analyze", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
