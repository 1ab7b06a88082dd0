package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vaforge/vaforge-engine/pkg/auth"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services"
	"github.com/vaforge/vaforge-engine/pkg/services/pipeline"
)

// authedRequest builds a request carrying the claims the auth middleware
// would set. A string body is sent as is; anything else is JSON-encoded.
func authedRequest(method, path string, body any, orgID uuid.UUID, userID string) *http.Request {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		encoded, _ := json.Marshal(b)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		OrganizationID:   orgID.String(),
	}))
}

func withPathID(req *http.Request, id uuid.UUID) *http.Request {
	req.SetPathValue("id", id.String())
	return req
}

// decodeAPIResponse decodes an ApiResponse whose Data is unmarshaled into data.
func decodeAPIResponse(body io.Reader, data any) (ApiResponse, error) {
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return ApiResponse{}, err
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return ApiResponse{}, err
		}
	}
	return ApiResponse{Success: raw.Success, Data: data}, nil
}

// fixedAuthService authenticates every request as one caller.
type fixedAuthService struct {
	claims *auth.Claims
}

func newFixedAuthService(orgID uuid.UUID, userID string) *fixedAuthService {
	return &fixedAuthService{claims: &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		OrganizationID:   orgID.String(),
	}}
}

func (f *fixedAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	return f.claims, "test-token", nil
}

func (f *fixedAuthService) RequireOrganizationID(claims *auth.Claims) error {
	return nil
}

func passthroughTenant(next http.HandlerFunc) http.HandlerFunc {
	return next
}

type mockAnalysisService struct {
	stages     []pipeline.StageName
	outcome    *services.AnalysisOutcome
	refined    *models.SavedAnalysis
	err        error
	gotIntake  *models.IntakeForm
	gotRefine  string
	gotOrgID   uuid.UUID
	calledWith string
}

func (m *mockAnalysisService) Analyze(ctx context.Context, orgID uuid.UUID, intake *models.IntakeForm, progress pipeline.ProgressCallback) (*services.AnalysisOutcome, error) {
	m.calledWith = "analyze"
	m.gotOrgID = orgID
	m.gotIntake = intake
	for i, stage := range m.stages {
		progress(stage, i+1, len(m.stages), "running "+string(stage))
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.outcome, nil
}

func (m *mockAnalysisService) Refine(ctx context.Context, orgID uuid.UUID, userID string, analysisID uuid.UUID, feedback string, progress pipeline.ProgressCallback) (*models.SavedAnalysis, error) {
	m.calledWith = "refine"
	m.gotOrgID = orgID
	m.gotRefine = feedback
	for i, stage := range m.stages {
		progress(stage, i+1, len(m.stages), "running "+string(stage))
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.refined, nil
}

type mockSavedAnalysisService struct {
	analysis   *models.SavedAnalysis
	summaries  []*models.SavedAnalysisSummary
	pagination models.Pagination
	err        error
	gotFilter  models.SavedAnalysisFilter
	gotSave    *services.SaveAnalysisRequest
	gotUserID  string
	deletedID  uuid.UUID
}

func (m *mockSavedAnalysisService) Save(ctx context.Context, orgID uuid.UUID, userID string, req *services.SaveAnalysisRequest) (*models.SavedAnalysis, error) {
	m.gotSave = req
	m.gotUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return &models.SavedAnalysis{ID: uuid.New(), OrganizationID: orgID, UserID: userID, Title: req.Title, VersionNumber: 1}, nil
}

func (m *mockSavedAnalysisService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.SavedAnalysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.analysis, nil
}

func (m *mockSavedAnalysisService) List(ctx context.Context, orgID uuid.UUID, filter models.SavedAnalysisFilter) ([]*models.SavedAnalysisSummary, models.Pagination, error) {
	m.gotFilter = filter
	if m.err != nil {
		return nil, models.Pagination{}, m.err
	}
	return m.summaries, m.pagination, nil
}

func (m *mockSavedAnalysisService) Finalize(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) (*models.SavedAnalysis, error) {
	m.gotUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.analysis, nil
}

func (m *mockSavedAnalysisService) Delete(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) error {
	m.gotUserID = userID
	m.deletedID = id
	return m.err
}

func (m *mockSavedAnalysisService) Versions(ctx context.Context, orgID, id uuid.UUID) ([]*models.SavedAnalysisSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.summaries, nil
}

type mockKnowledgeBaseService struct {
	kb        *models.KnowledgeBase
	err       error
	gotUpdate *models.KnowledgeBaseUpdate
}

func (m *mockKnowledgeBaseService) Get(ctx context.Context, orgID uuid.UUID) (*models.KnowledgeBase, error) {
	return m.kb, m.err
}

func (m *mockKnowledgeBaseService) Update(ctx context.Context, orgID uuid.UUID, userID string, update *models.KnowledgeBaseUpdate) (*models.KnowledgeBase, error) {
	m.gotUpdate = update
	return m.kb, m.err
}

func (m *mockKnowledgeBaseService) PromptContext(ctx context.Context, orgID uuid.UUID) (string, int, error) {
	return "", 0, m.err
}

type mockLearningService struct {
	events      []*models.LearningEvent
	total       int
	applyResult *models.ApplyResult
	restored    *models.KnowledgeBase
	err         error
	gotFilter   models.LearningEventFilter
	gotEventID  uuid.UUID
	applyCalls  int
}

func (m *mockLearningService) CreateEvents(ctx context.Context, orgID uuid.UUID, source services.EventSource, insights []models.ExtractedInsight) ([]*models.LearningEvent, error) {
	return nil, m.err
}

func (m *mockLearningService) ApplyPending(ctx context.Context, orgID uuid.UUID) (*models.ApplyResult, error) {
	m.applyCalls++
	return m.applyResult, m.err
}

func (m *mockLearningService) RestoreEvent(ctx context.Context, orgID uuid.UUID, eventID uuid.UUID, userID string) (*models.KnowledgeBase, error) {
	m.gotEventID = eventID
	return m.restored, m.err
}

func (m *mockLearningService) ListEvents(ctx context.Context, orgID uuid.UUID, filter models.LearningEventFilter) ([]*models.LearningEvent, int, error) {
	m.gotFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	return m.events, m.total, nil
}

type mockChatService struct {
	reply  string
	err    error
	gotReq *models.ChatRequest
}

func (m *mockChatService) SendMessage(ctx context.Context, orgID uuid.UUID, userID string, req *models.ChatRequest) (*models.ChatResponse, error) {
	m.gotReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.ChatResponse{Reply: m.reply}, nil
}

type mockSOPService struct {
	doc        *models.SOPDocument
	sop        *models.SavedSOP
	sops       []*models.SavedSOP
	err        error
	gotLimit   int
	gotOffset  int
	gotUserID  string
	gotRequest *models.SOPRequest
}

func (m *mockSOPService) Generate(ctx context.Context, orgID uuid.UUID, req *models.SOPRequest) (*models.SOPDocument, error) {
	m.gotRequest = req
	return m.doc, m.err
}

func (m *mockSOPService) Save(ctx context.Context, orgID uuid.UUID, userID string, req *services.SaveSOPRequest) (*models.SavedSOP, error) {
	m.gotUserID = userID
	if m.err != nil {
		return nil, m.err
	}
	return &models.SavedSOP{ID: uuid.New(), OrganizationID: orgID, UserID: userID, Title: req.Title, Document: req.Document}, nil
}

func (m *mockSOPService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.SavedSOP, error) {
	return m.sop, m.err
}

func (m *mockSOPService) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.SavedSOP, error) {
	m.gotLimit, m.gotOffset = limit, offset
	return m.sops, m.err
}

func (m *mockSOPService) Delete(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) error {
	m.gotUserID = userID
	return m.err
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
