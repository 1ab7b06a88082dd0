package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/models"
)

type enrichmentFixture struct {
	svc    EnrichmentService
	scopes *mockTenantScopes
	saved  *mockSavedAnalysisRepo
	events *mockLearningEventRepo
	kbRepo *mockKnowledgeBaseRepo
	llm    *llm.MockLLMClient
	orgID  uuid.UUID
}

func newEnrichmentFixture(llmResponses ...string) *enrichmentFixture {
	if len(llmResponses) == 0 {
		llmResponses = []string{`{"has_insights": false}`}
	}
	f := &enrichmentFixture{
		scopes: &mockTenantScopes{},
		saved:  newMockSavedAnalysisRepo(),
		events: newMockLearningEventRepo(),
		llm:    llm.NewMockLLMClientWithResponses(llmResponses...),
		orgID:  uuid.New(),
	}
	f.kbRepo = newMockKnowledgeBaseRepo(f.events)
	learning := NewLearningService(f.kbRepo, f.events, testLearningConfig(), zap.NewNop()).(*learningService)
	learning.retryCfg = fastRetry()
	extractor := NewInsightExtractionService(f.llm, zap.NewNop())
	f.svc = NewEnrichmentService(f.scopes, f.saved, extractor, learning, zap.NewNop())
	return f
}

func (f *enrichmentFixture) saveAnalysis(t *testing.T) *models.SavedAnalysis {
	t.Helper()
	result := sampleResult()
	result.Discovery.BusinessContext = models.BusinessContext{
		CompanyStage:      "growth",
		PrimaryBottleneck: "Owner answers every patient email",
	}
	a := &models.SavedAnalysis{OrganizationID: f.orgID, UserID: "user-1", Intake: sampleIntake(), Result: result}
	require.NoError(t, f.saved.Create(context.Background(), a))
	return a
}

func TestEnrichment_AnalysisSaved(t *testing.T) {
	f := newEnrichmentFixture()
	a := f.saveAnalysis(t)

	err := f.svc.HandleEvent(context.Background(), models.NewAnalysisSavedEvent(f.orgID, "user-1", a.ID))
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{f.orgID}, f.scopes.acquired)
	assert.Equal(t, 1, f.scopes.released)
	assert.Equal(t, 0, f.llm.GenerateResponseCalls, "analysis extraction makes no LLM call")

	kb := f.kbRepo.current()
	require.NotNil(t, kb)
	assert.Equal(t, "Acme Dental", kb.BusinessName)
	assert.Equal(t, "Healthcare", kb.Industry)
	assert.Equal(t, "Owner answers every patient email", kb.BiggestBottleneck)
	assert.Equal(t, []string{"HubSpot"}, kb.ToolStack)
	assert.Equal(t, "growth", kb.LatestCompanyStage())
	assert.Equal(t, 1, kb.EnrichmentVersion)

	for _, e := range f.events.events {
		assert.Equal(t, models.SourceAnalysis, e.SourceType)
		assert.Equal(t, []string{a.ID.String()}, e.SourceIDs)
		assert.Equal(t, "user-1", e.TriggeredBy)
	}
}

func TestEnrichment_ReplayedEventAddsNothing(t *testing.T) {
	f := newEnrichmentFixture()
	a := f.saveAnalysis(t)
	event := models.NewAnalysisSavedEvent(f.orgID, "user-1", a.ID)

	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	count := len(f.events.events)
	version := f.kbRepo.current().Version

	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	assert.Len(t, f.events.events, count, "duplicates inside the window are suppressed")
	assert.Equal(t, version, f.kbRepo.current().Version)
}

func TestEnrichment_DeletedAnalysisIsIgnored(t *testing.T) {
	f := newEnrichmentFixture()
	err := f.svc.HandleEvent(context.Background(), models.NewAnalysisSavedEvent(f.orgID, "user-1", uuid.New()))
	require.NoError(t, err)
	assert.Empty(t, f.events.events)
}

func TestEnrichment_ChatExchange(t *testing.T) {
	f := newEnrichmentFixture(`{
		"has_insights": true,
		"business_context": [
			{"text": "The CRM is now Salesforce", "field": "primary_crm", "value": "Salesforce", "confidence": 92}
		]
	}`)

	event := models.NewChatExchangeEvent(f.orgID, "user-1", "We just migrated everything into Salesforce last week", "Thanks for the update.")
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	assert.Equal(t, 1, f.llm.GenerateResponseCalls)
	kb := f.kbRepo.current()
	assert.Equal(t, "Salesforce", kb.PrimaryCRM)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, models.SourceChat, f.events.events[0].SourceType)
	assert.Equal(t, []string{event.ID.String()}, f.events.events[0].SourceIDs)
}

func TestEnrichment_ChatLLMErrorIsReturned(t *testing.T) {
	f := newEnrichmentFixture()
	f.llm.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, opts llm.GenerateOptions) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("upstream unavailable")
	}

	event := models.NewChatExchangeEvent(f.orgID, "user-1", "We just migrated everything into Salesforce last week", "Noted.")
	err := f.svc.HandleEvent(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, 1, f.scopes.released)
}

func TestEnrichment_ScopeError(t *testing.T) {
	f := newEnrichmentFixture()
	f.scopes.err = errors.New("pool exhausted")

	err := f.svc.HandleEvent(context.Background(), models.NewAnalysisSavedEvent(f.orgID, "user-1", uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool exhausted")
}

func TestEnrichment_UnknownKind(t *testing.T) {
	f := newEnrichmentFixture()
	err := f.svc.HandleEvent(context.Background(), models.EnrichmentEvent{ID: uuid.New(), Kind: "mystery", OrganizationID: f.orgID, OccurredAt: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, f.events.events)
}

func TestEnrichment_ApplyNow(t *testing.T) {
	f := newEnrichmentFixture()
	kb := f.kbRepo.seed(&models.KnowledgeBase{OrganizationID: f.orgID})
	f.events.add(&models.LearningEvent{
		ID:              uuid.New(),
		OrganizationID:  f.orgID,
		KnowledgeBaseID: kb.ID,
		Insight:         "PCI DSS",
		Category:        models.CategoryCompliance,
		EventType:       models.EventTypeCompliance,
		Confidence:      90,
		SourceType:      models.SourceManual,
		CreatedAt:       time.Now(),
	})

	result, err := f.svc.ApplyNow(context.Background(), f.orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, []string{"PCI DSS"}, f.kbRepo.current().ComplianceRequirements)
	assert.Equal(t, 1, f.scopes.released)
}
