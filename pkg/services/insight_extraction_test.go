package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/models"
)

func findInsight(insights []models.ExtractedInsight, text string) *models.ExtractedInsight {
	for i := range insights {
		if insights[i].Text == text {
			return &insights[i]
		}
	}
	return nil
}

func TestFromAnalysis(t *testing.T) {
	svc := NewInsightExtractionService(llm.NewMockLLMClient(), zap.NewNop())

	intake := &models.IntakeForm{
		BusinessName:    "Acme Dental",
		Industry:        "Healthcare",
		Tools:           []string{"HubSpot", " "},
		ComplianceFlags: []string{"HIPAA"},
	}
	result := &models.PipelineResult{
		Discovery: models.DiscoveryResult{
			BusinessContext: models.BusinessContext{
				CompanyStage:      "growth",
				PrimaryBottleneck: "Owner answers every patient email",
				PrimaryCRM:        "HubSpot",
				TargetAudience:    "Families in Austin",
			},
			SOPInsights: models.SOPInsights{
				PainPoints:     []string{"Recall reminders are manual"},
				ProcessGaps:    []string{"No intake checklist"},
				ToolsMentioned: []string{"HubSpot", "Dentrix"},
			},
		},
		Validation: models.ValidationResult{RedFlags: []string{"Hours exceed stated budget"}},
	}

	insights := svc.FromAnalysis(intake, result)

	name := findInsight(insights, "Business name is Acme Dental")
	require.NotNil(t, name)
	assert.Equal(t, ConfidenceIntakeBusinessName, name.Confidence)
	assert.Equal(t, "Acme Dental", name.Metadata[models.MetadataValue])

	hubspot := findInsight(insights, "Uses HubSpot")
	require.NotNil(t, hubspot)
	assert.Equal(t, models.CategoryToolStack, hubspot.Category)
	assert.Equal(t, ConfidenceIntakeTool, hubspot.Confidence, "intake copy wins over the later repeat")

	dentrix := findInsight(insights, "Uses Dentrix")
	require.NotNil(t, dentrix)
	assert.Equal(t, ConfidenceToolMentioned, dentrix.Confidence)

	bottleneck := findInsight(insights, "Owner answers every patient email")
	require.NotNil(t, bottleneck)
	assert.Equal(t, models.EventTypeBottleneck, bottleneck.EventType)

	stage := findInsight(insights, "Company is at the growth stage")
	require.NotNil(t, stage)
	assert.Equal(t, "growth", stage.Metadata[models.MetadataValue])

	crm := findInsight(insights, "Uses HubSpot as the CRM")
	require.NotNil(t, crm)
	assert.Equal(t, ConfidenceInferredCRM, crm.Confidence)

	gap := findInsight(insights, "Hours exceed stated budget")
	require.NotNil(t, gap)
	assert.Equal(t, models.CategoryKnowledgeGap, gap.Category)
	assert.Equal(t, ConfidenceRedFlag, gap.Confidence)

	assert.NotNil(t, findInsight(insights, "HIPAA"))
	assert.NotNil(t, findInsight(insights, "No intake checklist"))
	assert.Nil(t, findInsight(insights, "Operates in "), "blank inferred industry is skipped")

	for _, in := range insights {
		assert.NotEmpty(t, in.Text)
		assert.True(t, in.Category.IsValid(), in.Text)
		_, mapped := MapToField(in.Category, in.EventType, in.Metadata)
		assert.True(t, mapped, "analysis insight %q should have a target field", in.Text)
	}
}

func TestFromAnalysis_NilResult(t *testing.T) {
	svc := NewInsightExtractionService(llm.NewMockLLMClient(), zap.NewNop())
	insights := svc.FromAnalysis(&models.IntakeForm{BusinessName: "Acme"}, nil)
	require.Len(t, insights, 1)
	assert.Equal(t, "Business name is Acme", insights[0].Text)
}

func TestIsTrivialMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"ok", true},
		{"Thanks!", true},
		{"   thank you so much!!  ", true},
		{"We moved our books to Xero last month", false},
		{"What should the VA do first on Monday?", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTrivialMessage(tt.msg), tt.msg)
	}
}

func TestFromChat_TrivialMessageSkipsLLM(t *testing.T) {
	mock := llm.NewMockLLMClient()
	svc := NewInsightExtractionService(mock, zap.NewNop())

	insights, err := svc.FromChat(context.Background(), "thanks!", "You're welcome.")
	require.NoError(t, err)
	assert.Nil(t, insights)
	assert.Equal(t, 0, mock.GenerateResponseCalls)
}

func TestFromChat_Confidences(t *testing.T) {
	response := `{
		"has_insights": true,
		"confidence": 0.7,
		"business_context": [
			{"text": "Switched the CRM to Salesforce", "field": "primary_crm", "value": "Salesforce", "confidence": "92%"},
			{"text": "Also uses Calendly", "field": "tool", "value": "Calendly"}
		],
		"process_optimization": [
			{"text": "Refunds need owner approval", "confidence": 0.9}
		],
		"compliance": [
			{"text": "", "confidence": 99}
		]
	}`
	mock := llm.NewMockLLMClientWithResponses(response)
	svc := NewInsightExtractionService(mock, zap.NewNop())

	insights, err := svc.FromChat(context.Background(), "We moved everything from HubSpot to Salesforce in March", "Noted.")
	require.NoError(t, err)
	require.Len(t, insights, 3)

	crm := findInsight(insights, "Switched the CRM to Salesforce")
	require.NotNil(t, crm)
	assert.Equal(t, 92, crm.Confidence)
	assert.Equal(t, "primary_crm", crm.Metadata[models.MetadataField])
	assert.Equal(t, "Salesforce", crm.Metadata[models.MetadataValue])

	tool := findInsight(insights, "Also uses Calendly")
	require.NotNil(t, tool)
	assert.Equal(t, 70, tool.Confidence, "falls back to the overall confidence")
	assert.Equal(t, models.EventTypeToolDetected, tool.EventType)

	refund := findInsight(insights, "Refunds need owner approval")
	require.NotNil(t, refund)
	assert.Equal(t, 90, refund.Confidence)
	assert.Equal(t, models.CategoryProcessOptimization, refund.Category)
}

func TestFromChat_DefaultConfidence(t *testing.T) {
	mock := llm.NewMockLLMClientWithResponses(`{"has_insights": true, "customer_market": [{"text": "Most clients are law firms"}]}`)
	svc := NewInsightExtractionService(mock, zap.NewNop())

	insights, err := svc.FromChat(context.Background(), "Most of our clients are small law firms in Ohio", "Got it.")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, defaultChatConfidence, insights[0].Confidence)
}

func TestFromChat_NoInsightsOrMalformed(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no insights", `{"has_insights": false, "business_context": [{"text": "ignored"}]}`},
		{"malformed", `this is not json`},
		{"truncated", `{"has_insights": true, "business_context": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewInsightExtractionService(llm.NewMockLLMClientWithResponses(tt.response), zap.NewNop())
			insights, err := svc.FromChat(context.Background(), "Our invoices always go out a week late", "That is common.")
			require.NoError(t, err)
			assert.Empty(t, insights)
		})
	}
}

func TestFromChat_LLMError(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, opts llm.GenerateOptions) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("rate limited")
	}
	svc := NewInsightExtractionService(mock, zap.NewNop())

	_, err := svc.FromChat(context.Background(), "Our invoices always go out a week late", "That is common.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
