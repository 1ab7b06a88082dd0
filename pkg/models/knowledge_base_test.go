package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKnowledgeBase_AppendValueDeduplicates(t *testing.T) {
	kb := &KnowledgeBase{}
	now := time.Now()

	assert.True(t, kb.AppendValue(FieldToolStack, "HubSpot", uuid.New(), now))
	assert.False(t, kb.AppendValue(FieldToolStack, " hubspot ", uuid.New(), now))
	assert.True(t, kb.AppendValue(FieldPainPoints, "Invoices are sent late", uuid.New(), now))
	assert.False(t, kb.AppendValue(FieldPainPoints, "", uuid.New(), now))
	assert.False(t, kb.AppendValue(FieldBusinessName, "Acme", uuid.New(), now), "scalars are not appendable")

	assert.Equal(t, []string{"HubSpot"}, kb.ToolStack)
	assert.Equal(t, []string{"Invoices are sent late"}, kb.ExtractedKnowledge.PainPoints)
}

func TestKnowledgeBase_CompanyStageHistory(t *testing.T) {
	kb := &KnowledgeBase{}
	now := time.Now()

	assert.True(t, kb.AppendValue(FieldCompanyStageHistory, "Startup", uuid.New(), now))
	assert.False(t, kb.AppendValue(FieldCompanyStageHistory, "startup", uuid.New(), now))
	assert.True(t, kb.AppendValue(FieldCompanyStageHistory, "growth", uuid.New(), now))

	assert.Len(t, kb.ExtractedKnowledge.CompanyStageHistory, 2)
	assert.Equal(t, "growth", kb.LatestCompanyStage())
}

func TestKnowledgeBase_Scalars(t *testing.T) {
	kb := &KnowledgeBase{}
	assert.True(t, kb.IsEmpty())

	kb.SetScalar(FieldPrimaryCRM, "Salesforce")
	kb.SetScalar(FieldToolStack, "ignored")

	assert.Equal(t, "Salesforce", kb.ScalarValue(FieldPrimaryCRM))
	assert.Empty(t, kb.ToolStack)
	assert.False(t, kb.IsEmpty())
	assert.True(t, FieldPrimaryCRM.IsScalar())
	assert.False(t, FieldPainPoints.IsScalar())
}

func TestKnowledgeBaseUpdate_ApplyTo(t *testing.T) {
	kb := &KnowledgeBase{Industry: "Retail", ToolStack: []string{"Shopify"}}
	voice := " Warm and direct "
	(&KnowledgeBaseUpdate{BrandVoice: &voice}).ApplyTo(kb)

	assert.Equal(t, "Warm and direct", kb.BrandVoice)
	assert.Equal(t, "Retail", kb.Industry)
	assert.Equal(t, []string{"Shopify"}, kb.ToolStack)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 21)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 10, SavedAnalysisFilter{Page: 2, Limit: 10}.Offset())
	assert.Equal(t, 0, SavedAnalysisFilter{Page: 0, Limit: 10}.Offset())
}
