package services

import (
	"github.com/vaforge/vaforge-engine/pkg/models"
)

// Metadata field keys emitted by the extractors for business_context insights.
const (
	metaBusinessName      = "business_name"
	metaIndustry          = "industry"
	metaPrimaryCRM        = "primary_crm"
	metaPrimaryBottleneck = "primary_bottleneck"
	metaBrandVoice        = "brand_voice"
	metaTargetAudience    = "target_audience"
	metaCompanyStage      = "company_stage"
	metaTool              = "tool"
)

type fieldKey struct {
	category models.InsightCategory
	key      string
}

// fieldMappings routes (category, metadata field or event type) to a knowledge
// base field. Lookups try the metadata field first, then the event type, then
// the category default keyed by "".
var fieldMappings = map[fieldKey]models.KnowledgeField{
	{models.CategoryBusinessContext, metaBusinessName}:      models.FieldBusinessName,
	{models.CategoryBusinessContext, metaIndustry}:          models.FieldIndustry,
	{models.CategoryBusinessContext, metaPrimaryCRM}:        models.FieldPrimaryCRM,
	{models.CategoryBusinessContext, metaPrimaryBottleneck}: models.FieldBiggestBottleneck,
	{models.CategoryBusinessContext, metaBrandVoice}:        models.FieldBrandVoice,
	{models.CategoryBusinessContext, metaTargetAudience}:    models.FieldTargetAudience,
	{models.CategoryBusinessContext, metaCompanyStage}:      models.FieldCompanyStageHistory,
	{models.CategoryBusinessContext, metaTool}:              models.FieldToolStack,

	{models.CategoryBusinessContext, models.EventTypeBottleneck}:   models.FieldBiggestBottleneck,
	{models.CategoryBusinessContext, models.EventTypeCompanyStage}: models.FieldCompanyStageHistory,

	{models.CategoryToolStack, ""}: models.FieldToolStack,

	{models.CategoryCompliance, ""}: models.FieldComplianceRequirements,

	{models.CategoryProcessOptimization, models.EventTypeProcessGap}: models.FieldProcessGaps,
	{models.CategoryProcessOptimization, ""}:                         models.FieldPainPoints,

	{models.CategoryCustomerMarket, metaTargetAudience}: models.FieldTargetAudience,
	{models.CategoryCustomerMarket, ""}:                 models.FieldCustomerInsights,

	{models.CategoryKnowledgeGap, ""}: models.FieldKnowledgeGaps,
}

// MapToField returns the knowledge base field an event targets, or false when
// the combination is unmapped.
func MapToField(category models.InsightCategory, eventType string, metadata map[string]string) (models.KnowledgeField, bool) {
	if key := metadata[models.MetadataField]; key != "" {
		if f, ok := fieldMappings[fieldKey{category, key}]; ok {
			return f, true
		}
	}
	if eventType != "" {
		if f, ok := fieldMappings[fieldKey{category, eventType}]; ok {
			return f, true
		}
	}
	f, ok := fieldMappings[fieldKey{category, ""}]
	return f, ok
}

// eventValue is the text written into the target field. Tool and stage events
// carry the bare value in metadata; everything else uses the insight text.
func eventValue(e *models.LearningEvent) string {
	if v := e.Metadata[models.MetadataValue]; v != "" {
		return v
	}
	return e.Insight
}
