package models

import (
	"time"

	"github.com/google/uuid"
)

// InsightCategory is the closed set of insight categories.
type InsightCategory string

const (
	CategoryBusinessContext     InsightCategory = "business_context"
	CategoryProcessOptimization InsightCategory = "process_optimization"
	CategoryCustomerMarket      InsightCategory = "customer_market"
	CategoryKnowledgeGap        InsightCategory = "knowledge_gap"
	CategoryCompliance          InsightCategory = "compliance"
	CategoryToolStack           InsightCategory = "tool_stack"
)

// IsValid reports whether c belongs to the closed category set.
func (c InsightCategory) IsValid() bool {
	switch c {
	case CategoryBusinessContext, CategoryProcessOptimization, CategoryCustomerMarket,
		CategoryKnowledgeGap, CategoryCompliance, CategoryToolStack:
		return true
	}
	return false
}

// SourceType identifies what produced a learning event.
type SourceType string

const (
	SourceAnalysis SourceType = "analysis"
	SourceChat     SourceType = "chat"
	SourceManual   SourceType = "manual"
)

// Event types emitted by the extractors.
const (
	EventTypeBottleneck      = "bottleneck_identified"
	EventTypeCompanyStage    = "company_stage_detected"
	EventTypePainPoint       = "pain_point_identified"
	EventTypeProcessGap      = "process_gap_identified"
	EventTypeToolDetected    = "tool_detected"
	EventTypeCompliance      = "compliance_requirement"
	EventTypeFieldValue      = "field_value"
	EventTypeCustomerInsight = "customer_insight"
	EventTypeKnowledgeGap    = "knowledge_gap"
	EventTypeManualEntry     = "manual_entry"
)

// Metadata keys understood by the merger.
const (
	// MetadataField names the knowledge base target of an insight.
	MetadataField = "field"
	// MetadataValue carries the bare value to store when the insight text is a sentence.
	MetadataValue = "value"
)

// ExtractedInsight is a transient, typed fact produced by an extractor.
type ExtractedInsight struct {
	Text       string            `json:"text"`
	Category   InsightCategory   `json:"category"`
	EventType  string            `json:"event_type"`
	Confidence int               `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// PriorityLabel buckets an event's priority score.
type PriorityLabel string

const (
	PriorityCritical PriorityLabel = "critical"
	PriorityHigh     PriorityLabel = "high"
	PriorityMedium   PriorityLabel = "medium"
	PriorityLow      PriorityLabel = "low"
)

// LearningEvent is a persisted insight awaiting or recording its merge into the knowledge base.
type LearningEvent struct {
	ID              uuid.UUID         `json:"id"`
	OrganizationID  uuid.UUID         `json:"organization_id"`
	KnowledgeBaseID uuid.UUID         `json:"knowledge_base_id"`
	Insight         string            `json:"insight"`
	Category        InsightCategory   `json:"category"`
	EventType       string            `json:"event_type"`
	Confidence      int               `json:"confidence"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	SourceType      SourceType        `json:"source_type"`
	SourceIDs       []string          `json:"source_ids"`
	TriggeredBy     string            `json:"triggered_by,omitempty"`
	Applied         bool              `json:"applied"`
	AppliedAt       *time.Time        `json:"applied_at,omitempty"`
	AppliedToFields []string          `json:"applied_to_fields,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// LearningEventFilter narrows event listings.
type LearningEventFilter struct {
	Applied  *bool
	Category InsightCategory
	Limit    int
	Offset   int
}

// ApplyResult summarizes one merge pass.
type ApplyResult struct {
	Considered        int              `json:"considered"`
	Applied           int              `json:"applied"`
	Skipped           int              `json:"skipped"`
	BelowThreshold    int              `json:"below_threshold"`
	Unmapped          int              `json:"unmapped"`
	UpdatedFields     []KnowledgeField `json:"updated_fields"`
	EnrichmentVersion int              `json:"enrichment_version"`
}
