package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// KnowledgeField names a merge target on the KnowledgeBase.
type KnowledgeField string

const (
	FieldBusinessName           KnowledgeField = "business_name"
	FieldIndustry               KnowledgeField = "industry"
	FieldPrimaryCRM             KnowledgeField = "primary_crm"
	FieldBiggestBottleneck      KnowledgeField = "biggest_bottleneck"
	FieldBrandVoice             KnowledgeField = "brand_voice"
	FieldTargetAudience         KnowledgeField = "target_audience"
	FieldToolStack              KnowledgeField = "tool_stack"
	FieldComplianceRequirements KnowledgeField = "compliance_requirements"
	FieldPainPoints             KnowledgeField = "extracted_knowledge.pain_points"
	FieldProcessGaps            KnowledgeField = "extracted_knowledge.process_gaps"
	FieldCustomerInsights       KnowledgeField = "extracted_knowledge.customer_insights"
	FieldKnowledgeGaps          KnowledgeField = "extracted_knowledge.knowledge_gaps"
	FieldCompanyStageHistory    KnowledgeField = "extracted_knowledge.company_stage_history"
)

// IsScalar reports whether f holds a single value (as opposed to a list or history).
func (f KnowledgeField) IsScalar() bool {
	switch f {
	case FieldBusinessName, FieldIndustry, FieldPrimaryCRM, FieldBiggestBottleneck,
		FieldBrandVoice, FieldTargetAudience:
		return true
	}
	return false
}

// KnowledgeBase is the per-organization business profile enriched by learning events.
type KnowledgeBase struct {
	ID                     uuid.UUID          `json:"id"`
	OrganizationID         uuid.UUID          `json:"organization_id"`
	BusinessName           string             `json:"business_name"`
	Industry               string             `json:"industry"`
	PrimaryCRM             string             `json:"primary_crm"`
	BiggestBottleneck      string             `json:"biggest_bottleneck"`
	BrandVoice             string             `json:"brand_voice"`
	TargetAudience         string             `json:"target_audience"`
	ToolStack              []string           `json:"tool_stack"`
	ComplianceRequirements []string           `json:"compliance_requirements"`
	ExtractedKnowledge     ExtractedKnowledge `json:"extracted_knowledge"`
	Version                int                `json:"version"`
	EnrichmentVersion      int                `json:"enrichment_version"`
	LastEditedBy           string             `json:"last_edited_by,omitempty"`
	LastEnrichedAt         *time.Time         `json:"last_enriched_at,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// ExtractedKnowledge is the semi-structured JSON bag of the knowledge base.
type ExtractedKnowledge struct {
	PainPoints          []string      `json:"pain_points,omitempty"`
	ProcessGaps         []string      `json:"process_gaps,omitempty"`
	CustomerInsights    []string      `json:"customer_insights,omitempty"`
	KnowledgeGaps       []string      `json:"knowledge_gaps,omitempty"`
	CompanyStageHistory []StageRecord `json:"company_stage_history,omitempty"`
	FieldHistory        []FieldChange `json:"field_history,omitempty"`
}

// StageRecord is one observation of the company's growth stage.
type StageRecord struct {
	Stage      string    `json:"stage"`
	EventID    uuid.UUID `json:"event_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FieldChange records a scalar overwrite so it can be audited and restored.
type FieldChange struct {
	Field         KnowledgeField `json:"field"`
	PreviousValue string         `json:"previous_value"`
	NewValue      string         `json:"new_value"`
	EventID       uuid.UUID      `json:"event_id"`
	Confidence    int            `json:"confidence"`
	ChangedBy     string         `json:"changed_by"`
	ChangedAt     time.Time      `json:"changed_at"`
	Restored      bool           `json:"restored,omitempty"`
}

// ScalarValue returns the current value of a scalar field.
func (kb *KnowledgeBase) ScalarValue(f KnowledgeField) string {
	if p := kb.scalarPtr(f); p != nil {
		return *p
	}
	return ""
}

// SetScalar assigns a scalar field. Non-scalar fields are ignored.
func (kb *KnowledgeBase) SetScalar(f KnowledgeField, value string) {
	if p := kb.scalarPtr(f); p != nil {
		*p = value
	}
}

func (kb *KnowledgeBase) scalarPtr(f KnowledgeField) *string {
	switch f {
	case FieldBusinessName:
		return &kb.BusinessName
	case FieldIndustry:
		return &kb.Industry
	case FieldPrimaryCRM:
		return &kb.PrimaryCRM
	case FieldBiggestBottleneck:
		return &kb.BiggestBottleneck
	case FieldBrandVoice:
		return &kb.BrandVoice
	case FieldTargetAudience:
		return &kb.TargetAudience
	}
	return nil
}

func (kb *KnowledgeBase) listPtr(f KnowledgeField) *[]string {
	switch f {
	case FieldToolStack:
		return &kb.ToolStack
	case FieldComplianceRequirements:
		return &kb.ComplianceRequirements
	case FieldPainPoints:
		return &kb.ExtractedKnowledge.PainPoints
	case FieldProcessGaps:
		return &kb.ExtractedKnowledge.ProcessGaps
	case FieldCustomerInsights:
		return &kb.ExtractedKnowledge.CustomerInsights
	case FieldKnowledgeGaps:
		return &kb.ExtractedKnowledge.KnowledgeGaps
	}
	return nil
}

// AppendValue adds value to a list or history field unless an equivalent entry
// is already present. It reports whether the field changed.
func (kb *KnowledgeBase) AppendValue(f KnowledgeField, value string, eventID uuid.UUID, at time.Time) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	if f == FieldCompanyStageHistory {
		history := kb.ExtractedKnowledge.CompanyStageHistory
		stage := strings.ToLower(value)
		if n := len(history); n > 0 && history[n-1].Stage == stage {
			return false
		}
		kb.ExtractedKnowledge.CompanyStageHistory = append(history, StageRecord{
			Stage:      stage,
			EventID:    eventID,
			RecordedAt: at,
		})
		return true
	}

	list := kb.listPtr(f)
	if list == nil {
		return false
	}
	for _, existing := range *list {
		if strings.EqualFold(strings.TrimSpace(existing), value) {
			return false
		}
	}
	*list = append(*list, value)
	return true
}

// ListValues returns the entries of a list field.
func (kb *KnowledgeBase) ListValues(f KnowledgeField) []string {
	if list := kb.listPtr(f); list != nil {
		return *list
	}
	return nil
}

// LatestCompanyStage returns the most recently observed growth stage.
func (kb *KnowledgeBase) LatestCompanyStage() string {
	history := kb.ExtractedKnowledge.CompanyStageHistory
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].Stage
}

// IsEmpty reports whether nothing has been learned or entered yet.
func (kb *KnowledgeBase) IsEmpty() bool {
	for _, f := range []KnowledgeField{FieldBusinessName, FieldIndustry, FieldPrimaryCRM,
		FieldBiggestBottleneck, FieldBrandVoice, FieldTargetAudience} {
		if kb.ScalarValue(f) != "" {
			return false
		}
	}
	return len(kb.ToolStack) == 0 && len(kb.ComplianceRequirements) == 0 &&
		len(kb.ExtractedKnowledge.PainPoints) == 0 && len(kb.ExtractedKnowledge.CompanyStageHistory) == 0
}

// KnowledgeBaseUpdate is a manual edit. Nil fields are left unchanged.
type KnowledgeBaseUpdate struct {
	BusinessName           *string  `json:"business_name,omitempty"`
	Industry               *string  `json:"industry,omitempty"`
	PrimaryCRM             *string  `json:"primary_crm,omitempty"`
	BiggestBottleneck      *string  `json:"biggest_bottleneck,omitempty"`
	BrandVoice             *string  `json:"brand_voice,omitempty"`
	TargetAudience         *string  `json:"target_audience,omitempty"`
	ToolStack              []string `json:"tool_stack,omitempty"`
	ComplianceRequirements []string `json:"compliance_requirements,omitempty"`
	// ExpectedVersion, when set, must match the stored version.
	ExpectedVersion *int `json:"expected_version,omitempty"`
}

// ApplyTo copies the set fields onto kb.
func (u *KnowledgeBaseUpdate) ApplyTo(kb *KnowledgeBase) {
	set := func(f KnowledgeField, v *string) {
		if v != nil {
			kb.SetScalar(f, strings.TrimSpace(*v))
		}
	}
	set(FieldBusinessName, u.BusinessName)
	set(FieldIndustry, u.Industry)
	set(FieldPrimaryCRM, u.PrimaryCRM)
	set(FieldBiggestBottleneck, u.BiggestBottleneck)
	set(FieldBrandVoice, u.BrandVoice)
	set(FieldTargetAudience, u.TargetAudience)
	if u.ToolStack != nil {
		kb.ToolStack = u.ToolStack
	}
	if u.ComplianceRequirements != nil {
		kb.ComplianceRequirements = u.ComplianceRequirements
	}
}

// RemoveValue deletes entries of a list field equal to value, ignoring case.
// For the stage history, the entry recorded by eventID is removed instead.
func (kb *KnowledgeBase) RemoveValue(f KnowledgeField, value string, eventID uuid.UUID) bool {
	if f == FieldCompanyStageHistory {
		history := kb.ExtractedKnowledge.CompanyStageHistory
		kept := history[:0]
		for _, r := range history {
			if r.EventID != eventID {
				kept = append(kept, r)
			}
		}
		changed := len(kept) != len(history)
		kb.ExtractedKnowledge.CompanyStageHistory = kept
		return changed
	}

	list := kb.listPtr(f)
	if list == nil {
		return false
	}
	value = strings.TrimSpace(value)
	kept := make([]string, 0, len(*list))
	for _, existing := range *list {
		if !strings.EqualFold(strings.TrimSpace(existing), value) {
			kept = append(kept, existing)
		}
	}
	changed := len(kept) != len(*list)
	*list = kept
	return changed
}

// LastChangeByEvent returns the most recent unrestored scalar change made by
// eventID, or nil.
func (kb *KnowledgeBase) LastChangeByEvent(eventID uuid.UUID) *FieldChange {
	history := kb.ExtractedKnowledge.FieldHistory
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].EventID == eventID && !history[i].Restored {
			return &history[i]
		}
	}
	return nil
}
