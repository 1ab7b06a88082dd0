package models

import (
	"time"

	"github.com/google/uuid"
)

// SOPStep is one numbered instruction of a procedure.
type SOPStep struct {
	Number       int      `json:"number" validate:"min=1"`
	Title        string   `json:"title" validate:"required"`
	Instructions string   `json:"instructions" validate:"required"`
	Owner        string   `json:"owner,omitempty"`
	Tools        []string `json:"tools,omitempty"`
}

// SOPDocument is a generated Standard Operating Procedure.
type SOPDocument struct {
	Title         string    `json:"title" validate:"required"`
	Purpose       string    `json:"purpose" validate:"required"`
	Scope         string    `json:"scope"`
	Roles         []string  `json:"roles"`
	Tools         []string  `json:"tools"`
	Steps         []SOPStep `json:"steps" validate:"min=1,dive"`
	QualityChecks []string  `json:"quality_checks"`
	Escalation    []string  `json:"escalation"`
}

// SOPRequest asks for an SOP covering one process.
type SOPRequest struct {
	ProcessName      string     `json:"process_name"`
	Description      string     `json:"description"`
	Tools            []string   `json:"tools,omitempty"`
	ExistingSOPText  string     `json:"existing_sop_text,omitempty"`
	ExistingSOPURL   string     `json:"existing_sop_url,omitempty"`
	SourceAnalysisID *uuid.UUID `json:"source_analysis_id,omitempty"`
}

// Validate checks the request before the LLM is called.
func (r *SOPRequest) Validate() error {
	verr := &ValidationError{}
	if r.ProcessName == "" {
		verr.Add("process_name", "is required")
	}
	if containsMarkupInjection(r.Description) || containsMarkupInjection(r.ProcessName) {
		verr.Add("description", "contains disallowed markup")
	}
	return verr.orNil()
}

// SavedSOP is a persisted SOP document.
type SavedSOP struct {
	ID               uuid.UUID   `json:"id"`
	OrganizationID   uuid.UUID   `json:"organization_id"`
	UserID           string      `json:"user_id"`
	Title            string      `json:"title"`
	Document         SOPDocument `json:"document"`
	SourceAnalysisID *uuid.UUID  `json:"source_analysis_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
