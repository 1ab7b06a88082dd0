package models

import (
	"time"

	"github.com/google/uuid"
)

// SavedAnalysis is a persisted pipeline run. Refinements form a version chain
// through ParentAnalysisID.
type SavedAnalysis struct {
	ID                   uuid.UUID       `json:"id"`
	OrganizationID       uuid.UUID       `json:"organization_id"`
	UserID               string          `json:"user_id"`
	Title                string          `json:"title"`
	Intake               IntakeForm      `json:"intake"`
	Result               PipelineResult  `json:"result"`
	Preview              AnalysisPreview `json:"preview"`
	IsFinalized          bool            `json:"is_finalized"`
	FinalizedAt          *time.Time      `json:"finalized_at,omitempty"`
	VersionNumber        int             `json:"version_number"`
	ParentAnalysisID     *uuid.UUID      `json:"parent_analysis_id,omitempty"`
	KnowledgeBaseVersion *int            `json:"knowledge_base_version,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// SavedAnalysisSummary is the list-view projection without the full result.
type SavedAnalysisSummary struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Preview          AnalysisPreview `json:"preview"`
	IsFinalized      bool            `json:"is_finalized"`
	VersionNumber    int             `json:"version_number"`
	ParentAnalysisID *uuid.UUID      `json:"parent_analysis_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SavedAnalysisFilter is the paginated list query.
type SavedAnalysisFilter struct {
	Page      int
	Limit     int
	Finalized *bool
}

// Offset returns the row offset for the 1-based page.
func (f SavedAnalysisFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
