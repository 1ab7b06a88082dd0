package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/database"
	"github.com/vaforge/vaforge-engine/pkg/models"
)

// SavedAnalysisRepository provides data access for saved analyses.
type SavedAnalysisRepository interface {
	Create(ctx context.Context, a *models.SavedAnalysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SavedAnalysis, error)
	List(ctx context.Context, orgID uuid.UUID, filter models.SavedAnalysisFilter) ([]*models.SavedAnalysisSummary, int, error)
	Finalize(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListVersions returns every analysis in the refinement chain containing id,
	// ordered by version number.
	ListVersions(ctx context.Context, id uuid.UUID) ([]*models.SavedAnalysisSummary, error)
}

type savedAnalysisRepository struct{}

// NewSavedAnalysisRepository creates a new SavedAnalysisRepository.
func NewSavedAnalysisRepository() SavedAnalysisRepository {
	return &savedAnalysisRepository{}
}

var _ SavedAnalysisRepository = (*savedAnalysisRepository)(nil)

const savedAnalysisSummaryColumns = `id, title, preview, is_finalized, version_number, parent_analysis_id, created_at, updated_at`

func (r *savedAnalysisRepository) Create(ctx context.Context, a *models.SavedAnalysis) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.VersionNumber == 0 {
		a.VersionNumber = 1
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	intakeJSON, err := json.Marshal(a.Intake)
	if err != nil {
		return fmt.Errorf("failed to marshal intake: %w", err)
	}
	resultJSON, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	previewJSON, err := json.Marshal(a.Preview)
	if err != nil {
		return fmt.Errorf("failed to marshal preview: %w", err)
	}

	_, err = scope.Conn.Exec(ctx, `
		INSERT INTO saved_analyses (
			id, organization_id, user_id, title, intake, result, preview, is_finalized, finalized_at,
			version_number, parent_analysis_id, knowledge_base_version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.OrganizationID, a.UserID, a.Title, intakeJSON, resultJSON, previewJSON,
		a.IsFinalized, a.FinalizedAt, a.VersionNumber, a.ParentAnalysisID, a.KnowledgeBaseVersion,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create saved analysis: %w", err)
	}
	return nil
}

func (r *savedAnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SavedAnalysis, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	var a models.SavedAnalysis
	var intakeJSON, resultJSON, previewJSON []byte
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, organization_id, user_id, title, intake, result, preview, is_finalized, finalized_at,
		       version_number, parent_analysis_id, knowledge_base_version, created_at, updated_at
		FROM saved_analyses
		WHERE id = $1`, id).
		Scan(&a.ID, &a.OrganizationID, &a.UserID, &a.Title, &intakeJSON, &resultJSON, &previewJSON,
			&a.IsFinalized, &a.FinalizedAt, &a.VersionNumber, &a.ParentAnalysisID, &a.KnowledgeBaseVersion,
			&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get saved analysis: %w", err)
	}

	if err := json.Unmarshal(intakeJSON, &a.Intake); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intake: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &a.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	if err := json.Unmarshal(previewJSON, &a.Preview); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preview: %w", err)
	}
	return &a, nil
}

func (r *savedAnalysisRepository) List(ctx context.Context, orgID uuid.UUID, filter models.SavedAnalysisFilter) ([]*models.SavedAnalysisSummary, int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no tenant scope in context")
	}

	where := `WHERE organization_id = $1 AND ($2::boolean IS NULL OR is_finalized = $2)`

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM saved_analyses `+where, orgID, filter.Finalized).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count saved analyses: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, `SELECT `+savedAnalysisSummaryColumns+`
		FROM saved_analyses `+where+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		orgID, filter.Finalized, filter.Limit, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list saved analyses: %w", err)
	}
	summaries, err := collectSummaries(rows)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

func (r *savedAnalysisRepository) Finalize(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	tag, err := scope.Conn.Exec(ctx, `
		UPDATE saved_analyses
		SET is_finalized = true, finalized_at = COALESCE(finalized_at, $2), updated_at = $2
		WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("failed to finalize saved analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *savedAnalysisRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM saved_analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *savedAnalysisRepository) ListVersions(ctx context.Context, id uuid.UUID) ([]*models.SavedAnalysisSummary, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		WITH RECURSIVE ancestors AS (
			SELECT id, parent_analysis_id FROM saved_analyses WHERE id = $1
			UNION ALL
			SELECT s.id, s.parent_analysis_id
			FROM saved_analyses s
			JOIN ancestors a ON s.id = a.parent_analysis_id
		),
		chain AS (
			SELECT s.* FROM saved_analyses s
			JOIN ancestors a ON s.id = a.id
			WHERE a.parent_analysis_id IS NULL
			UNION ALL
			SELECT s.* FROM saved_analyses s
			JOIN chain c ON s.parent_analysis_id = c.id
		)
		SELECT `+savedAnalysisSummaryColumns+`
		FROM chain
		ORDER BY version_number, created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis versions: %w", err)
	}
	summaries, err := collectSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return summaries, nil
}

func collectSummaries(rows pgx.Rows) ([]*models.SavedAnalysisSummary, error) {
	defer rows.Close()

	summaries := make([]*models.SavedAnalysisSummary, 0)
	for rows.Next() {
		var s models.SavedAnalysisSummary
		var previewJSON []byte
		if err := rows.Scan(&s.ID, &s.Title, &previewJSON, &s.IsFinalized, &s.VersionNumber,
			&s.ParentAnalysisID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved analysis: %w", err)
		}
		if err := json.Unmarshal(previewJSON, &s.Preview); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preview: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saved analyses: %w", err)
	}
	return summaries, nil
}
