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

// SOPRepository provides data access for saved SOP documents.
type SOPRepository interface {
	Create(ctx context.Context, sop *models.SavedSOP) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SavedSOP, error)
	List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.SavedSOP, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type sopRepository struct{}

// NewSOPRepository creates a new SOPRepository.
func NewSOPRepository() SOPRepository {
	return &sopRepository{}
}

var _ SOPRepository = (*sopRepository)(nil)

func (r *sopRepository) Create(ctx context.Context, sop *models.SavedSOP) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	if sop.ID == uuid.Nil {
		sop.ID = uuid.New()
	}
	if sop.Title == "" {
		sop.Title = sop.Document.Title
	}
	sop.CreatedAt = now
	sop.UpdatedAt = now

	docJSON, err := json.Marshal(sop.Document)
	if err != nil {
		return fmt.Errorf("failed to marshal sop document: %w", err)
	}

	_, err = scope.Conn.Exec(ctx, `
		INSERT INTO saved_sops (id, organization_id, user_id, title, document, source_analysis_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sop.ID, sop.OrganizationID, sop.UserID, sop.Title, docJSON, sop.SourceAnalysisID, sop.CreatedAt, sop.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sop: %w", err)
	}
	return nil
}

func (r *sopRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SavedSOP, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	row := scope.Conn.QueryRow(ctx, `
		SELECT id, organization_id, user_id, title, document, source_analysis_id, created_at, updated_at
		FROM saved_sops WHERE id = $1`, id)
	sop, err := scanSOP(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return sop, nil
}

func (r *sopRepository) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.SavedSOP, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, organization_id, user_id, title, document, source_analysis_id, created_at, updated_at
		FROM saved_sops
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sops: %w", err)
	}
	defer rows.Close()

	sops := make([]*models.SavedSOP, 0)
	for rows.Next() {
		sop, err := scanSOP(rows)
		if err != nil {
			return nil, err
		}
		sops = append(sops, sop)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sops: %w", err)
	}
	return sops, nil
}

func (r *sopRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM saved_sops WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanSOP(row pgx.Row) (*models.SavedSOP, error) {
	var sop models.SavedSOP
	var docJSON []byte
	err := row.Scan(&sop.ID, &sop.OrganizationID, &sop.UserID, &sop.Title, &docJSON,
		&sop.SourceAnalysisID, &sop.CreatedAt, &sop.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sop: %w", err)
	}
	if err := json.Unmarshal(docJSON, &sop.Document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sop document: %w", err)
	}
	return &sop, nil
}
