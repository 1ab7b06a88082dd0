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

// AppliedEvent marks a learning event as merged into the given fields.
type AppliedEvent struct {
	EventID uuid.UUID
	Fields  []models.KnowledgeField
}

// KnowledgeBaseWrite is one compare-and-swap write of a knowledge base plus the
// learning-event bookkeeping that must commit with it.
type KnowledgeBaseWrite struct {
	KnowledgeBase   *models.KnowledgeBase
	ExpectedVersion int
	Applied         []AppliedEvent
	Reverted        []uuid.UUID
}

// KnowledgeBaseRepository provides data access for organization knowledge bases.
type KnowledgeBaseRepository interface {
	GetByOrganization(ctx context.Context, orgID uuid.UUID) (*models.KnowledgeBase, error)
	Create(ctx context.Context, kb *models.KnowledgeBase) error
	// Write persists the knowledge base only if its stored version still equals
	// ExpectedVersion, and marks events in the same transaction. A lost race
	// returns apperrors.ErrVersionConflict and changes nothing.
	Write(ctx context.Context, w *KnowledgeBaseWrite) error
}

type knowledgeBaseRepository struct{}

// NewKnowledgeBaseRepository creates a new KnowledgeBaseRepository.
func NewKnowledgeBaseRepository() KnowledgeBaseRepository {
	return &knowledgeBaseRepository{}
}

var _ KnowledgeBaseRepository = (*knowledgeBaseRepository)(nil)

const knowledgeBaseColumns = `
	id, organization_id, business_name, industry, primary_crm, biggest_bottleneck,
	brand_voice, target_audience, tool_stack, compliance_requirements, extracted_knowledge,
	version, enrichment_version, last_edited_by, last_enriched_at, created_at, updated_at`

func (r *knowledgeBaseRepository) GetByOrganization(ctx context.Context, orgID uuid.UUID) (*models.KnowledgeBase, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	row := scope.Conn.QueryRow(ctx, `SELECT `+knowledgeBaseColumns+`
		FROM knowledge_bases
		WHERE organization_id = $1`, orgID)
	kb, err := scanKnowledgeBase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return kb, nil
}

func (r *knowledgeBaseRepository) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	if kb.ID == uuid.Nil {
		kb.ID = uuid.New()
	}
	if kb.Version == 0 {
		kb.Version = 1
	}
	kb.CreatedAt = now
	kb.UpdatedAt = now

	extracted, err := json.Marshal(kb.ExtractedKnowledge)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted knowledge: %w", err)
	}

	// Concurrent get-or-create calls converge on the existing row.
	row := scope.Conn.QueryRow(ctx, `
		INSERT INTO knowledge_bases (
			id, organization_id, business_name, industry, primary_crm, biggest_bottleneck,
			brand_voice, target_audience, tool_stack, compliance_requirements, extracted_knowledge,
			version, enrichment_version, last_edited_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (organization_id) DO UPDATE SET organization_id = EXCLUDED.organization_id
		RETURNING `+knowledgeBaseColumns,
		kb.ID, kb.OrganizationID, kb.BusinessName, kb.Industry, kb.PrimaryCRM, kb.BiggestBottleneck,
		kb.BrandVoice, kb.TargetAudience, nonNilStrings(kb.ToolStack), nonNilStrings(kb.ComplianceRequirements),
		extracted, kb.Version, kb.EnrichmentVersion, kb.LastEditedBy, kb.CreatedAt, kb.UpdatedAt,
	)
	stored, err := scanKnowledgeBase(row)
	if err != nil {
		return fmt.Errorf("failed to create knowledge base: %w", err)
	}
	*kb = *stored
	return nil
}

func (r *knowledgeBaseRepository) Write(ctx context.Context, w *KnowledgeBaseWrite) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	kb := w.KnowledgeBase
	extracted, err := json.Marshal(kb.ExtractedKnowledge)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted knowledge: %w", err)
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	now := time.Now()
	tag, err := tx.Exec(ctx, `
		UPDATE knowledge_bases SET
			business_name = $3, industry = $4, primary_crm = $5, biggest_bottleneck = $6,
			brand_voice = $7, target_audience = $8, tool_stack = $9, compliance_requirements = $10,
			extracted_knowledge = $11, enrichment_version = $12, last_edited_by = $13,
			last_enriched_at = $14, version = version + 1, updated_at = $15
		WHERE id = $1 AND version = $2`,
		kb.ID, w.ExpectedVersion,
		kb.BusinessName, kb.Industry, kb.PrimaryCRM, kb.BiggestBottleneck,
		kb.BrandVoice, kb.TargetAudience, nonNilStrings(kb.ToolStack), nonNilStrings(kb.ComplianceRequirements),
		extracted, kb.EnrichmentVersion, kb.LastEditedBy, kb.LastEnrichedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update knowledge base: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrVersionConflict
	}

	for _, a := range w.Applied {
		fields := make([]string, len(a.Fields))
		for i, f := range a.Fields {
			fields[i] = string(f)
		}
		tag, err := tx.Exec(ctx, `
			UPDATE learning_events
			SET applied = true, applied_at = $2, applied_to_fields = $3
			WHERE id = $1 AND knowledge_base_id = $4 AND NOT applied`,
			a.EventID, now, fields, kb.ID)
		if err != nil {
			return fmt.Errorf("failed to mark learning event applied: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Another merge consumed the event first.
			return apperrors.ErrVersionConflict
		}
	}

	for _, id := range w.Reverted {
		_, err := tx.Exec(ctx, `
			UPDATE learning_events
			SET applied = false, applied_at = NULL, applied_to_fields = '{}'
			WHERE id = $1 AND knowledge_base_id = $2`,
			id, kb.ID)
		if err != nil {
			return fmt.Errorf("failed to revert learning event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	kb.Version = w.ExpectedVersion + 1
	kb.UpdatedAt = now
	return nil
}

func scanKnowledgeBase(row pgx.Row) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	var extracted []byte

	err := row.Scan(
		&kb.ID, &kb.OrganizationID, &kb.BusinessName, &kb.Industry, &kb.PrimaryCRM, &kb.BiggestBottleneck,
		&kb.BrandVoice, &kb.TargetAudience, &kb.ToolStack, &kb.ComplianceRequirements, &extracted,
		&kb.Version, &kb.EnrichmentVersion, &kb.LastEditedBy, &kb.LastEnrichedAt, &kb.CreatedAt, &kb.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan knowledge base: %w", err)
	}

	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &kb.ExtractedKnowledge); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extracted knowledge: %w", err)
		}
	}
	return &kb, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
