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

// LearningEventRepository provides data access for learning events.
type LearningEventRepository interface {
	CreateBatch(ctx context.Context, events []*models.LearningEvent) error
	// ListRecentByCategory returns events of one category created at or after since,
	// newest first. Used for duplicate suppression.
	ListRecentByCategory(ctx context.Context, kbID uuid.UUID, category models.InsightCategory, since time.Time) ([]*models.LearningEvent, error)
	// ListPending returns unapplied events whose stored confidence is at least minConfidence.
	ListPending(ctx context.Context, kbID uuid.UUID, minConfidence int) ([]*models.LearningEvent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.LearningEvent, error)
	List(ctx context.Context, kbID uuid.UUID, filter models.LearningEventFilter) ([]*models.LearningEvent, int, error)
}

type learningEventRepository struct{}

// NewLearningEventRepository creates a new LearningEventRepository.
func NewLearningEventRepository() LearningEventRepository {
	return &learningEventRepository{}
}

var _ LearningEventRepository = (*learningEventRepository)(nil)

const learningEventColumns = `
	id, organization_id, knowledge_base_id, insight, category, event_type, confidence,
	metadata, source_type, source_ids, triggered_by, applied, applied_at, applied_to_fields, created_at`

func (r *learningEventRepository) CreateBatch(ctx context.Context, events []*models.LearningEvent) error {
	if len(events) == 0 {
		return nil
	}

	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	batch := &pgx.Batch{}
	query := `
		INSERT INTO learning_events (
			id, organization_id, knowledge_base_id, insight, category, event_type, confidence,
			metadata, source_type, source_ids, triggered_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}

		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if e.Metadata == nil {
			metadataJSON = []byte("{}")
		}

		batch.Queue(query,
			e.ID, e.OrganizationID, e.KnowledgeBaseID, e.Insight, string(e.Category), e.EventType,
			e.Confidence, metadataJSON, string(e.SourceType), nonNilStrings(e.SourceIDs), e.TriggeredBy,
			e.CreatedAt,
		)
	}

	// A pgx batch runs as one implicit transaction: either every event lands or none do.
	br := scope.Conn.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch insert learning event: %w", err)
		}
	}
	return nil
}

func (r *learningEventRepository) ListRecentByCategory(ctx context.Context, kbID uuid.UUID, category models.InsightCategory, since time.Time) ([]*models.LearningEvent, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `SELECT `+learningEventColumns+`
		FROM learning_events
		WHERE knowledge_base_id = $1 AND category = $2 AND created_at >= $3
		ORDER BY created_at DESC`,
		kbID, string(category), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent learning events: %w", err)
	}
	return collectLearningEvents(rows)
}

func (r *learningEventRepository) ListPending(ctx context.Context, kbID uuid.UUID, minConfidence int) ([]*models.LearningEvent, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `SELECT `+learningEventColumns+`
		FROM learning_events
		WHERE knowledge_base_id = $1 AND NOT applied AND confidence >= $2
		ORDER BY confidence DESC, created_at DESC`,
		kbID, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending learning events: %w", err)
	}
	return collectLearningEvents(rows)
}

func (r *learningEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LearningEvent, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	row := scope.Conn.QueryRow(ctx, `SELECT `+learningEventColumns+`
		FROM learning_events WHERE id = $1`, id)
	e, err := scanLearningEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *learningEventRepository) List(ctx context.Context, kbID uuid.UUID, filter models.LearningEventFilter) ([]*models.LearningEvent, int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no tenant scope in context")
	}

	where := `WHERE knowledge_base_id = $1
		AND ($2::boolean IS NULL OR applied = $2)
		AND ($3 = '' OR category = $3)`
	args := []any{kbID, filter.Applied, string(filter.Category)}

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM learning_events `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count learning events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := scope.Conn.Query(ctx, `SELECT `+learningEventColumns+`
		FROM learning_events `+where+`
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list learning events: %w", err)
	}
	events, err := collectLearningEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func collectLearningEvents(rows pgx.Rows) ([]*models.LearningEvent, error) {
	defer rows.Close()

	events := make([]*models.LearningEvent, 0)
	for rows.Next() {
		e, err := scanLearningEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating learning events: %w", err)
	}
	return events, nil
}

func scanLearningEvent(row pgx.Row) (*models.LearningEvent, error) {
	var e models.LearningEvent
	var category, sourceType string
	var metadata []byte
	var fields []string

	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.KnowledgeBaseID, &e.Insight, &category, &e.EventType, &e.Confidence,
		&metadata, &sourceType, &e.SourceIDs, &e.TriggeredBy, &e.Applied, &e.AppliedAt, &fields, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan learning event: %w", err)
	}

	e.Category = models.InsightCategory(category)
	e.SourceType = models.SourceType(sourceType)
	if len(fields) > 0 {
		e.AppliedToFields = fields
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
		}
	}
	return &e, nil
}
