package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/database"
	"github.com/vaforge/vaforge-engine/pkg/events"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/repositories"
)

// EnrichmentService consumes enrichment events: it extracts insights, stores
// them as learning events and merges what qualifies into the knowledge base.
type EnrichmentService interface {
	events.Handler

	// ApplyNow merges pending events for one organization outside the event flow.
	ApplyNow(ctx context.Context, orgID uuid.UUID) (*models.ApplyResult, error)
}

type enrichmentService struct {
	scopes    database.TenantScopeProvider
	savedRepo repositories.SavedAnalysisRepository
	extractor InsightExtractionService
	learning  LearningService
	logger    *zap.Logger
}

// NewEnrichmentService creates a new EnrichmentService.
func NewEnrichmentService(
	scopes database.TenantScopeProvider,
	savedRepo repositories.SavedAnalysisRepository,
	extractor InsightExtractionService,
	learning LearningService,
	logger *zap.Logger,
) EnrichmentService {
	return &enrichmentService{
		scopes:    scopes,
		savedRepo: savedRepo,
		extractor: extractor,
		learning:  learning,
		logger:    logger.Named("enrichment"),
	}
}

var _ EnrichmentService = (*enrichmentService)(nil)

// HandleEvent runs on the worker. A returned error lets the queue retry
// transient failures; it never reaches the request that published the event.
func (s *enrichmentService) HandleEvent(ctx context.Context, event models.EnrichmentEvent) error {
	tenantCtx, cleanup, err := s.scopes.WithTenantScope(ctx, event.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()

	insights, source, err := s.extract(tenantCtx, event)
	if err != nil {
		return err
	}
	if len(insights) == 0 {
		s.logger.Debug("No insights in event",
			zap.String("event_id", event.ID.String()),
			zap.String("kind", string(event.Kind)))
		return nil
	}

	if _, err := s.learning.CreateEvents(tenantCtx, event.OrganizationID, source, insights); err != nil {
		return err
	}
	if _, err := s.learning.ApplyPending(tenantCtx, event.OrganizationID); err != nil {
		return err
	}
	return nil
}

func (s *enrichmentService) extract(ctx context.Context, event models.EnrichmentEvent) ([]models.ExtractedInsight, EventSource, error) {
	switch event.Kind {
	case models.EnrichmentAnalysisSaved:
		if event.AnalysisID == nil {
			return nil, EventSource{}, nil
		}
		a, err := s.savedRepo.GetByID(ctx, *event.AnalysisID)
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Info("Analysis deleted before enrichment", zap.String("analysis_id", event.AnalysisID.String()))
			return nil, EventSource{}, nil
		}
		if err != nil {
			return nil, EventSource{}, fmt.Errorf("failed to load analysis: %w", err)
		}
		source := EventSource{
			Type:        models.SourceAnalysis,
			IDs:         []string{a.ID.String()},
			TriggeredBy: event.TriggeredBy,
		}
		return s.extractor.FromAnalysis(&a.Intake, &a.Result), source, nil

	case models.EnrichmentChatExchange:
		insights, err := s.extractor.FromChat(ctx, event.UserMessage, event.AssistantMessage)
		if err != nil {
			return nil, EventSource{}, err
		}
		source := EventSource{
			Type:        models.SourceChat,
			IDs:         []string{event.ID.String()},
			TriggeredBy: event.TriggeredBy,
		}
		return insights, source, nil
	}

	s.logger.Warn("Ignoring unknown enrichment event", zap.String("kind", string(event.Kind)))
	return nil, EventSource{}, nil
}

func (s *enrichmentService) ApplyNow(ctx context.Context, orgID uuid.UUID) (*models.ApplyResult, error) {
	tenantCtx, cleanup, err := s.scopes.WithTenantScope(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tenant scope: %w", err)
	}
	defer cleanup()
	return s.learning.ApplyPending(tenantCtx, orgID)
}
