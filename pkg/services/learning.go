package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/config"
	"github.com/vaforge/vaforge-engine/pkg/jsonutil"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/repositories"
	"github.com/vaforge/vaforge-engine/pkg/retry"
)

// EventSource identifies what produced a batch of insights.
type EventSource struct {
	Type        models.SourceType
	IDs         []string
	TriggeredBy string
}

// LearningService stores insights as learning events and merges them into the
// knowledge base.
type LearningService interface {
	// CreateEvents persists one event per insight, skipping insights that
	// near-duplicate an event of the same category inside the duplicate window.
	CreateEvents(ctx context.Context, orgID uuid.UUID, source EventSource, insights []models.ExtractedInsight) ([]*models.LearningEvent, error)

	// ApplyPending merges unapplied events into the knowledge base. The write
	// and the event bookkeeping commit together; lost races are retried.
	ApplyPending(ctx context.Context, orgID uuid.UUID) (*models.ApplyResult, error)

	// RestoreEvent undoes what an applied event wrote and marks it unapplied.
	RestoreEvent(ctx context.Context, orgID uuid.UUID, eventID uuid.UUID, userID string) (*models.KnowledgeBase, error)

	ListEvents(ctx context.Context, orgID uuid.UUID, filter models.LearningEventFilter) ([]*models.LearningEvent, int, error)
}

type learningService struct {
	kbRepo    repositories.KnowledgeBaseRepository
	eventRepo repositories.LearningEventRepository
	cfg       config.LearningConfig
	retryCfg  *retry.Config
	now       func() time.Time
	logger    *zap.Logger
}

// NewLearningService creates a new LearningService.
func NewLearningService(
	kbRepo repositories.KnowledgeBaseRepository,
	eventRepo repositories.LearningEventRepository,
	cfg config.LearningConfig,
	logger *zap.Logger,
) LearningService {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.MergeRetries
	retryCfg.InitialDelay = 50 * time.Millisecond
	return &learningService{
		kbRepo:    kbRepo,
		eventRepo: eventRepo,
		cfg:       cfg,
		retryCfg:  retryCfg,
		now:       time.Now,
		logger:    logger.Named("learning"),
	}
}

var _ LearningService = (*learningService)(nil)

func (s *learningService) CreateEvents(ctx context.Context, orgID uuid.UUID, source EventSource, insights []models.ExtractedInsight) ([]*models.LearningEvent, error) {
	if len(insights) == 0 {
		return nil, nil
	}

	kb, err := loadKnowledgeBase(ctx, s.kbRepo, orgID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	since := now.Add(-s.cfg.DuplicateWindow)
	recent := make(map[models.InsightCategory][]string)
	loaded := make(map[models.InsightCategory]bool)

	var events []*models.LearningEvent
	duplicates := 0
	for _, in := range insights {
		text := strings.TrimSpace(in.Text)
		if text == "" || !in.Category.IsValid() {
			continue
		}

		if !loaded[in.Category] {
			existing, err := s.eventRepo.ListRecentByCategory(ctx, kb.ID, in.Category, since)
			if err != nil {
				return nil, fmt.Errorf("failed to load recent events: %w", err)
			}
			for _, e := range existing {
				recent[in.Category] = append(recent[in.Category], e.Insight)
			}
			loaded[in.Category] = true
		}

		if isDuplicateInsight(text, recent[in.Category], s.cfg.DuplicateSimilarity) {
			duplicates++
			continue
		}
		recent[in.Category] = append(recent[in.Category], text)

		sourceIDs := source.IDs
		if sourceIDs == nil {
			sourceIDs = []string{}
		}
		events = append(events, &models.LearningEvent{
			ID:              uuid.New(),
			OrganizationID:  orgID,
			KnowledgeBaseID: kb.ID,
			Insight:         text,
			Category:        in.Category,
			EventType:       in.EventType,
			Confidence:      jsonutil.ClampPercent(in.Confidence),
			Metadata:        in.Metadata,
			SourceType:      source.Type,
			SourceIDs:       sourceIDs,
			TriggeredBy:     source.TriggeredBy,
			CreatedAt:       now,
		})
	}

	if len(events) > 0 {
		if err := s.eventRepo.CreateBatch(ctx, events); err != nil {
			return nil, fmt.Errorf("failed to create learning events: %w", err)
		}
	}

	s.logger.Info("Learning events created",
		zap.String("organization_id", orgID.String()),
		zap.String("source", string(source.Type)),
		zap.Int("created", len(events)),
		zap.Int("duplicates", duplicates))
	return events, nil
}

func (s *learningService) ApplyPending(ctx context.Context, orgID uuid.UUID) (*models.ApplyResult, error) {
	result, err := retry.DoWithResult(ctx, s.retryCfg, isVersionConflict, func() (*models.ApplyResult, error) {
		return s.applyOnce(ctx, orgID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply learning events: %w", err)
	}

	s.logger.Info("Learning events applied",
		zap.String("organization_id", orgID.String()),
		zap.Int("considered", result.Considered),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Int("below_threshold", result.BelowThreshold),
		zap.Int("unmapped", result.Unmapped),
		zap.Int("enrichment_version", result.EnrichmentVersion))
	return result, nil
}

// applyOnce runs one read-merge-write pass. Every call starts from a fresh read
// so a retry after a version conflict sees the winner's state.
func (s *learningService) applyOnce(ctx context.Context, orgID uuid.UUID) (*models.ApplyResult, error) {
	kb, err := loadKnowledgeBase(ctx, s.kbRepo, orgID)
	if err != nil {
		return nil, err
	}
	expected := kb.Version

	pending, err := s.eventRepo.ListPending(ctx, kb.ID, s.cfg.ApplyThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending events: %w", err)
	}

	result := &models.ApplyResult{
		Considered:        len(pending),
		UpdatedFields:     []models.KnowledgeField{},
		EnrichmentVersion: kb.EnrichmentVersion,
	}
	if len(pending) == 0 {
		return result, nil
	}

	now := s.now()
	var applied, consumed []repositories.AppliedEvent
	written := make(map[models.KnowledgeField]bool)
	updated := make(map[models.KnowledgeField]bool)

	for _, se := range scoreEvents(pending, now, s.cfg) {
		e := se.event
		if se.adjusted < s.cfg.ApplyThreshold {
			result.BelowThreshold++
			continue
		}

		field, ok := MapToField(e.Category, e.EventType, e.Metadata)
		if !ok {
			// Consumed with no target fields so it is not reconsidered on
			// every pass.
			result.Unmapped++
			consumed = append(consumed, repositories.AppliedEvent{EventID: e.ID})
			continue
		}
		value := strings.TrimSpace(eventValue(e))

		changed := false
		if field.IsScalar() {
			if written[field] {
				result.Skipped++
				continue
			}
			current := kb.ScalarValue(field)
			switch {
			case strings.EqualFold(current, value):
				// Already known; consume the event without a change.
			case current == "" || se.adjusted >= s.cfg.OverwriteThreshold:
				kb.ExtractedKnowledge.FieldHistory = append(kb.ExtractedKnowledge.FieldHistory, models.FieldChange{
					Field:         field,
					PreviousValue: current,
					NewValue:      value,
					EventID:       e.ID,
					Confidence:    se.adjusted,
					ChangedBy:     string(e.SourceType),
					ChangedAt:     now,
				})
				kb.SetScalar(field, value)
				written[field] = true
				changed = true
			default:
				s.logger.Debug("Keeping existing value",
					zap.String("field", string(field)),
					zap.String("event_id", e.ID.String()),
					zap.Int("adjusted_confidence", se.adjusted),
					zap.String("priority", string(se.label)))
				result.Skipped++
				continue
			}
		} else {
			changed = kb.AppendValue(field, value, e.ID, now)
		}

		// Events that only confirm known values are consumed with no target
		// fields, so restoring them later removes nothing.
		mark := repositories.AppliedEvent{EventID: e.ID}
		if changed {
			mark.Fields = []models.KnowledgeField{field}
			updated[field] = true
		}
		applied = append(applied, mark)
	}

	if len(applied) == 0 && len(consumed) == 0 {
		return result, nil
	}

	if len(applied) > 0 {
		kb.EnrichmentVersion++
		kb.LastEnrichedAt = &now
	}
	if err := s.kbRepo.Write(ctx, &repositories.KnowledgeBaseWrite{
		KnowledgeBase:   kb,
		ExpectedVersion: expected,
		Applied:         append(applied, consumed...),
	}); err != nil {
		return nil, err
	}

	result.Applied = len(applied)
	result.EnrichmentVersion = kb.EnrichmentVersion
	for f := range updated {
		result.UpdatedFields = append(result.UpdatedFields, f)
	}
	sort.Slice(result.UpdatedFields, func(i, j int) bool {
		return result.UpdatedFields[i] < result.UpdatedFields[j]
	})
	return result, nil
}

func (s *learningService) RestoreEvent(ctx context.Context, orgID uuid.UUID, eventID uuid.UUID, userID string) (*models.KnowledgeBase, error) {
	return retry.DoWithResult(ctx, s.retryCfg, isVersionConflict, func() (*models.KnowledgeBase, error) {
		kb, err := loadKnowledgeBase(ctx, s.kbRepo, orgID)
		if err != nil {
			return nil, err
		}
		event, err := s.eventRepo.GetByID(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if event.KnowledgeBaseID != kb.ID {
			return nil, apperrors.ErrNotFound
		}
		if !event.Applied {
			return nil, fmt.Errorf("event %s is not applied: %w", eventID, apperrors.ErrConflict)
		}

		expected := kb.Version
		for _, name := range event.AppliedToFields {
			field := models.KnowledgeField(name)
			if !field.IsScalar() {
				kb.RemoveValue(field, eventValue(event), event.ID)
				continue
			}
			change := kb.LastChangeByEvent(event.ID)
			if change == nil {
				// The event matched the existing value and changed nothing.
				continue
			}
			if kb.ScalarValue(field) != change.NewValue {
				return nil, fmt.Errorf("%s was changed after event %s: %w", field, eventID, apperrors.ErrConflict)
			}
			kb.SetScalar(field, change.PreviousValue)
			change.Restored = true
		}

		kb.LastEditedBy = userID
		if err := s.kbRepo.Write(ctx, &repositories.KnowledgeBaseWrite{
			KnowledgeBase:   kb,
			ExpectedVersion: expected,
			Reverted:        []uuid.UUID{event.ID},
		}); err != nil {
			return nil, err
		}

		s.logger.Info("Learning event restored",
			zap.String("organization_id", orgID.String()),
			zap.String("event_id", eventID.String()),
			zap.String("user_id", userID))
		return kb, nil
	})
}

func (s *learningService) ListEvents(ctx context.Context, orgID uuid.UUID, filter models.LearningEventFilter) ([]*models.LearningEvent, int, error) {
	kb, err := loadKnowledgeBase(ctx, s.kbRepo, orgID)
	if err != nil {
		return nil, 0, err
	}
	events, total, err := s.eventRepo.List(ctx, kb.ID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list learning events: %w", err)
	}
	return events, total, nil
}
