package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/prompts"
	"github.com/vaforge/vaforge-engine/pkg/repositories"
	"github.com/vaforge/vaforge-engine/pkg/retry"
)

// KnowledgeBaseService reads and edits an organization's knowledge base.
type KnowledgeBaseService interface {
	// Get returns the organization's knowledge base, creating an empty one on first use.
	Get(ctx context.Context, orgID uuid.UUID) (*models.KnowledgeBase, error)

	// Update applies a manual edit. When update.ExpectedVersion is set and stale
	// the edit is rejected with apperrors.ErrVersionConflict; otherwise a lost
	// race is retried against a fresh read.
	Update(ctx context.Context, orgID uuid.UUID, userID string, update *models.KnowledgeBaseUpdate) (*models.KnowledgeBase, error)

	// PromptContext renders the knowledge base for prompts and returns the
	// version it was rendered from.
	PromptContext(ctx context.Context, orgID uuid.UUID) (string, int, error)
}

type knowledgeBaseService struct {
	kbRepo   repositories.KnowledgeBaseRepository
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewKnowledgeBaseService creates a new KnowledgeBaseService.
func NewKnowledgeBaseService(kbRepo repositories.KnowledgeBaseRepository, retryCfg *retry.Config, logger *zap.Logger) KnowledgeBaseService {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	return &knowledgeBaseService{
		kbRepo:   kbRepo,
		retryCfg: retryCfg,
		logger:   logger.Named("knowledge-base"),
	}
}

var _ KnowledgeBaseService = (*knowledgeBaseService)(nil)

func (s *knowledgeBaseService) Get(ctx context.Context, orgID uuid.UUID) (*models.KnowledgeBase, error) {
	return loadKnowledgeBase(ctx, s.kbRepo, orgID)
}

func (s *knowledgeBaseService) Update(ctx context.Context, orgID uuid.UUID, userID string, update *models.KnowledgeBaseUpdate) (*models.KnowledgeBase, error) {
	shouldRetry := isVersionConflict
	if update.ExpectedVersion != nil {
		// The caller pinned a version; surfacing the conflict is the answer.
		shouldRetry = func(error) bool { return false }
	}

	kb, err := retry.DoWithResult(ctx, s.retryCfg, shouldRetry, func() (*models.KnowledgeBase, error) {
		kb, err := loadKnowledgeBase(ctx, s.kbRepo, orgID)
		if err != nil {
			return nil, err
		}
		expected := kb.Version
		if update.ExpectedVersion != nil && *update.ExpectedVersion != expected {
			return nil, apperrors.ErrVersionConflict
		}

		update.ApplyTo(kb)
		kb.LastEditedBy = userID
		if err := s.kbRepo.Write(ctx, &repositories.KnowledgeBaseWrite{
			KnowledgeBase:   kb,
			ExpectedVersion: expected,
		}); err != nil {
			return nil, err
		}
		return kb, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Knowledge base updated manually",
		zap.String("organization_id", orgID.String()),
		zap.String("user_id", userID),
		zap.Int("version", kb.Version))
	return kb, nil
}

func (s *knowledgeBaseService) PromptContext(ctx context.Context, orgID uuid.UUID) (string, int, error) {
	kb, err := loadKnowledgeBase(ctx, s.kbRepo, orgID)
	if err != nil {
		return "", 0, err
	}
	return prompts.FormatKnowledgeContext(kb), kb.Version, nil
}

// loadKnowledgeBase returns the organization's knowledge base, creating it when missing.
func loadKnowledgeBase(ctx context.Context, repo repositories.KnowledgeBaseRepository, orgID uuid.UUID) (*models.KnowledgeBase, error) {
	kb, err := repo.GetByOrganization(ctx, orgID)
	if err == nil {
		return kb, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	kb = &models.KnowledgeBase{OrganizationID: orgID}
	if err := repo.Create(ctx, kb); err != nil {
		return nil, fmt.Errorf("failed to create knowledge base: %w", err)
	}
	return kb, nil
}

func isVersionConflict(err error) bool {
	return errors.Is(err, apperrors.ErrVersionConflict)
}
