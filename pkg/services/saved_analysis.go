package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/events"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/repositories"
	"github.com/vaforge/vaforge-engine/pkg/services/pipeline"
)

// Paging bounds for saved-analysis listings.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// SaveAnalysisRequest is a completed run to persist.
type SaveAnalysisRequest struct {
	Title                string                `json:"title"`
	Intake               models.IntakeForm     `json:"intake"`
	Result               models.PipelineResult `json:"result"`
	KnowledgeBaseVersion *int                  `json:"knowledge_base_version,omitempty"`
	// ParentAnalysisID makes the new analysis the next version of an existing one.
	ParentAnalysisID *uuid.UUID `json:"parent_analysis_id,omitempty"`
}

// SavedAnalysisService stores analyses and announces each save for enrichment.
type SavedAnalysisService interface {
	Save(ctx context.Context, orgID uuid.UUID, userID string, req *SaveAnalysisRequest) (*models.SavedAnalysis, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.SavedAnalysis, error)
	List(ctx context.Context, orgID uuid.UUID, filter models.SavedAnalysisFilter) ([]*models.SavedAnalysisSummary, models.Pagination, error)
	// Finalize locks an analysis. Only its author may finalize it.
	Finalize(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) (*models.SavedAnalysis, error)
	// Delete removes an analysis. Only its author may delete it.
	Delete(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) error
	Versions(ctx context.Context, orgID, id uuid.UUID) ([]*models.SavedAnalysisSummary, error)
}

type savedAnalysisService struct {
	repo      repositories.SavedAnalysisRepository
	publisher events.Publisher
	logger    *zap.Logger
}

// NewSavedAnalysisService creates a new SavedAnalysisService.
func NewSavedAnalysisService(repo repositories.SavedAnalysisRepository, publisher events.Publisher, logger *zap.Logger) SavedAnalysisService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &savedAnalysisService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.Named("saved-analysis"),
	}
}

var _ SavedAnalysisService = (*savedAnalysisService)(nil)

func (s *savedAnalysisService) Save(ctx context.Context, orgID uuid.UUID, userID string, req *SaveAnalysisRequest) (*models.SavedAnalysis, error) {
	if err := req.Intake.Validate(); err != nil {
		return nil, err
	}

	if err := req.Result.ValidateSaved(); err != nil {
		return nil, err
	}
	// The preview is always derived from the package so listings and
	// rendered reports agree.
	preview := *pipeline.BuildPreview(&req.Result.Package)

	a := &models.SavedAnalysis{
		OrganizationID:       orgID,
		UserID:               userID,
		Title:                analysisTitle(req.Title, &req.Intake, &preview),
		Intake:               req.Intake,
		Result:               req.Result,
		Preview:              preview,
		VersionNumber:        1,
		KnowledgeBaseVersion: req.KnowledgeBaseVersion,
	}
	a.Result.Preview = preview

	if req.ParentAnalysisID != nil {
		parent, err := s.Get(ctx, orgID, *req.ParentAnalysisID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent analysis: %w", err)
		}
		a.ParentAnalysisID = &parent.ID
		a.VersionNumber = parent.VersionNumber + 1
		if req.Title == "" {
			a.Title = parent.Title
		}
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	s.logger.Info("Analysis saved",
		zap.String("analysis_id", a.ID.String()),
		zap.String("organization_id", orgID.String()),
		zap.Int("version", a.VersionNumber))

	// Enrichment is best-effort; a lost event never fails the save.
	if err := s.publisher.Publish(ctx, models.NewAnalysisSavedEvent(orgID, userID, a.ID)); err != nil {
		s.logger.Warn("Failed to publish enrichment event",
			zap.String("analysis_id", a.ID.String()),
			zap.Error(err))
	}
	return a, nil
}

func (s *savedAnalysisService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.SavedAnalysis, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.OrganizationID != orgID {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (s *savedAnalysisService) List(ctx context.Context, orgID uuid.UUID, filter models.SavedAnalysisFilter) ([]*models.SavedAnalysisSummary, models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageLimit
	}
	if filter.Limit > MaxPageLimit {
		filter.Limit = MaxPageLimit
	}

	items, total, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to list analyses: %w", err)
	}
	return items, models.NewPagination(filter.Page, filter.Limit, total), nil
}

func (s *savedAnalysisService) Finalize(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) (*models.SavedAnalysis, error) {
	a, err := s.getOwned(ctx, orgID, userID, id)
	if err != nil {
		return nil, err
	}
	if a.IsFinalized {
		return a, nil
	}
	if err := s.repo.Finalize(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to finalize analysis: %w", err)
	}
	return s.Get(ctx, orgID, id)
}

func (s *savedAnalysisService) Delete(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) error {
	if _, err := s.getOwned(ctx, orgID, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	s.logger.Info("Analysis deleted", zap.String("analysis_id", id.String()), zap.String("user_id", userID))
	return nil
}

func (s *savedAnalysisService) Versions(ctx context.Context, orgID, id uuid.UUID) ([]*models.SavedAnalysisSummary, error) {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, id)
}

func (s *savedAnalysisService) getOwned(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) (*models.SavedAnalysis, error) {
	a, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	return a, nil
}

// analysisTitle picks the explicit title, then the role or project count, then the business.
func analysisTitle(explicit string, intake *models.IntakeForm, preview *models.AnalysisPreview) string {
	if t := strings.TrimSpace(explicit); t != "" {
		return t
	}
	business := strings.TrimSpace(intake.BusinessName)
	switch {
	case preview.RoleTitle != "":
		return fmt.Sprintf("%s for %s", preview.RoleTitle, business)
	case preview.ProjectCount > 0:
		return fmt.Sprintf("%s for %s", pluralizeProjects(preview.ProjectCount), business)
	}
	return business + " analysis"
}

func pluralizeProjects(n int) string {
	word := "project"
	if n != 1 {
		word = inflection.Plural(word)
	}
	return fmt.Sprintf("%d %s", n, word)
}

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}
