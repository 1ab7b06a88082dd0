package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/adapters/website"
	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/prompts"
	"github.com/vaforge/vaforge-engine/pkg/repositories"
	"github.com/vaforge/vaforge-engine/pkg/services/pipeline"
)

// StageSOP names SOP generation in parse errors.
const StageSOP pipeline.StageName = prompts.StageSOP

// SaveSOPRequest persists a generated (and possibly edited) SOP.
type SaveSOPRequest struct {
	Title            string             `json:"title"`
	Document         models.SOPDocument `json:"document"`
	SourceAnalysisID *uuid.UUID         `json:"source_analysis_id,omitempty"`
}

// SOPService generates and stores Standard Operating Procedures.
type SOPService interface {
	// Generate drafts an SOP. Invalid model output is a *pipeline.ParseError.
	Generate(ctx context.Context, orgID uuid.UUID, req *models.SOPRequest) (*models.SOPDocument, error)
	Save(ctx context.Context, orgID uuid.UUID, userID string, req *SaveSOPRequest) (*models.SavedSOP, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.SavedSOP, error)
	List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.SavedSOP, error)
	// Delete removes an SOP. Only its author may delete it.
	Delete(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) error
}

type sopService struct {
	llmClient llm.LLMClient
	repo      repositories.SOPRepository
	knowledge KnowledgeBaseService
	website   website.Summarizer
	logger    *zap.Logger
}

// NewSOPService creates a new SOPService. site may be nil.
func NewSOPService(
	llmClient llm.LLMClient,
	repo repositories.SOPRepository,
	knowledge KnowledgeBaseService,
	site website.Summarizer,
	logger *zap.Logger,
) SOPService {
	return &sopService{
		llmClient: llmClient,
		repo:      repo,
		knowledge: knowledge,
		website:   site,
		logger:    logger.Named("sop"),
	}
}

var _ SOPService = (*sopService)(nil)

func (s *sopService) Generate(ctx context.Context, orgID uuid.UUID, req *models.SOPRequest) (*models.SOPDocument, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing := strings.TrimSpace(req.ExistingSOPText)
	if existing == "" && req.ExistingSOPURL != "" && s.website != nil {
		text, err := s.website.FetchText(ctx, req.ExistingSOPURL)
		if err != nil {
			s.logger.Warn("Failed to fetch existing SOP", zap.String("url", req.ExistingSOPURL), zap.Error(err))
		}
		existing = text
	}

	knowledgeContext := ""
	if s.knowledge != nil {
		text, _, err := s.knowledge.PromptContext(ctx, orgID)
		if err != nil {
			s.logger.Warn("Failed to load knowledge base context", zap.Error(err))
		}
		knowledgeContext = text
	}

	settings := prompts.Settings(prompts.StageSOP)
	resp, err := s.llmClient.GenerateResponse(ctx,
		prompts.BuildSOPPrompt(req, existing, knowledgeContext),
		prompts.SOPSystemMessage(),
		llm.GenerateOptions{Temperature: settings.Temperature, MaxTokens: settings.MaxTokens, JSONMode: true},
	)
	if err != nil {
		return nil, err
	}

	doc, err := llm.ParseJSONResponse[models.SOPDocument](resp.Content)
	if err != nil {
		return nil, &pipeline.ParseError{Stage: StageSOP, Raw: resp.Content, Err: err}
	}
	renumberSteps(&doc)
	if err := models.ValidateStruct(&doc); err != nil {
		return nil, &pipeline.ParseError{Stage: StageSOP, Raw: resp.Content, Err: err}
	}
	return &doc, nil
}

// renumberSteps makes step numbers contiguous from 1 in the given order.
func renumberSteps(doc *models.SOPDocument) {
	for i := range doc.Steps {
		doc.Steps[i].Number = i + 1
	}
}

func (s *sopService) Save(ctx context.Context, orgID uuid.UUID, userID string, req *SaveSOPRequest) (*models.SavedSOP, error) {
	if err := models.ValidateStruct(&req.Document); err != nil {
		return nil, err
	}
	sop := &models.SavedSOP{
		OrganizationID:   orgID,
		UserID:           userID,
		Title:            strings.TrimSpace(req.Title),
		Document:         req.Document,
		SourceAnalysisID: req.SourceAnalysisID,
	}
	if err := s.repo.Create(ctx, sop); err != nil {
		return nil, fmt.Errorf("failed to save SOP: %w", err)
	}
	return sop, nil
}

func (s *sopService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.SavedSOP, error) {
	sop, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sop.OrganizationID != orgID {
		return nil, apperrors.ErrNotFound
	}
	return sop, nil
}

func (s *sopService) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.SavedSOP, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, orgID, limit, offset)
}

func (s *sopService) Delete(ctx context.Context, orgID uuid.UUID, userID string, id uuid.UUID) error {
	sop, err := s.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if sop.UserID != userID {
		return apperrors.ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}
