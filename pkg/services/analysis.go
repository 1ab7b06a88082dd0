package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/adapters/document"
	"github.com/vaforge/vaforge-engine/pkg/adapters/website"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/services/pipeline"
)

// PipelineRunner executes the analysis stages.
type PipelineRunner interface {
	Run(ctx context.Context, input pipeline.Input, progress pipeline.ProgressCallback) (*models.PipelineResult, error)
	Refine(ctx context.Context, input pipeline.Input, prior *models.PipelineResult, progress pipeline.ProgressCallback) (*models.PipelineResult, error)
}

var _ PipelineRunner = (*pipeline.Runner)(nil)

// AnalysisOutcome is a finished run plus the knowledge base version it read.
type AnalysisOutcome struct {
	Result               *models.PipelineResult `json:"result"`
	KnowledgeBaseVersion *int                   `json:"knowledge_base_version,omitempty"`
}

// AnalysisService prepares intake material and runs the pipeline.
type AnalysisService interface {
	// Analyze validates the intake, gathers document and website text, and
	// runs every stage. Intake problems are *models.ValidationError, unreadable
	// attachments *document.ExtractionError, and stage failures
	// *pipeline.AnalysisFailure.
	Analyze(ctx context.Context, orgID uuid.UUID, intake *models.IntakeForm, progress pipeline.ProgressCallback) (*AnalysisOutcome, error)

	// Refine re-runs a saved analysis with client feedback and saves the
	// result as its next version.
	Refine(ctx context.Context, orgID uuid.UUID, userID string, analysisID uuid.UUID, feedback string, progress pipeline.ProgressCallback) (*models.SavedAnalysis, error)
}

type analysisService struct {
	runner          PipelineRunner
	documents       document.Extractor
	website         website.Summarizer
	knowledge       KnowledgeBaseService
	saved           SavedAnalysisService
	websiteMaxChars int
	logger          *zap.Logger
}

// NewAnalysisService creates a new AnalysisService. website may be nil.
func NewAnalysisService(
	runner PipelineRunner,
	documents document.Extractor,
	site website.Summarizer,
	knowledge KnowledgeBaseService,
	saved SavedAnalysisService,
	websiteMaxChars int,
	logger *zap.Logger,
) AnalysisService {
	return &analysisService{
		runner:          runner,
		documents:       documents,
		website:         site,
		knowledge:       knowledge,
		saved:           saved,
		websiteMaxChars: websiteMaxChars,
		logger:          logger.Named("analysis"),
	}
}

var _ AnalysisService = (*analysisService)(nil)

func (s *analysisService) Analyze(ctx context.Context, orgID uuid.UUID, intake *models.IntakeForm, progress pipeline.ProgressCallback) (*AnalysisOutcome, error) {
	if intake == nil {
		return nil, &models.ValidationError{Fields: []models.FieldError{{Field: "intake", Message: "is required"}}}
	}
	if err := intake.Validate(); err != nil {
		return nil, err
	}

	input, kbVersion, err := s.prepareInput(ctx, orgID, intake)
	if err != nil {
		return nil, err
	}

	result, err := s.runner.Run(ctx, input, progress)
	if err != nil {
		return nil, err
	}
	return &AnalysisOutcome{Result: result, KnowledgeBaseVersion: kbVersion}, nil
}

func (s *analysisService) Refine(ctx context.Context, orgID uuid.UUID, userID string, analysisID uuid.UUID, feedback string, progress pipeline.ProgressCallback) (*models.SavedAnalysis, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, &models.ValidationError{Fields: []models.FieldError{{Field: "feedback", Message: "is required"}}}
	}

	prior, err := s.saved.Get(ctx, orgID, analysisID)
	if err != nil {
		return nil, err
	}

	intake := prior.Intake
	input, kbVersion, err := s.prepareInput(ctx, orgID, &intake)
	if err != nil {
		return nil, err
	}
	input.Refinement = feedback

	result, err := s.runner.Refine(ctx, input, &prior.Result, progress)
	if err != nil {
		return nil, err
	}

	return s.saved.Save(ctx, orgID, userID, &SaveAnalysisRequest{
		Intake:               intake,
		Result:               *result,
		KnowledgeBaseVersion: kbVersion,
		ParentAnalysisID:     &prior.ID,
	})
}

// prepareInput gathers everything the stages read besides the intake itself.
// Attachments must be readable; the website, SOP link and knowledge base are
// optional context and their failures are only logged.
func (s *analysisService) prepareInput(ctx context.Context, orgID uuid.UUID, intake *models.IntakeForm) (pipeline.Input, *int, error) {
	input := pipeline.Input{Intake: intake}

	if len(intake.Documents) > 0 {
		text, err := s.documents.ExtractAll(ctx, intake.Documents)
		if err != nil {
			return input, nil, err
		}
		input.DocumentText = text
	}

	if s.website != nil && intake.SOPURL != "" {
		text, err := s.website.FetchText(ctx, intake.SOPURL)
		if err != nil {
			s.logger.Warn("Failed to fetch SOP link", zap.String("url", intake.SOPURL), zap.Error(err))
		} else {
			input.DocumentText = joinSections(input.DocumentText, "### Linked SOP\n\n"+text)
		}
	}

	if s.website != nil && intake.Website != "" {
		summary, err := s.website.Summarize(ctx, intake.Website)
		switch {
		case err != nil:
			s.logger.Warn("Failed to summarize website", zap.String("url", intake.Website), zap.Error(err))
		case !summary.IsEmpty():
			input.WebsiteSummary = summary.Format(s.websiteMaxChars)
		}
	}

	var kbVersion *int
	if s.knowledge != nil {
		text, version, err := s.knowledge.PromptContext(ctx, orgID)
		if err != nil {
			s.logger.Warn("Failed to load knowledge base context",
				zap.String("organization_id", orgID.String()),
				zap.Error(err))
		} else {
			input.KnowledgeContext = text
			kbVersion = &version
		}
	}

	return input, kbVersion, nil
}

func joinSections(a, b string) string {
	if a == "" {
		return b
	}
	return fmt.Sprintf("%s\n\n%s", a, b)
}
