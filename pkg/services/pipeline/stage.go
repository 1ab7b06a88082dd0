package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/logging"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/prompts"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageDiscovery      StageName = "discovery"
	StageClassification StageName = "classification"
	StageArchitecture   StageName = "architecture"
	StageSpecification  StageName = "specification"
	StageValidation     StageName = "validation"
	StageAssembly       StageName = "assembly"
)

// Activity is the progress text shown while the stage runs.
func (s StageName) Activity() string {
	switch s {
	case StageDiscovery:
		return "analyzing your business context"
	case StageClassification:
		return "choosing the right service model"
	case StageArchitecture:
		return "designing the engagement structure"
	case StageSpecification:
		return "writing detailed specifications"
	case StageValidation:
		return "validating the recommendation"
	case StageAssembly:
		return "assembling your package"
	}
	return string(s)
}

// Input is everything a run starts from.
type Input struct {
	Intake           *models.IntakeForm
	DocumentText     string
	WebsiteSummary   string
	KnowledgeContext string
	// Refinement is client feedback applied when re-running Specification.
	Refinement string
}

func (in Input) promptContext() prompts.AnalysisContext {
	return prompts.AnalysisContext{
		Intake:           in.Intake,
		DocumentText:     in.DocumentText,
		WebsiteSummary:   in.WebsiteSummary,
		KnowledgeContext: in.KnowledgeContext,
	}
}

// State accumulates stage outputs during a run. A stage reads only the
// outputs of stages before it.
type State struct {
	Input          Input
	Discovery      *models.DiscoveryResult
	Classification *models.ClassificationResult
	Architecture   *models.ArchitectureResult
	Specification  *models.SpecificationResult
	Validation     *models.ValidationResult
	Package        *models.EngagementPackage
	Preview        *models.AnalysisPreview
}

// Result returns the composite result. It must only be called after every stage succeeded.
func (s *State) Result() *models.PipelineResult {
	return &models.PipelineResult{
		Discovery:      *s.Discovery,
		Classification: *s.Classification,
		Architecture:   *s.Architecture,
		DetailedSpecs:  *s.Specification,
		Validation:     *s.Validation,
		Package:        *s.Package,
		Preview:        *s.Preview,
	}
}

// Stage is one step of the analysis pipeline.
type Stage interface {
	// Name returns the stage name.
	Name() StageName

	// Execute runs the stage and stores its output on state.
	Execute(ctx context.Context, state *State) error
}

// ProgressCallback reports progress: current of total stages, with a message.
type ProgressCallback func(stage StageName, current, total int, message string)

// baseStage holds what every LLM-backed stage needs.
type baseStage struct {
	name   StageName
	llm    llm.LLMClient
	logger *zap.Logger
}

func newBaseStage(name StageName, client llm.LLMClient, logger *zap.Logger) baseStage {
	return baseStage{
		name:   name,
		llm:    client,
		logger: logger.Named(string(name)),
	}
}

// Name returns the stage name.
func (b *baseStage) Name() StageName {
	return b.name
}

// generate runs one JSON-mode completion and decodes it into T. finish may
// normalize the value and must return an error when it is invalid.
func generate[T any](
	ctx context.Context,
	b *baseStage,
	systemMessage, prompt string,
	finish func(*T) error,
) (*T, error) {
	settings := prompts.Settings(string(b.name))

	resp, err := b.llm.GenerateResponse(ctx, prompt, systemMessage, llm.GenerateOptions{
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	out, err := llm.ParseJSONResponse[T](resp.Content)
	if err != nil {
		b.logger.Warn("Stage returned malformed JSON",
			zap.String("response", logging.SanitizePayload(resp.Content)),
			zap.Error(err))
		return nil, &ParseError{Stage: b.name, Raw: resp.Content, Err: err}
	}

	if finish != nil {
		if err := finish(&out); err != nil {
			b.logger.Warn("Stage output failed validation",
				zap.String("response", logging.SanitizePayload(resp.Content)),
				zap.Error(err))
			return nil, &ParseError{Stage: b.name, Raw: resp.Content, Err: err}
		}
	}

	b.logger.Debug("Stage completed",
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens))

	return &out, nil
}
