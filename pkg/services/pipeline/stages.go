package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/jsonutil"
	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/prompts"
)

// DiscoveryStage infers business context and clusters the intake tasks.
type DiscoveryStage struct {
	baseStage
}

func NewDiscoveryStage(client llm.LLMClient, logger *zap.Logger) *DiscoveryStage {
	return &DiscoveryStage{baseStage: newBaseStage(StageDiscovery, client, logger)}
}

func (s *DiscoveryStage) Execute(ctx context.Context, state *State) error {
	out, err := generate(ctx, &s.baseStage,
		prompts.DiscoverySystemMessage(),
		prompts.BuildDiscoveryPrompt(state.Input.promptContext()),
		func(d *models.DiscoveryResult) error {
			d.Normalize()
			return models.ValidateStruct(d)
		})
	if err != nil {
		return err
	}
	state.Discovery = out
	return nil
}

// ClassificationStage picks the service type.
type ClassificationStage struct {
	baseStage
}

func NewClassificationStage(client llm.LLMClient, logger *zap.Logger) *ClassificationStage {
	return &ClassificationStage{baseStage: newBaseStage(StageClassification, client, logger)}
}

// rawClassification tolerates loosely formatted service names and confidences.
type rawClassification struct {
	RecommendedService string                 `json:"recommended_service"`
	Confidence         json.RawMessage        `json:"confidence"`
	Reasoning          string                 `json:"reasoning"`
	DecisionFactors    models.DecisionFactors `json:"decision_factors"`
	AlternativeService string                 `json:"alternative_service"`
}

func (s *ClassificationStage) Execute(ctx context.Context, state *State) error {
	var result *models.ClassificationResult
	_, err := generate(ctx, &s.baseStage,
		prompts.ClassificationSystemMessage(),
		prompts.BuildClassificationPrompt(state.Input.promptContext(), state.Discovery),
		func(raw *rawClassification) error {
			service, err := models.ParseServiceType(raw.RecommendedService)
			if err != nil {
				return err
			}
			confidence, ok := jsonutil.FlexibleConfidence(raw.Confidence)
			if !ok {
				return fmt.Errorf("confidence missing or not numeric")
			}
			result = &models.ClassificationResult{
				RecommendedService: service,
				Confidence:         confidence,
				Reasoning:          raw.Reasoning,
				DecisionFactors:    raw.DecisionFactors,
				AlternativeService: raw.AlternativeService,
			}
			return models.ValidateStruct(result)
		})
	if err != nil {
		return err
	}

	s.logger.Info("Service classified",
		zap.String("service_type", string(result.RecommendedService)),
		zap.Int("confidence", result.Confidence))
	state.Classification = result
	return nil
}

// ArchitectureStage structures the engagement for the classified service type.
type ArchitectureStage struct {
	baseStage
}

func NewArchitectureStage(client llm.LLMClient, logger *zap.Logger) *ArchitectureStage {
	return &ArchitectureStage{baseStage: newBaseStage(StageArchitecture, client, logger)}
}

func (s *ArchitectureStage) Execute(ctx context.Context, state *State) error {
	service := state.Classification.RecommendedService
	out, err := generate(ctx, &s.baseStage,
		prompts.ArchitectureSystemMessage(),
		prompts.BuildArchitecturePrompt(state.Input.promptContext(), state.Discovery, state.Classification),
		func(a *models.ArchitectureResult) error {
			a.ServiceType = service
			return a.Validate()
		})
	if err != nil {
		return err
	}
	state.Architecture = out
	return nil
}

// SpecificationStage expands the architecture into a job description or project specs.
type SpecificationStage struct {
	baseStage
}

func NewSpecificationStage(client llm.LLMClient, logger *zap.Logger) *SpecificationStage {
	return &SpecificationStage{baseStage: newBaseStage(StageSpecification, client, logger)}
}

func (s *SpecificationStage) Execute(ctx context.Context, state *State) error {
	arch := state.Architecture
	out, err := generate(ctx, &s.baseStage,
		prompts.SpecificationSystemMessage(),
		prompts.BuildSpecificationPrompt(state.Input.promptContext(), state.Discovery,
			state.Classification, arch, state.Input.Refinement),
		func(spec *models.SpecificationResult) error {
			spec.ServiceType = arch.ServiceType
			if arch.ServiceType == models.ServiceTypeUnicornVA && len(spec.SupportAreas) == 0 {
				spec.SupportAreas = arch.SupportAreas
			}
			return spec.Validate()
		})
	if err != nil {
		return err
	}
	state.Specification = out
	return nil
}

// ValidationStage cross-checks the design. Its findings are advisory.
type ValidationStage struct {
	baseStage
}

func NewValidationStage(client llm.LLMClient, logger *zap.Logger) *ValidationStage {
	return &ValidationStage{baseStage: newBaseStage(StageValidation, client, logger)}
}

func (s *ValidationStage) Execute(ctx context.Context, state *State) error {
	out, err := generate(ctx, &s.baseStage,
		prompts.ValidationSystemMessage(),
		prompts.BuildValidationPrompt(state.Input.promptContext(), state.Discovery,
			state.Classification, state.Architecture, state.Specification),
		func(v *models.ValidationResult) error {
			v.Normalize()
			v.ConsistencyScore = jsonutil.ClampPercent(v.ConsistencyScore)
			return models.ValidateStruct(v)
		})
	if err != nil {
		return err
	}
	state.Validation = out
	return nil
}

// AssemblyStage merges stage outputs into the client-facing package. No LLM call.
type AssemblyStage struct {
	logger *zap.Logger
}

func NewAssemblyStage(logger *zap.Logger) *AssemblyStage {
	return &AssemblyStage{logger: logger.Named(string(StageAssembly))}
}

func (s *AssemblyStage) Name() StageName {
	return StageAssembly
}

func (s *AssemblyStage) Execute(ctx context.Context, state *State) error {
	pkg, preview := Assemble(state.Input.Intake, state.Discovery, state.Classification,
		state.Specification, state.Validation)
	state.Package = pkg
	state.Preview = preview
	return nil
}

var (
	_ Stage = (*DiscoveryStage)(nil)
	_ Stage = (*ClassificationStage)(nil)
	_ Stage = (*ArchitectureStage)(nil)
	_ Stage = (*SpecificationStage)(nil)
	_ Stage = (*ValidationStage)(nil)
	_ Stage = (*AssemblyStage)(nil)
)
