package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/models"
)

// Runner sequences the stages. Stages run strictly in order because each
// prompt embeds the previous outputs. There is no retry: the first failure
// ends the run.
type Runner struct {
	stages []Stage
	logger *zap.Logger
}

// NewRunner wires the six stages around one LLM client.
func NewRunner(client llm.LLMClient, logger *zap.Logger) *Runner {
	logger = logger.Named("pipeline")
	return NewRunnerWithStages(logger,
		NewDiscoveryStage(client, logger),
		NewClassificationStage(client, logger),
		NewArchitectureStage(client, logger),
		NewSpecificationStage(client, logger),
		NewValidationStage(client, logger),
		NewAssemblyStage(logger),
	)
}

// NewRunnerWithStages builds a runner over an explicit stage list.
func NewRunnerWithStages(logger *zap.Logger, stages ...Stage) *Runner {
	return &Runner{stages: stages, logger: logger}
}

// Run executes every stage. It returns either a result holding all stage
// outputs or an *AnalysisFailure.
func (r *Runner) Run(ctx context.Context, input Input, progress ProgressCallback) (*models.PipelineResult, error) {
	if input.Intake == nil {
		return nil, fmt.Errorf("intake is required")
	}
	state := &State{Input: input}
	if err := r.execute(ctx, state, r.stages, progress); err != nil {
		return nil, err
	}
	return state.Result(), nil
}

// Refine re-runs Specification through Assembly on a prior result with the
// client's feedback. Discovery, Classification and Architecture are reused.
func (r *Runner) Refine(ctx context.Context, input Input, prior *models.PipelineResult, progress ProgressCallback) (*models.PipelineResult, error) {
	if input.Intake == nil || prior == nil {
		return nil, fmt.Errorf("intake and prior result are required")
	}

	discovery := prior.Discovery
	classification := prior.Classification
	architecture := prior.Architecture
	state := &State{
		Input:          input,
		Discovery:      &discovery,
		Classification: &classification,
		Architecture:   &architecture,
	}

	var tail []Stage
	for i, s := range r.stages {
		if s.Name() == StageSpecification {
			tail = r.stages[i:]
			break
		}
	}
	if tail == nil {
		return nil, fmt.Errorf("runner has no %s stage", StageSpecification)
	}

	if err := r.execute(ctx, state, tail, progress); err != nil {
		return nil, err
	}
	return state.Result(), nil
}

func (r *Runner) execute(ctx context.Context, state *State, stages []Stage, progress ProgressCallback) error {
	total := len(stages)
	started := time.Now()

	for i, stage := range stages {
		name := stage.Name()
		if err := ctx.Err(); err != nil {
			return &AnalysisFailure{Stage: name, Kind: FailureContext, Err: err}
		}

		if progress != nil {
			progress(name, i, total, capitalize(name.Activity())+"...")
		}

		stageStart := time.Now()
		if err := stage.Execute(ctx, state); err != nil {
			failure := newFailure(name, err)
			r.logger.Error("Pipeline stage failed",
				zap.String("stage", string(name)),
				zap.String("kind", string(failure.Kind)),
				zap.String("llm_error_type", string(failure.LLMErrorType)),
				zap.Duration("elapsed", time.Since(stageStart)),
				zap.String("error", failure.Details()))
			return failure
		}

		r.logger.Debug("Pipeline stage completed",
			zap.String("stage", string(name)),
			zap.Duration("elapsed", time.Since(stageStart)))
	}

	if progress != nil {
		progress(StageAssembly, total, total, "Analysis complete")
	}
	r.logger.Info("Pipeline completed",
		zap.Int("stages", total),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
