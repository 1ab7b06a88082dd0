package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaforge/vaforge-engine/pkg/llm"
	"github.com/vaforge/vaforge-engine/pkg/logging"
)

// FailureKind says why a stage failed.
type FailureKind string

const (
	FailureLLM     FailureKind = "llm"
	FailureParse   FailureKind = "parse"
	FailureContext FailureKind = "context"
)

// ParseError is returned when a stage's LLM output is not valid JSON or does
// not satisfy the stage's schema.
type ParseError struct {
	Stage StageName
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: invalid model output: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// AnalysisFailure aborts a pipeline run. No partial result accompanies it.
type AnalysisFailure struct {
	Stage        StageName
	Kind         FailureKind
	LLMErrorType llm.ErrorType
	Err          error
}

func (f *AnalysisFailure) Error() string {
	return fmt.Sprintf("analysis failed at %s (%s): %v", f.Stage, f.Kind, f.Err)
}

func (f *AnalysisFailure) Unwrap() error {
	return f.Err
}

// Details is a sanitized, loggable description of the failure.
func (f *AnalysisFailure) Details() string {
	return logging.SanitizeError(f.Err)
}

// UserMessage returns text suitable for showing to the end user.
func (f *AnalysisFailure) UserMessage() string {
	switch f.Kind {
	case FailureLLM:
		return f.LLMErrorType.UserMessage()
	case FailureParse:
		return "The AI returned an incomplete answer while " + f.Stage.Activity() + ". Please try again."
	case FailureContext:
		return "The analysis was cancelled before it finished."
	}
	return llm.ErrorTypeUnknown.UserMessage()
}

// newFailure classifies err raised by stage.
func newFailure(stage StageName, err error) *AnalysisFailure {
	var existing *AnalysisFailure
	if errors.As(err, &existing) {
		return existing
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return &AnalysisFailure{Stage: stage, Kind: FailureParse, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AnalysisFailure{Stage: stage, Kind: FailureContext, Err: err}
	}

	classified := llm.ClassifyError(err)
	return &AnalysisFailure{
		Stage:        stage,
		Kind:         FailureLLM,
		LLMErrorType: classified.Type,
		Err:          classified,
	}
}
