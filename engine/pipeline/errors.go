package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/compozy/arag/engine/core"
)

// FailureKind tags a collaborator failure observed at a node boundary.
type FailureKind string

const (
	ClassificationFailure  FailureKind = "classification_failure"
	RetrievalFailure       FailureKind = "retrieval_failure"
	GradingFailure         FailureKind = "grading_failure"
	WebSearchUnavailable   FailureKind = "web_search_unavailable"
	GenerationUnconfigured FailureKind = "generation_unconfigured"
	GenerationFailure      FailureKind = "generation_failure"
	GroundingFailure       FailureKind = "grounding_failure"
)

// Fatal reports whether the kind terminates the pipeline.
func (k FailureKind) Fatal() bool {
	return k == GenerationFailure
}

// ErrGenerationUnconfigured is returned by a Generator that has no model
// credentials or configuration. The pipeline answers with a fallback text.
var ErrGenerationUnconfigured = errors.New("generation is not configured")

// ErrEmptyGeneration is reported as a GenerationFailure when a Generator
// returns no text.
var ErrEmptyGeneration = errors.New("generator returned an empty answer")

// ErrMissingCollaborator is returned by New when a required collaborator is nil.
var ErrMissingCollaborator = errors.New("missing pipeline collaborator")

// Failure records one recovered or fatal condition.
type Failure struct {
	Kind  FailureKind
	Stage string
	Err   error
}

func newFailure(kind FailureKind, stage string, err error) *Failure {
	return &Failure{Kind: kind, Stage: stage, Err: err}
}

func (f Failure) Message() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return core.RedactError(f.Err)
}

func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"kind":    string(f.Kind),
		"stage":   f.Stage,
		"message": f.Message(),
	})
}

// Error is the error surfaced to callers when a question cannot be answered.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsGenerationFailure reports whether err is a fatal generation error.
func IsGenerationFailure(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == GenerationFailure
}
