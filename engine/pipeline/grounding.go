package pipeline

import (
	"context"
	"strings"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/pkg/logger"
)

// Verdict is the outcome of a grounding check.
type Verdict string

const (
	Grounded    Verdict = "grounded"
	NotGrounded Verdict = "not_grounded"
)

// GroundingValidator checks that an answer is supported by the evidence.
type GroundingValidator struct {
	grader GroundingGrader
}

type ValidateResult struct {
	Verdict Verdict
	Failure *Failure
}

func NewGroundingValidator(grader GroundingGrader) *GroundingValidator {
	return &GroundingValidator{grader: grader}
}

// Validate fails closed: no documents, an empty generation or a grader error
// all yield NotGrounded.
func (v *GroundingValidator) Validate(ctx context.Context, docs []Document, generation string) ValidateResult {
	if len(docs) == 0 || strings.TrimSpace(generation) == "" {
		return ValidateResult{Verdict: NotGrounded}
	}
	grounded, err := v.grader.GradeGrounding(ctx, cloneDocuments(docs), generation)
	if err != nil {
		logger.FromContext(ctx).Warn("Grounding check failed, treating answer as not grounded",
			"error", core.RedactError(err),
		)
		return ValidateResult{
			Verdict: NotGrounded,
			Failure: newFailure(GroundingFailure, StateGradeGeneration, err),
		}
	}
	if grounded {
		return ValidateResult{Verdict: Grounded}
	}
	return ValidateResult{Verdict: NotGrounded}
}
