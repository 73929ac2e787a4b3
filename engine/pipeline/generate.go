package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/pkg/logger"
)

// GenerationFallbackText is the answer returned when no generator is configured.
const GenerationFallbackText = "[generation unavailable] Generation is not configured. " +
	"Set GOOGLE_API_KEY (or configure llm.provider and llm.api_key) to enable answer generation."

// GenerationStage produces a candidate answer and counts attempts.
type GenerationStage struct {
	generator Generator
}

type GenerateResult struct {
	Generation string
	Tries      int
	// Failure is GenerationUnconfigured (recovered) or GenerationFailure (fatal).
	Failure *Failure
}

// NewGenerationStage accepts a nil generator, which behaves as unconfigured.
func NewGenerationStage(generator Generator) *GenerationStage {
	return &GenerationStage{generator: generator}
}

// Generate makes one attempt. tries is the number of attempts made so far.
func (g *GenerationStage) Generate(
	ctx context.Context,
	question string,
	docs []Document,
	tries int,
	evidenceGap bool,
) GenerateResult {
	attempt := tries + 1
	recordGenerationAttempt(ctx, attempt)
	if g.generator == nil {
		return unconfiguredResult(ctx, attempt, ErrGenerationUnconfigured)
	}
	generation, err := g.generator.Generate(ctx, GenerationRequest{
		Question:    question,
		Documents:   cloneDocuments(docs),
		Attempt:     attempt,
		EvidenceGap: evidenceGap,
	})
	switch {
	case errors.Is(err, ErrGenerationUnconfigured):
		return unconfiguredResult(ctx, attempt, err)
	case err == nil && strings.TrimSpace(generation) == "":
		err = ErrEmptyGeneration
		fallthrough
	case err != nil:
		logger.FromContext(ctx).Error("Answer generation failed",
			"attempt", attempt,
			"error", core.RedactError(err),
		)
		return GenerateResult{
			Tries:   attempt,
			Failure: newFailure(GenerationFailure, StateGenerate, err),
		}
	}
	logger.FromContext(ctx).Debug("Answer generated", "attempt", attempt, "length", len(generation))
	return GenerateResult{Generation: generation, Tries: attempt}
}

func unconfiguredResult(ctx context.Context, attempt int, err error) GenerateResult {
	logger.FromContext(ctx).Warn("Generation is not configured, returning fallback text")
	return GenerateResult{
		Generation: GenerationFallbackText,
		Tries:      attempt,
		Failure:    newFailure(GenerationUnconfigured, StateGenerate, err),
	}
}
