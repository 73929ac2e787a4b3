package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/pkg/logger"
)

// DefaultMaxRetries bounds regenerations after the first attempt.
const DefaultMaxRetries = 3

// Collaborators are the services the pipeline coordinates. Generator and
// WebSearcher may be nil.
type Collaborators struct {
	Classifier      Classifier
	Retriever       Retriever
	RelevanceGrader RelevanceGrader
	Generator       Generator
	GroundingGrader GroundingGrader
	WebSearcher     WebSearcher
}

// Config bounds one pipeline run.
type Config struct {
	// MaxRetries is the number of regenerations allowed after the first
	// attempt when the answer is not grounded.
	MaxRetries int
	RetrievalK int
}

// DefaultConfig returns the default pipeline limits.
func DefaultConfig() Config {
	return Config{MaxRetries: DefaultMaxRetries, RetrievalK: DefaultRetrievalK}
}

// Orchestrator answers questions by driving the pipeline state machine. It
// holds no per-question state and is safe for concurrent use.
type Orchestrator struct {
	nodes *graphNodes
	cfg   Config
}

// graphNodes implements the enter-state handlers of the state machine.
type graphNodes struct {
	router    *Router
	retriever *RetrieverAdapter
	filter    *RelevanceFilter
	web       *WebSearchFallback
	generator *GenerationStage
	validator *GroundingValidator
}

// New wires collaborators into an Orchestrator.
func New(collab Collaborators, cfg Config) (*Orchestrator, error) {
	missing := make([]string, 0, 4)
	if collab.Classifier == nil {
		missing = append(missing, "classifier")
	}
	if collab.Retriever == nil {
		missing = append(missing, "retriever")
	}
	if collab.RelevanceGrader == nil {
		missing = append(missing, "relevance grader")
	}
	if collab.GroundingGrader == nil {
		missing = append(missing, "grounding grader")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingCollaborator, missing)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0: got %d", cfg.MaxRetries)
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = DefaultRetrievalK
	}
	return &Orchestrator{
		cfg: cfg,
		nodes: &graphNodes{
			router:    NewRouter(collab.Classifier),
			retriever: NewRetrieverAdapter(collab.Retriever),
			filter:    NewRelevanceFilter(collab.RelevanceGrader),
			web:       NewWebSearchFallback(collab.WebSearcher),
			generator: NewGenerationStage(collab.Generator),
			validator: NewGroundingValidator(collab.GroundingGrader),
		},
	}, nil
}

// Config returns the limits the orchestrator runs with.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Process answers question. The state is always returned; the error is a
// *Error of kind GenerationFailure when no answer could be produced.
func (o *Orchestrator) Process(ctx context.Context, question string) (*State, error) {
	state := NewState(question)
	log := logger.FromContext(ctx).With("run_id", state.RunID)
	ctx = logger.ContextWithLogger(ctx, log)
	started := time.Now()
	pc := &pipelineContext{
		State:      state,
		MaxRetries: o.cfg.MaxRetries,
		RetrievalK: o.cfg.RetrievalK,
	}
	log.Info("Processing question", "question_length", len(question))
	machine := newPipelineFSM(ctx, o.nodes)
	start := o.nodes.route(ctx, pc)
	if err := machine.Event(ctx, start.Event, pc); err != nil && pc.err == nil {
		pc.err = err
	}
	current := machine.Current()
	recordOutcome(ctx, current, state, time.Since(started))
	switch current {
	case StateDone:
		log.Info("Question answered",
			"route", state.Route,
			"web_search", state.WebSearch,
			"tries", state.Tries,
			"grounded", state.Grounded,
			"low_confidence", state.LowConfidence,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return state, nil
	case StateFailed:
		if state.Err == nil {
			state.Err = &Error{Kind: GenerationFailure, Err: pc.err}
		}
		log.Error("Question failed", "error", core.RedactError(state.Err), "tries", state.Tries)
		return state, state.Err
	default:
		err := pc.err
		if err == nil {
			err = fmt.Errorf("pipeline finished in unexpected state %s", current)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		state.Err = err
		return state, err
	}
}

func (n *graphNodes) route(ctx context.Context, pc *pipelineContext) transitionResult {
	result := n.router.Route(ctx, pc.State.Question)
	pc.State.Route = result.Route
	pc.State.recordFailure(result.Failure)
	recordRoute(ctx, result.Route)
	if result.Route == RouteWebSearch {
		pc.State.WebSearch = true
		return transitionResult{Event: EventRouteWebSearch}
	}
	return transitionResult{Event: EventRouteKnowledgeBase}
}

func (n *graphNodes) OnEnterRetrieve(ctx context.Context, pc *pipelineContext) transitionResult {
	result := n.retriever.Retrieve(ctx, pc.State.Question, pc.RetrievalK)
	pc.State.Documents = result.Documents
	pc.State.Retrieved = true
	pc.State.recordFailure(result.Failure)
	return transitionResult{Event: EventRetrieved}
}

func (n *graphNodes) OnEnterGradeDocuments(ctx context.Context, pc *pipelineContext) transitionResult {
	result := n.filter.Filter(ctx, pc.State.Question, pc.State.Documents)
	pc.State.Documents = result.Documents
	for i := range result.Failures {
		pc.State.recordFailure(&result.Failures[i])
	}
	if result.AnyIrrelevant {
		pc.State.WebSearch = true
	}
	if pc.State.WebSearch {
		return transitionResult{Event: EventDocumentsIrrelevant}
	}
	return transitionResult{Event: EventDocumentsRelevant}
}

func (n *graphNodes) OnEnterWebSearch(ctx context.Context, pc *pipelineContext) transitionResult {
	result := n.web.Augment(ctx, pc.State.Question, pc.State.Documents)
	pc.State.Documents = result.Documents
	pc.State.WebSearch = true
	if result.Failure != nil {
		pc.State.EvidenceGap = true
		pc.State.recordFailure(result.Failure)
	}
	return transitionResult{Event: EventAugmented}
}

func (n *graphNodes) OnEnterGenerate(ctx context.Context, pc *pipelineContext) transitionResult {
	state := pc.State
	result := n.generator.Generate(ctx, state.Question, state.Documents, state.Tries, state.EvidenceGap)
	state.Tries = result.Tries
	if result.Failure != nil && result.Failure.Kind.Fatal() {
		state.recordFailure(result.Failure)
		state.Generation = ""
		state.Err = &Error{Kind: GenerationFailure, Err: result.Failure.Err}
		return transitionResult{Event: EventGenerationFailed, Err: state.Err}
	}
	state.Generation = result.Generation
	if result.Failure != nil {
		state.recordFailure(result.Failure)
		return transitionResult{Event: EventGenerationSkipped}
	}
	return transitionResult{Event: EventGenerated}
}

func (n *graphNodes) OnEnterGradeGeneration(ctx context.Context, pc *pipelineContext) transitionResult {
	state := pc.State
	result := n.validator.Validate(ctx, state.Documents, state.Generation)
	state.recordFailure(result.Failure)
	state.Grounded = result.Verdict == Grounded
	if state.Grounded {
		return transitionResult{Event: EventGrounded}
	}
	if state.Tries <= pc.MaxRetries {
		logger.FromContext(ctx).Info("Answer not grounded, regenerating",
			"tries", state.Tries,
			"max_retries", pc.MaxRetries,
		)
		return transitionResult{Event: EventNotGrounded}
	}
	logger.FromContext(ctx).Warn("Retry budget exhausted, returning low-confidence answer",
		"tries", state.Tries,
	)
	state.LowConfidence = true
	state.Generation = LowConfidenceMarker + state.Generation
	return transitionResult{Event: EventRetriesExhausted}
}

func (n *graphNodes) OnEnterDone(_ context.Context, _ *pipelineContext) transitionResult {
	return transitionResult{}
}

func (n *graphNodes) OnEnterFailed(_ context.Context, _ *pipelineContext) transitionResult {
	return transitionResult{}
}
