package pipeline

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/pkg/logger"
)

const (
	StateRoute           = "route"
	StateRetrieve        = "retrieve"
	StateGradeDocuments  = "grade_documents"
	StateGenerate        = "generate"
	StateGradeGeneration = "grade_generation"
	StateWebSearch       = "websearch"
	StateDone            = "done"
	StateFailed          = "failed"
)

const (
	EventRouteKnowledgeBase  = "route_knowledge_base"
	EventRouteWebSearch      = "route_web_search"
	EventRetrieved           = "retrieved"
	EventDocumentsRelevant   = "documents_relevant"
	EventDocumentsIrrelevant = "documents_irrelevant"
	EventAugmented           = "augmented"
	EventGenerated           = "generated"
	EventGenerationSkipped   = "generation_skipped"
	EventGenerationFailed    = "generation_failed"
	EventGrounded            = "grounded"
	EventNotGrounded         = "not_grounded"
	EventRetriesExhausted    = "retries_exhausted"
)

type pipelineDeps interface {
	OnEnterRetrieve(ctx context.Context, pc *pipelineContext) transitionResult
	OnEnterGradeDocuments(ctx context.Context, pc *pipelineContext) transitionResult
	OnEnterWebSearch(ctx context.Context, pc *pipelineContext) transitionResult
	OnEnterGenerate(ctx context.Context, pc *pipelineContext) transitionResult
	OnEnterGradeGeneration(ctx context.Context, pc *pipelineContext) transitionResult
	OnEnterDone(ctx context.Context, pc *pipelineContext) transitionResult
	OnEnterFailed(ctx context.Context, pc *pipelineContext) transitionResult
}

type transitionResult struct {
	Event string
	Args  []any
	Err   error
}

// pipelineContext is passed as the first event argument on every transition.
type pipelineContext struct {
	State      *State
	MaxRetries int
	RetrievalK int
	err        error

	transitionStarted time.Time
}

func newPipelineFSM(ctx context.Context, deps pipelineDeps) *fsm.FSM {
	observer := newTransitionObserver(ctx)
	return fsm.NewFSM(StateRoute, pipelineEvents(), pipelineCallbacks(observer, deps))
}

func pipelineEvents() fsm.Events {
	return fsm.Events{
		{Name: EventRouteKnowledgeBase, Src: []string{StateRoute}, Dst: StateRetrieve},
		{Name: EventRouteWebSearch, Src: []string{StateRoute}, Dst: StateWebSearch},
		{Name: EventRetrieved, Src: []string{StateRetrieve}, Dst: StateGradeDocuments},
		{Name: EventDocumentsRelevant, Src: []string{StateGradeDocuments}, Dst: StateGenerate},
		{Name: EventDocumentsIrrelevant, Src: []string{StateGradeDocuments}, Dst: StateWebSearch},
		{Name: EventAugmented, Src: []string{StateWebSearch}, Dst: StateGenerate},
		{Name: EventGenerated, Src: []string{StateGenerate}, Dst: StateGradeGeneration},
		{Name: EventGenerationSkipped, Src: []string{StateGenerate}, Dst: StateDone},
		{Name: EventGenerationFailed, Src: []string{StateGenerate}, Dst: StateFailed},
		{Name: EventGrounded, Src: []string{StateGradeGeneration}, Dst: StateDone},
		{Name: EventNotGrounded, Src: []string{StateGradeGeneration}, Dst: StateGenerate},
		{Name: EventRetriesExhausted, Src: []string{StateGradeGeneration}, Dst: StateDone},
	}
}

func pipelineCallbacks(observer *transitionObserver, deps pipelineDeps) fsm.Callbacks {
	callbacks := fsm.Callbacks{
		"before_event": func(cbCtx context.Context, e *fsm.Event) { observer.BeforeEvent(cbCtx, e) },
		"after_event":  func(cbCtx context.Context, e *fsm.Event) { observer.AfterEvent(cbCtx, e) },
	}
	register := func(state string, handler func(pipelineDeps, context.Context, *pipelineContext) transitionResult) {
		callbacks["enter_"+state] = makeEnterCallback(observer, deps, handler)
	}
	register(StateRetrieve, func(d pipelineDeps, cbCtx context.Context, pc *pipelineContext) transitionResult {
		return d.OnEnterRetrieve(cbCtx, pc)
	})
	register(StateGradeDocuments, func(d pipelineDeps, cbCtx context.Context, pc *pipelineContext) transitionResult {
		return d.OnEnterGradeDocuments(cbCtx, pc)
	})
	register(StateWebSearch, func(d pipelineDeps, cbCtx context.Context, pc *pipelineContext) transitionResult {
		return d.OnEnterWebSearch(cbCtx, pc)
	})
	register(StateGenerate, func(d pipelineDeps, cbCtx context.Context, pc *pipelineContext) transitionResult {
		return d.OnEnterGenerate(cbCtx, pc)
	})
	register(StateGradeGeneration, func(d pipelineDeps, cbCtx context.Context, pc *pipelineContext) transitionResult {
		return d.OnEnterGradeGeneration(cbCtx, pc)
	})
	register(StateDone, func(d pipelineDeps, cbCtx context.Context, pc *pipelineContext) transitionResult {
		return d.OnEnterDone(cbCtx, pc)
	})
	register(StateFailed, func(d pipelineDeps, cbCtx context.Context, pc *pipelineContext) transitionResult {
		return d.OnEnterFailed(cbCtx, pc)
	})
	return callbacks
}

func makeEnterCallback(
	observer *transitionObserver,
	deps pipelineDeps,
	handler func(pipelineDeps, context.Context, *pipelineContext) transitionResult,
) fsm.Callback {
	return func(cbCtx context.Context, e *fsm.Event) {
		callCtx := observer.resolveContext(cbCtx)
		pc := pipelineContextFromEvent(callCtx, e)
		if deps == nil {
			return
		}
		applyTransitionResult(callCtx, observer, e, handler(deps, callCtx, pc))
	}
}

// applyTransitionResult fires the next event from inside an enter callback.
// The library releases its event lock before enter callbacks run.
func applyTransitionResult(ctx context.Context, observer *transitionObserver, e *fsm.Event, result transitionResult) {
	if result.Event == "" && result.Err == nil {
		return
	}
	resolvedCtx := observer.resolveContext(ctx)
	pc := pipelineContextFromEvent(resolvedCtx, e)
	if result.Err != nil {
		pc.err = result.Err
	}
	if result.Event == "" {
		return
	}
	args := append([]any{pc}, result.Args...)
	if err := e.FSM.Event(resolvedCtx, result.Event, args...); err != nil && pc.err == nil {
		pc.err = err
	}
}

type transitionObserver struct {
	now     func() time.Time
	baseCtx context.Context
}

func newTransitionObserver(ctx context.Context) *transitionObserver {
	return &transitionObserver{now: time.Now, baseCtx: ctx}
}

func (o *transitionObserver) resolveContext(cbCtx context.Context) context.Context {
	if cbCtx != nil {
		return cbCtx
	}
	if o != nil && o.baseCtx != nil {
		return o.baseCtx
	}
	return context.TODO()
}

func (o *transitionObserver) BeforeEvent(cbCtx context.Context, e *fsm.Event) {
	resolvedCtx := o.resolveContext(cbCtx)
	pc := pipelineContextFromEvent(resolvedCtx, e)
	pc.transitionStarted = o.now()
	logger.FromContext(resolvedCtx).Debug(
		"Pipeline FSM transition start",
		"event", e.Event,
		"from_state", e.Src,
		"to_state", e.Dst,
		"tries", pc.State.Tries,
	)
}

func (o *transitionObserver) AfterEvent(cbCtx context.Context, e *fsm.Event) {
	resolvedCtx := o.resolveContext(cbCtx)
	pc := pipelineContextFromEvent(resolvedCtx, e)
	fields := []any{"event", e.Event, "from_state", e.Src, "to_state", e.Dst}
	if !pc.transitionStarted.IsZero() {
		fields = append(fields, "duration_ms", o.now().Sub(pc.transitionStarted).Milliseconds())
	}
	if pc.err != nil {
		fields = append(fields, "error", core.RedactError(pc.err))
	}
	logger.FromContext(resolvedCtx).Debug("Pipeline FSM transition complete", fields...)
}

func pipelineContextFromEvent(ctx context.Context, e *fsm.Event) *pipelineContext {
	if e != nil && len(e.Args) > 0 {
		if pc, ok := e.Args[0].(*pipelineContext); ok && pc != nil {
			return pc
		}
	}
	logger.FromContext(ctx).Error("Pipeline FSM context missing", "event", eventName(e))
	return &pipelineContext{State: NewState("")}
}

func eventName(e *fsm.Event) string {
	if e == nil {
		return ""
	}
	return e.Event
}
