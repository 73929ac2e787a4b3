package pipeline

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/compozy/arag/engine/core"
)

// Route is the evidence source chosen for a question.
type Route string

const (
	RouteKnowledgeBase Route = "knowledge_base"
	RouteWebSearch     Route = "web_search"
)

func (r Route) Valid() bool {
	return r == RouteKnowledgeBase || r == RouteWebSearch
}

// LowConfidenceMarker prefixes answers whose grounding could not be confirmed
// within the retry budget.
const LowConfidenceMarker = "[LOW CONFIDENCE: this answer could not be verified against the retrieved evidence] "

// State is the record threaded through the pipeline for one question.
// It is owned by a single Process call.
type State struct {
	RunID    string
	Question string
	Route    Route
	// WebSearch is true when evidence was or will be augmented by web search.
	WebSearch bool
	// Documents is never nil. Retrieved distinguishes an empty result from
	// "not yet retrieved".
	Documents     []Document
	Retrieved     bool
	Generation    string
	Tries         int
	Grounded      bool
	LowConfidence bool
	// EvidenceGap is set when web augmentation was warranted but unavailable.
	EvidenceGap bool
	Failures    []Failure
	Err         error
}

// NewState creates the state for a single question.
func NewState(question string) *State {
	return &State{
		RunID:     uuid.NewString(),
		Question:  question,
		Route:     RouteKnowledgeBase,
		Documents: []Document{},
		Failures:  []Failure{},
	}
}

func (s *State) recordFailure(f *Failure) {
	if f == nil {
		return
	}
	s.Failures = append(s.Failures, *f)
}

// HasFailure reports whether a failure of the given kind was recorded.
func (s *State) HasFailure(kind FailureKind) bool {
	for _, f := range s.Failures {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// Audit returns the fields reported alongside a failed run.
func (s *State) Audit() map[string]any {
	return map[string]any{
		"run_id":     s.RunID,
		"route":      string(s.Route),
		"web_search": s.WebSearch,
		"tries":      s.Tries,
	}
}

// Sources lists the distinct sources of the final evidence.
func (s *State) Sources() []string {
	return Sources(s.Documents)
}

type stateJSON struct {
	RunID         string     `json:"run_id"`
	Question      string     `json:"question"`
	Route         Route      `json:"route"`
	WebSearch     bool       `json:"web_search"`
	Documents     []Document `json:"documents"`
	Generation    string     `json:"generation"`
	Tries         int        `json:"tries"`
	Grounded      bool       `json:"grounded"`
	LowConfidence bool       `json:"low_confidence"`
	EvidenceGap   bool       `json:"evidence_gap"`
	Failures      []Failure  `json:"failures"`
	Error         string     `json:"error,omitempty"`
}

func (s *State) MarshalJSON() ([]byte, error) {
	docs := s.Documents
	if docs == nil {
		docs = []Document{}
	}
	failures := s.Failures
	if failures == nil {
		failures = []Failure{}
	}
	return json.Marshal(stateJSON{
		RunID:         s.RunID,
		Question:      s.Question,
		Route:         s.Route,
		WebSearch:     s.WebSearch,
		Documents:     docs,
		Generation:    s.Generation,
		Tries:         s.Tries,
		Grounded:      s.Grounded,
		LowConfidence: s.LowConfidence,
		EvidenceGap:   s.EvidenceGap,
		Failures:      failures,
		Error:         core.RedactError(s.Err),
	})
}
