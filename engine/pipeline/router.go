package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/pkg/logger"
)

// Router picks the evidence source for a question.
type Router struct {
	classifier Classifier
}

// RouteResult carries the chosen route and, when the classifier could not be
// used, the recovered failure.
type RouteResult struct {
	Route   Route
	Failure *Failure
}

func NewRouter(classifier Classifier) *Router {
	return &Router{classifier: classifier}
}

// Route classifies question. It fails closed to the knowledge base.
func (r *Router) Route(ctx context.Context, question string) RouteResult {
	if strings.TrimSpace(question) == "" {
		return RouteResult{Route: RouteKnowledgeBase}
	}
	route, err := r.classifier.Classify(ctx, question)
	if err == nil && !route.Valid() {
		err = fmt.Errorf("classifier returned unknown route %q", route)
	}
	if err != nil {
		logger.FromContext(ctx).Warn(
			"Question classification failed, routing to knowledge base",
			"error", core.RedactError(err),
		)
		return RouteResult{
			Route:   RouteKnowledgeBase,
			Failure: newFailure(ClassificationFailure, StateRoute, err),
		}
	}
	return RouteResult{Route: route}
}
