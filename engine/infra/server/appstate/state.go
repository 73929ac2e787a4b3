package appstate

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/compozy/arag/engine/pipeline"
)

type contextKey string

const (
	stateKey contextKey = "app_state"
)

// Answerer runs one question through the pipeline.
type Answerer interface {
	Process(ctx context.Context, question string) (*pipeline.State, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type State struct {
	Answerer Answerer
	Version  string
	mu       sync.RWMutex
	checks   map[string]HealthCheck
}

func NewState(answerer Answerer, version string) (*State, error) {
	if answerer == nil {
		return nil, fmt.Errorf("answerer is required")
	}
	return &State{
		Answerer: answerer,
		Version:  version,
		checks:   make(map[string]HealthCheck),
	}, nil
}

// AddHealthCheck registers a dependency check reported by the health endpoint.
func (s *State) AddHealthCheck(name string, check HealthCheck) {
	if check == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// HealthChecks returns a copy of the registered checks.
func (s *State) HealthChecks() map[string]HealthCheck {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.checks)
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok {
		return nil, fmt.Errorf("app state not found in context")
	}
	return state, nil
}

func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithState(c.Request.Context(), state)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
