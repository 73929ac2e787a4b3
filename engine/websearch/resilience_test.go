package websearch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	gerrors "github.com/slok/goresilience/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/arag/engine/pipeline"
)

type stubSearcher struct {
	calls atomic.Int32
	hits  []pipeline.SearchHit
	err   error
	delay time.Duration
}

func (s *stubSearcher) Search(_ context.Context, _ string) ([]pipeline.SearchHit, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func TestResilientSearcher(t *testing.T) {
	t.Run("Should pass results through", func(t *testing.T) {
		inner := &stubSearcher{hits: []pipeline.SearchHit{{Content: "x"}}}
		r := NewResilientSearcher(inner, nil)
		hits, err := r.Search(context.Background(), "q")
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("Should open the circuit after repeated failures", func(t *testing.T) {
		inner := &stubSearcher{err: errors.New("backend down")}
		r := NewResilientSearcher(inner, &ResilienceConfig{
			TimeoutDuration:             time.Second,
			ErrorPercentThresholdToOpen: 50,
			MinimumRequestToOpen:        2,
			WaitDurationInOpenState:     time.Minute,
		})
		for range 2 {
			_, err := r.Search(context.Background(), "q")
			require.Error(t, err)
		}
		for range 3 {
			_, err := r.Search(context.Background(), "q")
			require.ErrorIs(t, err, gerrors.ErrCircuitOpen)
		}
		assert.Equal(t, int32(2), inner.calls.Load())
	})

	t.Run("Should time out slow backends", func(t *testing.T) {
		inner := &stubSearcher{delay: 500 * time.Millisecond}
		r := NewResilientSearcher(inner, &ResilienceConfig{
			TimeoutDuration:             50 * time.Millisecond,
			ErrorPercentThresholdToOpen: 50,
			MinimumRequestToOpen:        10,
			WaitDurationInOpenState:     time.Second,
		})
		_, err := r.Search(context.Background(), "q")
		require.ErrorIs(t, err, gerrors.ErrTimeout)
		assert.Equal(t, "timeout", searchStatus(err))
	})

	t.Run("Should report a missing searcher as unconfigured", func(t *testing.T) {
		r := NewResilientSearcher(nil, nil)
		_, err := r.Search(context.Background(), "q")
		require.ErrorIs(t, err, ErrUnconfigured)
	})
}
