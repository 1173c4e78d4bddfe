package predictor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockcast/backend-go/internal/domain"
)

type stubPredictor struct {
	payload *Payload
	err     error
	calls   int
}

func (s *stubPredictor) Predict(context.Context, Request) (*Payload, error) {
	s.calls++
	return s.payload, s.err
}

func TestWithFallbackPrimarySucceeds(t *testing.T) {
	want := &Payload{ModelVersion: "primary"}
	primary := &stubPredictor{payload: want}
	fallback := &stubPredictor{payload: &Payload{ModelVersion: "fallback"}}

	got, err := NewWithFallback(primary, fallback).Predict(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Zero(t, fallback.calls, "fallback must not run when the primary succeeds")
}

func TestWithFallbackRecoverableErrors(t *testing.T) {
	for _, primaryErr := range []error{domain.ErrPredictionUnavailable, domain.ErrRateLimited} {
		primary := &stubPredictor{err: primaryErr}
		fallback := &stubPredictor{payload: &Payload{ModelVersion: "fallback"}}

		got, err := NewWithFallback(primary, fallback).Predict(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, "fallback", got.ModelVersion)
		assert.Equal(t, 1, fallback.calls)
	}
}

func TestWithFallbackUnrecoverableErrorPassesThrough(t *testing.T) {
	boom := errors.New("connection reset")
	primary := &stubPredictor{err: boom}
	fallback := &stubPredictor{payload: &Payload{}}

	_, err := NewWithFallback(primary, fallback).Predict(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, fallback.calls, "fallback must not mask unexpected failures")
}

func TestWithFallbackBothFail(t *testing.T) {
	primary := &stubPredictor{err: domain.ErrRateLimited}
	fallback := &stubPredictor{err: domain.ErrPredictionUnavailable}

	_, err := NewWithFallback(primary, fallback).Predict(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited, "the primary's error stays in the chain")
}

type stubPlanner struct {
	plan  *DraftPlan
	err   error
	calls int
}

func (s *stubPlanner) PlanOrder(context.Context, DraftRequest) (*DraftPlan, error) {
	s.calls++
	return s.plan, s.err
}

func TestPlannerWithFallback(t *testing.T) {
	primary := &stubPlanner{err: domain.ErrPredictionUnavailable}
	fallback := &stubPlanner{plan: &DraftPlan{Reasoning: "heuristic"}}

	plan, err := NewPlannerWithFallback(primary, fallback).PlanOrder(context.Background(), DraftRequest{})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", plan.Reasoning)

	boom := errors.New("bad credentials")
	primary = &stubPlanner{err: boom}
	fallback = &stubPlanner{plan: &DraftPlan{}}
	_, err = NewPlannerWithFallback(primary, fallback).PlanOrder(context.Background(), DraftRequest{})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, fallback.calls)
}
