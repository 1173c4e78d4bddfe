package predictor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stockcast/backend-go/internal/domain"
)

// WithFallback decorates a primary predictor with a fallback tried once when
// the primary signals PredictionUnavailable or a rate limit. Other errors
// pass through untouched.
type WithFallback struct {
	primary  Predictor
	fallback Predictor
}

func NewWithFallback(primary, fallback Predictor) *WithFallback {
	return &WithFallback{primary: primary, fallback: fallback}
}

func (w *WithFallback) Predict(ctx context.Context, req Request) (*Payload, error) {
	payload, err := w.primary.Predict(ctx, req)
	if err == nil {
		return payload, nil
	}
	if !errors.Is(err, domain.ErrPredictionUnavailable) && !errors.Is(err, domain.ErrRateLimited) {
		return nil, err
	}

	log.Warn().Err(err).Str("sku", req.SKU).Int("horizon_days", req.HorizonDays).
		Msg("primary predictor failed, falling back")

	payload, fbErr := w.fallback.Predict(ctx, req)
	if fbErr != nil {
		return nil, fmt.Errorf("fallback also failed (%v) after primary: %w", fbErr, err)
	}

	return payload, nil
}

// PlannerWithFallback is the drafting counterpart of WithFallback.
type PlannerWithFallback struct {
	primary  DraftPlanner
	fallback DraftPlanner
}

func NewPlannerWithFallback(primary, fallback DraftPlanner) *PlannerWithFallback {
	return &PlannerWithFallback{primary: primary, fallback: fallback}
}

func (w *PlannerWithFallback) PlanOrder(ctx context.Context, req DraftRequest) (*DraftPlan, error) {
	plan, err := w.primary.PlanOrder(ctx, req)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, domain.ErrPredictionUnavailable) && !errors.Is(err, domain.ErrRateLimited) {
		return nil, err
	}

	log.Warn().Err(err).Int64("supplier_id", req.Supplier.ID).Msg("primary planner failed, falling back")

	plan, fbErr := w.fallback.PlanOrder(ctx, req)
	if fbErr != nil {
		return nil, fmt.Errorf("fallback also failed (%v) after primary: %w", fbErr, err)
	}

	return plan, nil
}
