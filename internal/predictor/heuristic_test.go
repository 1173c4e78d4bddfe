package predictor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockcast/backend-go/internal/domain"
)

func heuristicRequest(horizon int) Request {
	return Request{
		SKU:          "NV-SER-001",
		ProductName:  "Renewal Serum",
		Brand:        "nordvik",
		Category:     "beauty",
		UnitPrice:    42.0,
		HorizonDays:  horizon,
		CurrentStock: 40,
		SafetyStock:  10,
		Now:          time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestHeuristicPredictIsDeterministic(t *testing.T) {
	h := NewHeuristic(42)
	req := heuristicRequest(30)

	first, err := h.Predict(context.Background(), req)
	require.NoError(t, err)
	second, err := h.Predict(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same instance, same request")

	other, err := NewHeuristic(42).Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, other, "fresh instance with the same seed")
}

func TestHeuristicPredictPayloadContract(t *testing.T) {
	for _, horizon := range []int{30, 60, 90} {
		payload, err := NewHeuristic(1).Predict(context.Background(), heuristicRequest(horizon))
		require.NoError(t, err)

		require.Len(t, payload.Predictions, horizon)

		var sum float64
		for i, p := range payload.Predictions {
			assert.GreaterOrEqual(t, p.PredictedQty, 0.0, "day %d", i)
			assert.LessOrEqual(t, p.ConfidenceLower, p.PredictedQty, "day %d", i)
			assert.GreaterOrEqual(t, p.ConfidenceUpper, p.PredictedQty, "day %d", i)
			sum += p.PredictedQty
		}

		assert.InDelta(t, sum, payload.Summary.TotalPredicted, 0.1)
		assert.InDelta(t, sum/float64(horizon), payload.Summary.DailyAverage, 0.1)
		assert.Contains(t, []string{"increasing", "stable", "decreasing"}, payload.Summary.Trend)
		assert.Contains(t, []string{"critical", "high", "medium", "low"}, payload.RiskLevel)
		assert.Equal(t, heuristicModelVersion, payload.ModelVersion)
		assert.NotEmpty(t, payload.Explanation)
	}
}

func TestHeuristicPredictRejectsUnknownHorizon(t *testing.T) {
	_, err := NewHeuristic(1).Predict(context.Background(), heuristicRequest(45))
	assert.ErrorIs(t, err, domain.ErrPredictionUnavailable)
}

func TestRiskLevelThresholds(t *testing.T) {
	params := horizons[30]

	tests := []struct {
		name   string
		stock  float64
		demand float64
		want   string
	}{
		{"deep shortfall", 20, 100, "critical"},
		{"at critical boundary", 50, 100, "high"},
		{"at high boundary", 90, 100, "medium"},
		{"at medium boundary", 120, 100, "low"},
		{"comfortable cover", 150, 100, "low"},
		{"zero demand clamps ratio", 150, 0, "low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, riskLevel(tt.stock, tt.demand, params))
		})
	}
}

func TestReorderSignal(t *testing.T) {
	req := heuristicRequest(30)

	req.CurrentStock = 500
	covered := reorderSignal(req, 100)
	assert.False(t, covered.ShouldReorder)
	assert.Zero(t, covered.SuggestedQty)

	req.CurrentStock = 40
	req.SafetyStock = 10
	short := reorderSignal(req, 100.3)
	assert.True(t, short.ShouldReorder)
	assert.Equal(t, 71.0, short.SuggestedQty) // ceil(100.3 + 10 - 40)
	assert.NotEmpty(t, short.Reasoning)
}

func TestClassifyTrend(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	build := func(recentQty, earlierQty int) []domain.SalesRecord {
		var records []domain.SalesRecord
		for d := 1; d <= 4; d++ {
			records = append(records,
				domain.SalesRecord{Quantity: recentQty, SoldAt: now.AddDate(0, 0, -d)},
				domain.SalesRecord{Quantity: earlierQty, SoldAt: now.AddDate(0, 0, -30-d)},
			)
		}
		return records
	}

	assert.Equal(t, "increasing", classifyTrend(build(20, 10), now))
	assert.Equal(t, "decreasing", classifyTrend(build(10, 20), now))
	assert.Equal(t, "stable", classifyTrend(build(10, 10), now))
	assert.Equal(t, "stable", classifyTrend(nil, now), "no history defaults to stable")
}

func TestSeasonalityDetected(t *testing.T) {
	november := time.Date(2026, time.November, 5, 0, 0, 0, 0, time.UTC)
	july := time.Date(2026, time.July, 5, 0, 0, 0, 0, time.UTC)

	assert.True(t, seasonalityDetected(november, 30))
	assert.False(t, seasonalityDetected(july, 30))
	// A 90-day window from early July samples July, August and September, all
	// below the festival mark.
	assert.False(t, seasonalityDetected(july, 90))
}
