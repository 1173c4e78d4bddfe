package predictor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockcast/backend-go/internal/domain"
)

// Request carries everything a predictor needs. Predictors must not reach
// into persistence themselves; the forecast engine assembles the request.
type Request struct {
	SKU          string
	ProductName  string
	Brand        string
	Category     string
	UnitPrice    float64
	History      []domain.SalesRecord
	HorizonDays  int
	CurrentStock int
	SafetyStock  int
	Now          time.Time
}

// Payload is the contract every predictor implementation must satisfy.
type Payload struct {
	Predictions  []domain.ForecastPoint
	Summary      domain.ForecastSummary
	RiskLevel    string
	Explanation  string
	Reorder      domain.ReorderRecommendation
	ModelVersion string
}

// Predictor is the demand-forecasting capability. Implementations signal
// domain.ErrPredictionUnavailable when they cannot produce a valid payload;
// callers are expected to have a fallback.
type Predictor interface {
	Predict(ctx context.Context, req Request) (*Payload, error)
}

// DraftItem is one candidate SKU for a purchase order draft.
type DraftItem struct {
	SKU           string
	ProductName   string
	CurrentStock  int
	SafetyStock   int
	ReorderPoint  int
	ForecastTotal float64
	UnitPrice     decimal.Decimal
	MOQ           int
}

// DraftRequest asks the planner for order quantities and a supplier-facing
// message.
type DraftRequest struct {
	Supplier domain.Supplier
	Items    []DraftItem
	Reason   string
	Now      time.Time
}

// DraftLine is one planned order line.
type DraftLine struct {
	SKU         string
	ProductName string
	Qty         int
	UnitPrice   decimal.Decimal
}

// DraftPlan is the planner's output: line items, the reasoning behind them,
// and a draft email for the supplier.
type DraftPlan struct {
	Lines        []DraftLine
	Reasoning    string
	EmailSubject string
	EmailBody    string
}

// DraftPlanner is the PO-drafting capability, with the same LLM/heuristic
// duality as Predictor.
type DraftPlanner interface {
	PlanOrder(ctx context.Context, req DraftRequest) (*DraftPlan, error)
}

// validatePayload checks a predictor response against the contract before it
// is allowed to reach persistence.
func validatePayload(p *Payload, horizonDays int) error {
	if p == nil {
		return fmt.Errorf("empty payload")
	}
	if len(p.Predictions) != horizonDays {
		return fmt.Errorf("expected %d predictions, got %d", horizonDays, len(p.Predictions))
	}
	for i, point := range p.Predictions {
		if point.PredictedQty < 0 {
			return fmt.Errorf("prediction %d has negative quantity", i)
		}
		if point.ConfidenceLower > point.ConfidenceUpper {
			return fmt.Errorf("prediction %d has inverted confidence bounds", i)
		}
	}
	switch p.Summary.Trend {
	case "increasing", "stable", "decreasing":
	default:
		return fmt.Errorf("unknown trend %q", p.Summary.Trend)
	}
	return nil
}
