package predictor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stockcast/backend-go/internal/domain"
)

// HeuristicPlanner derives order quantities directly from forecast totals and
// stock positions. Like Heuristic it performs no I/O.
type HeuristicPlanner struct{}

func NewHeuristicPlanner() *HeuristicPlanner {
	return &HeuristicPlanner{}
}

func (p *HeuristicPlanner) PlanOrder(_ context.Context, req DraftRequest) (*DraftPlan, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("no items to plan: %w", domain.ErrPredictionUnavailable)
	}

	var lines []DraftLine
	var reasons []string
	total := decimal.Zero

	for _, item := range req.Items {
		qty := plannedQty(item)
		if qty <= 0 {
			continue
		}

		lines = append(lines, DraftLine{
			SKU:         item.SKU,
			ProductName: item.ProductName,
			Qty:         qty,
			UnitPrice:   item.UnitPrice,
		})
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
		reasons = append(reasons, fmt.Sprintf("%s: 30-day demand %.0f vs %d on hand, ordering %d",
			item.SKU, item.ForecastTotal, item.CurrentStock, qty))
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("no item needs replenishment: %w", domain.ErrPredictionUnavailable)
	}

	plan := &DraftPlan{
		Lines: lines,
		Reasoning: fmt.Sprintf("Replenishment driven by 30-day demand forecasts. %s",
			strings.Join(reasons, "; ")),
		EmailSubject: fmt.Sprintf("Purchase order request - %d item(s)", len(lines)),
		EmailBody:    draftEmailBody(req, lines, total),
	}

	return plan, nil
}

// plannedQty covers forecast demand plus safety stock, respects the
// supplier's MOQ, and never orders for items already covered.
func plannedQty(item DraftItem) int {
	needed := int(math.Ceil(item.ForecastTotal)) + item.SafetyStock - item.CurrentStock
	if needed <= 0 {
		return 0
	}
	if item.MOQ > 0 && needed < item.MOQ {
		return item.MOQ
	}
	return needed
}

func draftEmailBody(req DraftRequest, lines []DraftLine, total decimal.Decimal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dear %s,\n\nWe would like to place the following order:\n\n", req.Supplier.Name)
	for _, line := range lines {
		fmt.Fprintf(&b, "  - %s (%s): %d units @ %s\n", line.ProductName, line.SKU, line.Qty, line.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", total.StringFixed(2))
	if req.Supplier.LeadTimeDays > 0 {
		fmt.Fprintf(&b, "Requested delivery within the agreed lead time of %d days.\n", req.Supplier.LeadTimeDays)
	}
	if req.Reason != "" {
		fmt.Fprintf(&b, "\nContext: %s\n", req.Reason)
	}
	b.WriteString("\nBest regards")

	return b.String()
}
