package forecast

import (
	"context"
	"sort"

	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/repository"
)

// defaultReorderPoint applies when a snapshot has no reorder point set.
const defaultReorderPoint = 15

// Advisor derives low-stock recommendations straight from inventory
// snapshots. It has no forecast dependency, so it keeps working when the
// forecast engine is degraded.
type Advisor struct {
	inventory repository.InventoryRepository
}

func NewAdvisor(inventory repository.InventoryRepository) *Advisor {
	return &Advisor{inventory: inventory}
}

// Suggestions classifies every active SKU and returns the ones that need a
// reorder, high urgency first, then ascending by current stock.
func (a *Advisor) Suggestions(ctx context.Context) ([]domain.ReorderSuggestion, error) {
	snaps, err := a.inventory.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return Classify(snaps), nil
}

// Classify is the pure core of the advisor.
func Classify(snaps []domain.InventorySnapshot) []domain.ReorderSuggestion {
	var suggestions []domain.ReorderSuggestion

	for _, snap := range snaps {
		if !snap.IsActive {
			continue
		}

		reorderPoint := snap.ReorderPoint
		if reorderPoint <= 0 {
			reorderPoint = defaultReorderPoint
		}

		stock := snap.QtyAvailable
		switch {
		case stock <= 5:
			suggestions = append(suggestions, domain.ReorderSuggestion{
				SKU:                        snap.SKU,
				ProductName:                snap.ProductName,
				CurrentStock:               stock,
				ReorderPoint:               reorderPoint,
				Urgency:                    "high",
				RecommendedQty:             maxInt(30, reorderPoint),
				EstimatedDaysUntilStockout: maxInt(1, stock/2),
			})
		case stock <= reorderPoint:
			suggestions = append(suggestions, domain.ReorderSuggestion{
				SKU:                        snap.SKU,
				ProductName:                snap.ProductName,
				CurrentStock:               stock,
				ReorderPoint:               reorderPoint,
				Urgency:                    "medium",
				RecommendedQty:             maxInt(20, reorderPoint),
				EstimatedDaysUntilStockout: maxInt(5, stock/3),
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Urgency != suggestions[j].Urgency {
			return suggestions[i].Urgency == "high"
		}
		return suggestions[i].CurrentStock < suggestions[j].CurrentStock
	})

	return suggestions
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
