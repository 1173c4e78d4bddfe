package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockcast/backend-go/internal/domain"
)

func TestClassify(t *testing.T) {
	snaps := []domain.InventorySnapshot{
		{SKU: "OK-1", QtyAvailable: 100, ReorderPoint: 20, IsActive: true},
		{SKU: "MED-1", QtyAvailable: 18, ReorderPoint: 20, IsActive: true},
		{SKU: "HIGH-1", QtyAvailable: 4, ReorderPoint: 20, IsActive: true},
		{SKU: "HIGH-2", QtyAvailable: 2, ReorderPoint: 40, IsActive: true},
		{SKU: "INACTIVE-1", QtyAvailable: 0, ReorderPoint: 20, IsActive: false},
		{SKU: "DEFAULT-RP", QtyAvailable: 12, ReorderPoint: 0, IsActive: true},
	}

	suggestions := Classify(snaps)
	require.Len(t, suggestions, 4)

	// High urgency first, then ascending stock.
	assert.Equal(t, "HIGH-2", suggestions[0].SKU)
	assert.Equal(t, "HIGH-1", suggestions[1].SKU)
	assert.Equal(t, "DEFAULT-RP", suggestions[2].SKU)
	assert.Equal(t, "MED-1", suggestions[3].SKU)

	high := suggestions[1]
	assert.Equal(t, "high", high.Urgency)
	assert.Equal(t, 30, high.RecommendedQty)
	assert.Equal(t, 2, high.EstimatedDaysUntilStockout)

	deep := suggestions[0]
	assert.Equal(t, 40, deep.RecommendedQty, "reorder point above the floor wins")
	assert.Equal(t, 1, deep.EstimatedDaysUntilStockout)

	withDefault := suggestions[2]
	assert.Equal(t, "medium", withDefault.Urgency)
	assert.Equal(t, defaultReorderPoint, withDefault.ReorderPoint)
	assert.Equal(t, 20, withDefault.RecommendedQty)

	medium := suggestions[3]
	assert.Equal(t, "medium", medium.Urgency)
	assert.Equal(t, 20, medium.RecommendedQty)
	assert.Equal(t, 6, medium.EstimatedDaysUntilStockout)
}

func TestClassifyEmptyAndHealthy(t *testing.T) {
	assert.Empty(t, Classify(nil))
	assert.Empty(t, Classify([]domain.InventorySnapshot{
		{SKU: "OK-1", QtyAvailable: 500, ReorderPoint: 20, IsActive: true},
	}))
}
