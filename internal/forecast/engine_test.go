package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/predictor"
)

type fakeSales struct {
	history []domain.SalesRecord
	byDate  map[string]int
}

func (f *fakeSales) History(_ context.Context, _ string, since time.Time) ([]domain.SalesRecord, error) {
	var out []domain.SalesRecord
	for _, rec := range f.history {
		if !rec.SoldAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeSales) QuantityByDate(context.Context, string, time.Time, time.Time) (map[string]int, error) {
	return f.byDate, nil
}

func (f *fakeSales) Insert(_ context.Context, records []domain.SalesRecord) error {
	f.history = append(f.history, records...)
	return nil
}

type fakeInventory struct {
	snaps map[string]*domain.InventorySnapshot
}

func (f *fakeInventory) GetBySKU(_ context.Context, sku string) (*domain.InventorySnapshot, error) {
	return f.snaps[sku], nil
}

func (f *fakeInventory) ListActive(context.Context) ([]domain.InventorySnapshot, error) {
	var out []domain.InventorySnapshot
	for _, s := range f.snaps {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeInventory) ListLowStock(context.Context) ([]domain.InventorySnapshot, error) {
	var out []domain.InventorySnapshot
	for _, s := range f.snaps {
		if s.IsActive && s.QtyAvailable <= s.ReorderPoint {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeInventory) ApplyDelta(_ context.Context, sku string, delta int, _ *time.Time) (int, int, error) {
	snap, ok := f.snaps[sku]
	if !ok || snap.QtyAvailable+delta < 0 {
		return 0, 0, domain.ErrNoInventoryRecord
	}
	before := snap.QtyAvailable
	snap.QtyAvailable += delta
	return before, snap.QtyAvailable, nil
}

func (f *fakeInventory) Upsert(_ context.Context, snap *domain.InventorySnapshot) error {
	f.snaps[snap.SKU] = snap
	return nil
}

type fakeForecasts struct {
	items  []*domain.Forecast
	nextID int64
}

func (f *fakeForecasts) Insert(_ context.Context, fc *domain.Forecast) error {
	f.nextID++
	fc.ID = f.nextID
	stored := *fc
	f.items = append(f.items, &stored)
	return nil
}

func (f *fakeForecasts) Latest(_ context.Context, sku string, horizonDays int) (*domain.Forecast, error) {
	var latest *domain.Forecast
	for _, fc := range f.items {
		if fc.SKU != sku || fc.HorizonDays != horizonDays {
			continue
		}
		if latest == nil || fc.GeneratedAt.After(latest.GeneratedAt) {
			latest = fc
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeForecasts) GetByID(_ context.Context, id int64) (*domain.Forecast, error) {
	for _, fc := range f.items {
		if fc.ID == id {
			copied := *fc
			return &copied, nil
		}
	}
	return nil, nil
}

type fakePredictor struct {
	payload *predictor.Payload
	err     error
	calls   int
}

func (f *fakePredictor) Predict(context.Context, predictor.Request) (*predictor.Payload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.payload
	return &copied, nil
}

type fakeCache struct {
	sets        int
	invalidated []string
}

func (f *fakeCache) Get(context.Context, string, int) (*domain.Forecast, bool, error) {
	return nil, false, nil
}

func (f *fakeCache) Set(context.Context, *domain.Forecast) error {
	f.sets++
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, sku string) error {
	f.invalidated = append(f.invalidated, sku)
	return nil
}

func testPayload(now time.Time, horizonDays int, daily float64) *predictor.Payload {
	points := make([]domain.ForecastPoint, horizonDays)
	for i := range points {
		points[i] = domain.ForecastPoint{
			Date:            now.AddDate(0, 0, i+1),
			PredictedQty:    daily,
			ConfidenceLower: daily * 0.8,
			ConfidenceUpper: daily * 1.2,
		}
	}
	return &predictor.Payload{
		Predictions: points,
		Summary: domain.ForecastSummary{
			TotalPredicted: daily * float64(horizonDays),
			DailyAverage:   daily,
			Trend:          "stable",
		},
		RiskLevel:    "medium",
		Explanation:  "test payload",
		Reorder:      domain.ReorderRecommendation{ShouldReorder: true, SuggestedQty: 30},
		ModelVersion: "test-v1",
	}
}

func testEngine(now time.Time, daily float64) (*Engine, *fakeSales, *fakeInventory, *fakeForecasts, *fakePredictor) {
	sales := &fakeSales{
		history: []domain.SalesRecord{
			{SKU: "NV-SER-001", Quantity: 4, UnitPrice: decimal.NewFromInt(42), SoldAt: now.AddDate(0, 0, -5)},
			{SKU: "NV-SER-001", Quantity: 6, UnitPrice: decimal.NewFromInt(42), SoldAt: now.AddDate(0, 0, -12)},
		},
	}
	inventory := &fakeInventory{snaps: map[string]*domain.InventorySnapshot{
		"NV-SER-001": {
			SKU: "NV-SER-001", ProductName: "Renewal Serum", Brand: "nordvik", Category: "beauty",
			UnitPrice: decimal.NewFromInt(42), QtyAvailable: 40, SafetyStock: 10, ReorderPoint: 25, IsActive: true,
		},
	}}
	forecasts := &fakeForecasts{}
	pred := &fakePredictor{payload: testPayload(now, 30, daily)}

	engine := NewEngine(sales, inventory, forecasts, pred, nil)
	engine.WithClock(func() time.Time { return now })
	return engine, sales, inventory, forecasts, pred
}

func TestGenerateForecastReusesFreshResult(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	engine, _, _, _, pred := testEngine(now, 5)
	ctx := context.Background()

	first, err := engine.GenerateForecast(ctx, "NV-SER-001", 30, false)
	require.NoError(t, err)
	assert.Equal(t, 1, pred.calls)

	second, err := engine.GenerateForecast(ctx, "NV-SER-001", 30, false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "fresh forecast must be reused")
	assert.Equal(t, 1, pred.calls, "predictor must not run again inside the freshness window")
}

func TestGenerateForecastForceRefresh(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	engine, _, _, _, pred := testEngine(now, 5)
	ctx := context.Background()

	first, err := engine.GenerateForecast(ctx, "NV-SER-001", 30, false)
	require.NoError(t, err)

	second, err := engine.GenerateForecast(ctx, "NV-SER-001", 30, true)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "force must generate a new forecast")
	assert.Equal(t, 2, pred.calls)
}

func TestGenerateForecastForceInvalidatesCache(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	engine, _, _, _, _ := testEngine(now, 5)
	cached := &fakeCache{}
	engine.cache = cached
	ctx := context.Background()

	_, err := engine.GenerateForecast(ctx, "NV-SER-001", 30, false)
	require.NoError(t, err)
	assert.Empty(t, cached.invalidated, "a plain generation only overwrites its own key")
	assert.Equal(t, 1, cached.sets)

	_, err = engine.GenerateForecast(ctx, "NV-SER-001", 30, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"NV-SER-001"}, cached.invalidated,
		"a forced refresh drops the SKU's cached forecasts before recaching")
	assert.Equal(t, 2, cached.sets)
}

func TestGenerateForecastExpiredWindow(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	engine, _, _, forecasts, pred := testEngine(now, 5)
	ctx := context.Background()

	stale := &domain.Forecast{
		SKU: "NV-SER-001", HorizonDays: 30,
		GeneratedAt: now.Add(-FreshnessWindow - time.Hour),
	}
	require.NoError(t, forecasts.Insert(ctx, stale))

	fresh, err := engine.GenerateForecast(ctx, "NV-SER-001", 30, false)
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, fresh.ID)
	assert.Equal(t, 1, pred.calls)
}

func TestGenerateForecastErrors(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	engine, _, _, _, _ := testEngine(now, 5)
	_, err := engine.GenerateForecast(ctx, "GHOST-001", 30, false)
	assert.ErrorIs(t, err, domain.ErrNoInventoryRecord)

	engine, sales, _, _, _ := testEngine(now, 5)
	sales.history = nil
	_, err = engine.GenerateForecast(ctx, "NV-SER-001", 30, false)
	assert.ErrorIs(t, err, domain.ErrNoHistoricalData)

	engine, _, _, _, pred := testEngine(now, 5)
	pred.err = errors.New("model offline")
	_, err = engine.GenerateForecast(ctx, "NV-SER-001", 30, false)
	assert.Error(t, err)
}

func TestBatchGenerateForecastsIsolatesFailures(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	engine, _, inventory, _, _ := testEngine(now, 5)

	inventory.snaps["GN-CBL-201"] = &domain.InventorySnapshot{
		SKU: "GN-CBL-201", ProductName: "USB-C Cable", QtyAvailable: 200, IsActive: true,
	}

	results := engine.BatchGenerateForecasts(context.Background(), []string{"NV-SER-001", "MISSING-1", "GN-CBL-201"}, 30)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.NotEmpty(t, results[1].Error)
	assert.True(t, results[2].Success, "a failed SKU must not abort the rest of the batch")
}

func TestGetLatestForecastRecomputesSummary(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	engine, _, _, forecasts, _ := testEngine(now, 5)
	ctx := context.Background()

	stored := &domain.Forecast{
		SKU: "NV-SER-001", HorizonDays: 30, GeneratedAt: now,
		Predictions: []domain.ForecastPoint{
			{Date: now.AddDate(0, 0, 1), PredictedQty: 4},
			{Date: now.AddDate(0, 0, 2), PredictedQty: 8},
			{Date: now.AddDate(0, 0, 3), PredictedQty: 6},
		},
		// Deliberately wrong persisted summary.
		Summary: domain.ForecastSummary{TotalPredicted: 999, DailyAverage: 999, Trend: "stable"},
	}
	require.NoError(t, forecasts.Insert(ctx, stored))

	got, err := engine.GetLatestForecast(ctx, "NV-SER-001", 30)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, 18.0, got.Summary.TotalPredicted)
	assert.Equal(t, 6.0, got.Summary.DailyAverage)
	assert.Equal(t, now.AddDate(0, 0, 2).Format("2006-01-02"), got.Summary.PeakDate)

	missing, err := engine.GetLatestForecast(ctx, "GHOST-001", 30)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCalculateAccuracy(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	engine, sales, _, forecasts, _ := testEngine(now, 5)
	ctx := context.Background()

	fc := &domain.Forecast{
		SKU: "NV-SER-001", HorizonDays: 30, GeneratedAt: now.AddDate(0, 0, -10),
		Predictions: []domain.ForecastPoint{
			{Date: now.AddDate(0, 0, -3), PredictedQty: 10},
			{Date: now.AddDate(0, 0, -2), PredictedQty: 10},
			{Date: now.AddDate(0, 0, -1), PredictedQty: 10},
		},
	}
	require.NoError(t, forecasts.Insert(ctx, fc))

	sales.byDate = map[string]int{
		now.AddDate(0, 0, -3).Format("2006-01-02"): 12,
		now.AddDate(0, 0, -2).Format("2006-01-02"): 12,
		// the remaining day had no sales and must be skipped
	}

	report, err := engine.CalculateAccuracy(ctx, fc.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, report.ComparableDays)
	require.NotNil(t, report.MAPE)
	assert.InDelta(t, 16.67, *report.MAPE, 0.01)
	assert.Equal(t, "high", report.Confidence)
}

func TestCalculateAccuracyNoComparableDays(t *testing.T) {
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	engine, sales, _, forecasts, _ := testEngine(now, 5)
	ctx := context.Background()

	fc := &domain.Forecast{
		SKU: "NV-SER-001", HorizonDays: 30, GeneratedAt: now,
		Predictions: []domain.ForecastPoint{
			{Date: now.AddDate(0, 0, 1), PredictedQty: 10},
		},
	}
	require.NoError(t, forecasts.Insert(ctx, fc))
	sales.byDate = map[string]int{}

	report, err := engine.CalculateAccuracy(ctx, fc.ID)
	require.NoError(t, err)

	assert.Zero(t, report.ComparableDays)
	assert.Nil(t, report.MAPE, "MAPE is undefined with no comparable days")
	assert.Equal(t, "low", report.Confidence)
}
