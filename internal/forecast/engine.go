package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stockcast/backend-go/internal/cache"
	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/predictor"
	"github.com/stockcast/backend-go/internal/repository"
)

// FreshnessWindow is how long a generated forecast is served from storage
// before a new generation is allowed.
const FreshnessWindow = 24 * time.Hour

// historyDays is how much sales history is fed to the predictor.
const historyDays = 90

// Engine orchestrates cache lookup, history retrieval, predictor invocation
// and persistence for demand forecasts.
//
// Freshness is checked against storage, not held in memory: two concurrent
// forced generations for the same (sku, horizon) may both compute and both
// persist. That is additional history, not corruption, and is accepted as
// weak consistency.
type Engine struct {
	sales     repository.SalesRepository
	inventory repository.InventoryRepository
	forecasts repository.ForecastRepository
	predictor predictor.Predictor
	cache     cache.ForecastCache
	now       func() time.Time
}

func NewEngine(
	sales repository.SalesRepository,
	inventory repository.InventoryRepository,
	forecasts repository.ForecastRepository,
	p predictor.Predictor,
	cacheImpl cache.ForecastCache,
) *Engine {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopForecastCache()
	}
	return &Engine{
		sales:     sales,
		inventory: inventory,
		forecasts: forecasts,
		predictor: p,
		cache:     cacheImpl,
		now:       time.Now,
	}
}

// WithClock overrides the engine's clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// GenerateForecast returns the stored forecast when one fresh enough exists,
// otherwise computes, persists and returns a new one. forceRefresh skips the
// freshness check.
func (e *Engine) GenerateForecast(ctx context.Context, sku string, horizonDays int, forceRefresh bool) (*domain.Forecast, error) {
	now := e.now()

	if !forceRefresh {
		latest, err := e.forecasts.Latest(ctx, sku, horizonDays)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.Fresh(now, FreshnessWindow) {
			log.Debug().Str("sku", sku).Int("horizon_days", horizonDays).
				Int64("forecast_id", latest.ID).Msg("forecast cache hit")
			return latest, nil
		}
	}

	snap, err := e.inventory.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("sku %s: %w", sku, domain.ErrNoInventoryRecord)
	}

	history, err := e.sales.History(ctx, sku, now.AddDate(0, 0, -historyDays))
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("sku %s: %w", sku, domain.ErrNoHistoricalData)
	}

	unitPrice, _ := snap.UnitPrice.Float64()
	payload, err := e.predictor.Predict(ctx, predictor.Request{
		SKU:          sku,
		ProductName:  snap.ProductName,
		Brand:        snap.Brand,
		Category:     snap.Category,
		UnitPrice:    unitPrice,
		History:      history,
		HorizonDays:  horizonDays,
		CurrentStock: snap.QtyAvailable,
		SafetyStock:  snap.SafetyStock,
		Now:          now,
	})
	if err != nil {
		return nil, err
	}

	forecast := &domain.Forecast{
		SKU:          sku,
		HorizonDays:  horizonDays,
		GeneratedAt:  now,
		Predictions:  payload.Predictions,
		Summary:      payload.Summary,
		RiskLevel:    payload.RiskLevel,
		Explanation:  payload.Explanation,
		Reorder:      payload.Reorder,
		ModelVersion: payload.ModelVersion,
	}

	if err := e.forecasts.Insert(ctx, forecast); err != nil {
		return nil, err
	}

	// A forced refresh means the caller knows the underlying data moved, so
	// cached forecasts for the SKU's other horizons are dropped too.
	if forceRefresh {
		if err := e.cache.Invalidate(ctx, sku); err != nil {
			log.Warn().Err(err).Str("sku", sku).Msg("forecast cache invalidation failed")
		}
	}

	if err := e.cache.Set(ctx, forecast); err != nil {
		log.Warn().Err(err).Str("sku", sku).Msg("forecast cache set failed")
	}

	log.Info().Str("sku", sku).Int("horizon_days", horizonDays).
		Str("risk", forecast.RiskLevel).Str("model", forecast.ModelVersion).
		Msg("forecast generated")

	return forecast, nil
}

// GetLatestForecast returns the most recent forecast with its summary fields
// recomputed from the stored predictions, so stale persisted summaries can
// never be served.
func (e *Engine) GetLatestForecast(ctx context.Context, sku string, horizonDays int) (*domain.Forecast, error) {
	if cached, ok, err := e.cache.Get(ctx, sku, horizonDays); err == nil && ok {
		recomputeSummary(cached)
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Str("sku", sku).Msg("forecast cache get failed")
	}

	latest, err := e.forecasts.Latest(ctx, sku, horizonDays)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	recomputeSummary(latest)
	return latest, nil
}

func recomputeSummary(f *domain.Forecast) {
	var total float64
	peak := ""
	peakQty := -1.0
	for _, p := range f.Predictions {
		total += p.PredictedQty
		if p.PredictedQty > peakQty {
			peakQty = p.PredictedQty
			peak = p.Date.Format("2006-01-02")
		}
	}

	f.Summary.TotalPredicted = total
	if len(f.Predictions) > 0 {
		f.Summary.DailyAverage = total / float64(len(f.Predictions))
	}
	f.Summary.PeakDate = peak
}

// CalculateAccuracy scores a stored forecast against realized sales using
// MAPE. Days with zero actual sales are skipped (the percentage error is
// undefined there); when no comparable day exists, MAPE is null.
func (e *Engine) CalculateAccuracy(ctx context.Context, forecastID int64) (*domain.AccuracyReport, error) {
	f, err := e.forecasts.GetByID(ctx, forecastID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("forecast %d not found", forecastID)
	}
	if len(f.Predictions) == 0 {
		return &domain.AccuracyReport{ForecastID: forecastID, SKU: f.SKU, Confidence: "low"}, nil
	}

	from := f.Predictions[0].Date
	to := f.Predictions[len(f.Predictions)-1].Date.Add(24*time.Hour - time.Nanosecond)
	actuals, err := e.sales.QuantityByDate(ctx, f.SKU, from, to)
	if err != nil {
		return nil, err
	}

	var sum float64
	var days int
	for _, p := range f.Predictions {
		actual, ok := actuals[p.Date.Format("2006-01-02")]
		if !ok || actual == 0 {
			continue
		}
		sum += abs(float64(actual)-p.PredictedQty) / float64(actual) * 100
		days++
	}

	report := &domain.AccuracyReport{
		ForecastID:     forecastID,
		SKU:            f.SKU,
		ComparableDays: days,
	}
	if days == 0 {
		report.Confidence = "low"
		return report, nil
	}

	mape := sum / float64(days)
	report.MAPE = &mape
	switch {
	case mape < 20:
		report.Confidence = "high"
	case mape < 35:
		report.Confidence = "medium"
	default:
		report.Confidence = "low"
	}

	return report, nil
}

// BatchGenerateForecasts processes SKUs independently; one SKU's failure is
// reported per item and never aborts the rest of the batch.
func (e *Engine) BatchGenerateForecasts(ctx context.Context, skus []string, horizonDays int) []domain.BatchForecastResult {
	results := make([]domain.BatchForecastResult, 0, len(skus))

	for _, sku := range skus {
		if _, err := e.GenerateForecast(ctx, sku, horizonDays, false); err != nil {
			log.Error().Err(err).Str("sku", sku).Msg("batch forecast failed for sku")
			results = append(results, domain.BatchForecastResult{SKU: sku, Success: false, Error: err.Error()})
			continue
		}
		results = append(results, domain.BatchForecastResult{SKU: sku, Success: true})
	}

	return results
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
