package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stockcast/backend-go/internal/domain"
)

type forecastRepository struct {
	db *DB
}

func NewForecastRepository(db *DB) *forecastRepository {
	return &forecastRepository{db: db}
}

func (r *forecastRepository) Insert(ctx context.Context, f *domain.Forecast) error {
	predictions, err := json.Marshal(f.Predictions)
	if err != nil {
		return fmt.Errorf("failed to marshal predictions: %w", err)
	}
	summary, err := json.Marshal(f.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	reorder, err := json.Marshal(f.Reorder)
	if err != nil {
		return fmt.Errorf("failed to marshal reorder recommendation: %w", err)
	}

	query := `
		INSERT INTO forecasts (
			sku, horizon_days, generated_at, predictions, summary,
			risk_level, explanation, reorder_recommendation, model_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query,
		f.SKU, f.HorizonDays, f.GeneratedAt, predictions, summary,
		f.RiskLevel, f.Explanation, reorder, f.ModelVersion,
	).Scan(&f.ID); err != nil {
		return fmt.Errorf("failed to insert forecast: %w", err)
	}

	return nil
}

func (r *forecastRepository) Latest(ctx context.Context, sku string, horizonDays int) (*domain.Forecast, error) {
	query := `
		SELECT id, sku, horizon_days, generated_at, predictions, summary,
		       risk_level, explanation, reorder_recommendation, model_version
		FROM forecasts
		WHERE sku = $1 AND horizon_days = $2
		ORDER BY generated_at DESC
		LIMIT 1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, sku, horizonDays))
}

func (r *forecastRepository) GetByID(ctx context.Context, id int64) (*domain.Forecast, error) {
	query := `
		SELECT id, sku, horizon_days, generated_at, predictions, summary,
		       risk_level, explanation, reorder_recommendation, model_version
		FROM forecasts
		WHERE id = $1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *forecastRepository) scanOne(row *sql.Row) (*domain.Forecast, error) {
	var f domain.Forecast
	var predictions, summary, reorder []byte

	err := row.Scan(&f.ID, &f.SKU, &f.HorizonDays, &f.GeneratedAt, &predictions,
		&summary, &f.RiskLevel, &f.Explanation, &reorder, &f.ModelVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan forecast: %w", err)
	}

	if err := json.Unmarshal(predictions, &f.Predictions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal predictions: %w", err)
	}
	if err := json.Unmarshal(summary, &f.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	if err := json.Unmarshal(reorder, &f.Reorder); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reorder recommendation: %w", err)
	}

	return &f, nil
}
