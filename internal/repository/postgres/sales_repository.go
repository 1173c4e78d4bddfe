package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stockcast/backend-go/internal/domain"
)

type salesRepository struct {
	db *DB
}

func NewSalesRepository(db *DB) *salesRepository {
	return &salesRepository{db: db}
}

func (r *salesRepository) History(ctx context.Context, sku string, since time.Time) ([]domain.SalesRecord, error) {
	query := `
		SELECT id, sku, quantity, unit_price, discount, sold_at
		FROM sales_records
		WHERE sku = $1 AND sold_at >= $2
		ORDER BY sold_at ASC
	`

	var records []domain.SalesRecord
	if err := sqlx.SelectContext(ctx, r.db, &records, query, sku, since); err != nil {
		return nil, fmt.Errorf("failed to load sales history: %w", err)
	}

	return records, nil
}

func (r *salesRepository) QuantityByDate(ctx context.Context, sku string, from, to time.Time) (map[string]int, error) {
	query := `
		SELECT to_char(sold_at::date, 'YYYY-MM-DD') AS day, SUM(quantity) AS total
		FROM sales_records
		WHERE sku = $1 AND sold_at >= $2 AND sold_at <= $3
		GROUP BY sold_at::date
	`

	rows, err := r.db.QueryContext(ctx, query, sku, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales by date: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var day string
		var total int
		if err := rows.Scan(&day, &total); err != nil {
			return nil, fmt.Errorf("failed to scan daily sales: %w", err)
		}
		totals[day] = total
	}

	return totals, rows.Err()
}

func (r *salesRepository) Insert(ctx context.Context, records []domain.SalesRecord) error {
	if len(records) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO sales_records (sku, quantity, unit_price, discount, sold_at)
			VALUES ($1, $2, $3, $4, $5)
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, rec.SKU, rec.Quantity, rec.UnitPrice, rec.Discount, rec.SoldAt); err != nil {
				return fmt.Errorf("failed to insert sales record: %w", err)
			}
		}

		return nil
	})
}
