package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stockcast/backend-go/internal/domain"
)

type supplierRepository struct {
	db *DB
}

func NewSupplierRepository(db *DB) *supplierRepository {
	return &supplierRepository{db: db}
}

func (r *supplierRepository) GetByID(ctx context.Context, id int64) (*domain.Supplier, error) {
	query := `
		SELECT id, name, email, lead_time_days, payment_terms, is_active
		FROM suppliers
		WHERE id = $1
	`

	var s domain.Supplier
	if err := sqlx.GetContext(ctx, r.db, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("supplier %d: %w", id, domain.ErrSupplierNotFound)
		}
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}

	return &s, nil
}

func (r *supplierRepository) List(ctx context.Context, activeOnly bool) ([]domain.Supplier, error) {
	query := `
		SELECT id, name, email, lead_time_days, payment_terms, is_active
		FROM suppliers
		WHERE ($1 = false OR is_active = true)
		ORDER BY name
	`

	var suppliers []domain.Supplier
	if err := sqlx.SelectContext(ctx, r.db, &suppliers, query, activeOnly); err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}

	return suppliers, nil
}

func (r *supplierRepository) Insert(ctx context.Context, s *domain.Supplier) error {
	query := `
		INSERT INTO suppliers (name, email, lead_time_days, payment_terms, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if err := r.db.QueryRowContext(ctx, query,
		s.Name, s.Email, s.LeadTimeDays, s.PaymentTerms, s.IsActive,
	).Scan(&s.ID); err != nil {
		return fmt.Errorf("failed to insert supplier: %w", err)
	}

	return nil
}

func (r *supplierRepository) CurrentPrices(ctx context.Context, supplierID int64, skus []string, now time.Time) (map[string]domain.SupplierPrice, error) {
	query := `
		SELECT id, supplier_id, sku, unit_price, moq, valid_until
		FROM supplier_prices
		WHERE supplier_id = $1
		  AND sku = ANY($2)
		  AND (valid_until IS NULL OR valid_until >= $3)
	`

	var prices []domain.SupplierPrice
	if err := sqlx.SelectContext(ctx, r.db, &prices, query, supplierID, pq.Array(skus), now); err != nil {
		return nil, fmt.Errorf("failed to load supplier prices: %w", err)
	}

	current := make(map[string]domain.SupplierPrice, len(prices))
	for _, p := range prices {
		current[p.SKU] = p
	}

	return current, nil
}

// UpsertPrice updates the current price row for (supplier, sku) in place, or
// inserts one when no current row exists. Keeps at most one current price per
// pair.
func (r *supplierRepository) UpsertPrice(ctx context.Context, price *domain.SupplierPrice) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		update := `
			UPDATE supplier_prices
			SET unit_price = $3, moq = $4, valid_until = $5
			WHERE supplier_id = $1 AND sku = $2
			  AND (valid_until IS NULL OR valid_until >= NOW())
			RETURNING id
		`

		err := tx.QueryRowContext(ctx, update,
			price.SupplierID, price.SKU, price.UnitPrice, price.MOQ, price.ValidUntil,
		).Scan(&price.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to update supplier price: %w", err)
		}

		insert := `
			INSERT INTO supplier_prices (supplier_id, sku, unit_price, moq, valid_until)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`

		if err := tx.QueryRowContext(ctx, insert,
			price.SupplierID, price.SKU, price.UnitPrice, price.MOQ, price.ValidUntil,
		).Scan(&price.ID); err != nil {
			return fmt.Errorf("failed to insert supplier price: %w", err)
		}

		return nil
	})
}
