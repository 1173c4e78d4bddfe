package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stockcast/backend-go/internal/domain"
)

type inventoryRepository struct {
	db *DB
}

func NewInventoryRepository(db *DB) *inventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) GetBySKU(ctx context.Context, sku string) (*domain.InventorySnapshot, error) {
	query := `
		SELECT sku, product_name, brand, category, unit_price, qty_available,
		       safety_stock, reorder_point, lead_time_days, is_active, last_restocked_at
		FROM inventory_snapshots
		WHERE sku = $1
	`

	var snap domain.InventorySnapshot
	if err := sqlx.GetContext(ctx, r.db, &snap, query, sku); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get inventory snapshot: %w", err)
	}

	return &snap, nil
}

func (r *inventoryRepository) ListActive(ctx context.Context) ([]domain.InventorySnapshot, error) {
	query := `
		SELECT sku, product_name, brand, category, unit_price, qty_available,
		       safety_stock, reorder_point, lead_time_days, is_active, last_restocked_at
		FROM inventory_snapshots
		WHERE is_active = true
		ORDER BY sku
	`

	var snaps []domain.InventorySnapshot
	if err := sqlx.SelectContext(ctx, r.db, &snaps, query); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	return snaps, nil
}

func (r *inventoryRepository) ListLowStock(ctx context.Context) ([]domain.InventorySnapshot, error) {
	query := `
		SELECT sku, product_name, brand, category, unit_price, qty_available,
		       safety_stock, reorder_point, lead_time_days, is_active, last_restocked_at
		FROM inventory_snapshots
		WHERE is_active = true AND qty_available <= reorder_point
		ORDER BY qty_available ASC
	`

	var snaps []domain.InventorySnapshot
	if err := sqlx.SelectContext(ctx, r.db, &snaps, query); err != nil {
		return nil, fmt.Errorf("failed to list low stock: %w", err)
	}

	return snaps, nil
}

// ApplyDelta adjusts stock server-side. The WHERE guard keeps qty_available
// from going negative under concurrent decrements.
func (r *inventoryRepository) ApplyDelta(ctx context.Context, sku string, delta int, restockedAt *time.Time) (int, int, error) {
	var before, after int
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE inventory_snapshots
			SET qty_available = qty_available + $2,
			    last_restocked_at = COALESCE($3, last_restocked_at)
			WHERE sku = $1 AND qty_available + $2 >= 0
			RETURNING qty_available - $2, qty_available
		`
		if err := tx.QueryRowContext(ctx, query, sku, delta, restockedAt).Scan(&before, &after); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("stock delta %d rejected for %s: %w", delta, sku, domain.ErrNoInventoryRecord)
			}
			return fmt.Errorf("failed to apply stock delta: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return before, after, nil
}

func (r *inventoryRepository) Upsert(ctx context.Context, snap *domain.InventorySnapshot) error {
	query := `
		INSERT INTO inventory_snapshots (
			sku, product_name, brand, category, unit_price, qty_available,
			safety_stock, reorder_point, lead_time_days, is_active, last_restocked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (sku)
		DO UPDATE SET
			product_name = EXCLUDED.product_name,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			unit_price = EXCLUDED.unit_price,
			qty_available = EXCLUDED.qty_available,
			safety_stock = EXCLUDED.safety_stock,
			reorder_point = EXCLUDED.reorder_point,
			lead_time_days = EXCLUDED.lead_time_days,
			is_active = EXCLUDED.is_active
	`

	if _, err := r.db.ExecContext(ctx, query,
		snap.SKU, snap.ProductName, snap.Brand, snap.Category, snap.UnitPrice,
		snap.QtyAvailable, snap.SafetyStock, snap.ReorderPoint, snap.LeadTimeDays,
		snap.IsActive, snap.LastRestockedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert inventory snapshot: %w", err)
	}

	return nil
}
