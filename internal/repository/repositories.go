package repository

import (
	"context"
	"time"

	"github.com/stockcast/backend-go/internal/domain"
)

// SalesRepository reads the append-only sales history. Records are written by
// order fulfillment; this service only appends through the import path.
type SalesRepository interface {
	// History returns all sales for the SKU sold at or after since, oldest first.
	History(ctx context.Context, sku string, since time.Time) ([]domain.SalesRecord, error)

	// QuantityByDate returns total units sold per calendar day (YYYY-MM-DD)
	// for the SKU within [from, to].
	QuantityByDate(ctx context.Context, sku string, from, to time.Time) (map[string]int, error)

	// Insert appends sales records (seed/import path only).
	Insert(ctx context.Context, records []domain.SalesRecord) error
}

// InventoryRepository reads and mutates stock snapshots. All stock changes go
// through ApplyDelta so increments are applied server-side, never as
// read-modify-write on a cached value.
type InventoryRepository interface {
	GetBySKU(ctx context.Context, sku string) (*domain.InventorySnapshot, error)
	ListActive(ctx context.Context) ([]domain.InventorySnapshot, error)

	// ListLowStock returns active SKUs at or below their reorder point.
	ListLowStock(ctx context.Context) ([]domain.InventorySnapshot, error)

	// ApplyDelta atomically adjusts qty_available by delta and returns the
	// quantities before and after the change. Deltas that would drive stock
	// negative fail without mutating.
	ApplyDelta(ctx context.Context, sku string, delta int, restockedAt *time.Time) (before, after int, err error)

	Upsert(ctx context.Context, snap *domain.InventorySnapshot) error
}

// ForecastRepository persists generated forecasts. Forecasts are append-only:
// a new generation inserts a new row, it never overwrites an old one.
type ForecastRepository interface {
	// Insert stores the forecast and assigns its ID.
	Insert(ctx context.Context, f *domain.Forecast) error

	// Latest returns the most recently generated forecast for (sku, horizon),
	// or nil when none exists.
	Latest(ctx context.Context, sku string, horizonDays int) (*domain.Forecast, error)

	GetByID(ctx context.Context, id int64) (*domain.Forecast, error)
}

// SupplierRepository manages suppliers and their price lists.
type SupplierRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Supplier, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Supplier, error)
	Insert(ctx context.Context, s *domain.Supplier) error

	// CurrentPrices returns the current price per SKU for the supplier. SKUs
	// without a current price are absent from the map.
	CurrentPrices(ctx context.Context, supplierID int64, skus []string, now time.Time) (map[string]domain.SupplierPrice, error)

	// UpsertPrice updates the existing current price row for
	// (supplier, sku) or inserts one, so at most one current price exists.
	UpsertPrice(ctx context.Context, price *domain.SupplierPrice) error
}

// ReceiptTx is the unit of work for receiving a purchase order. All calls
// inside one WithinReceipt invocation commit or roll back together.
type ReceiptTx interface {
	// ApplyStockDelta adjusts stock for one line and reports the real
	// before/after quantities for the audit trail.
	ApplyStockDelta(ctx context.Context, sku string, delta int, restockedAt time.Time) (before, after int, err error)

	AppendAudit(ctx context.Context, entry *domain.InventoryAuditEntry) error

	// MarkReceived stamps received_at and flips the status to received.
	MarkReceived(ctx context.Context, poID int64, receivedBy string, at time.Time) error
}

// PORepository persists purchase orders and their audit trail.
type PORepository interface {
	// CreateDraft inserts the PO and its line items, assigning the next
	// sequential PO number for the order's calendar year. Safe under
	// concurrent draft creation.
	CreateDraft(ctx context.Context, po *domain.PurchaseOrder) error

	GetByID(ctx context.Context, id int64) (*domain.PurchaseOrder, error)
	List(ctx context.Context, status domain.POStatus, limit, offset int) ([]domain.PurchaseOrder, error)

	// Update persists mutable header fields and lifecycle stamps. Line items
	// are replaced only while the order is a draft.
	Update(ctx context.Context, po *domain.PurchaseOrder) error

	// WithinReceipt runs fn inside one transaction; any error rolls the
	// whole receipt back.
	WithinReceipt(ctx context.Context, fn func(tx ReceiptTx) error) error

	ListAuditByReference(ctx context.Context, referenceID string) ([]domain.InventoryAuditEntry, error)
	AppendAudit(ctx context.Context, entry *domain.InventoryAuditEntry) error
}
