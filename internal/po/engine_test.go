package po

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/predictor"
	"github.com/stockcast/backend-go/internal/repository"
)

type fakeSuppliers struct {
	suppliers map[int64]*domain.Supplier
	prices    map[string]domain.SupplierPrice
}

func (f *fakeSuppliers) GetByID(_ context.Context, id int64) (*domain.Supplier, error) {
	s, ok := f.suppliers[id]
	if !ok {
		return nil, domain.ErrSupplierNotFound
	}
	return s, nil
}

func (f *fakeSuppliers) List(context.Context, bool) ([]domain.Supplier, error) { return nil, nil }
func (f *fakeSuppliers) Insert(context.Context, *domain.Supplier) error       { return nil }
func (f *fakeSuppliers) UpsertPrice(context.Context, *domain.SupplierPrice) error {
	return nil
}

func (f *fakeSuppliers) CurrentPrices(_ context.Context, _ int64, skus []string, _ time.Time) (map[string]domain.SupplierPrice, error) {
	out := make(map[string]domain.SupplierPrice)
	for _, sku := range skus {
		if p, ok := f.prices[sku]; ok {
			out[sku] = p
		}
	}
	return out, nil
}

type fakeStock struct {
	snaps map[string]*domain.InventorySnapshot
}

func (f *fakeStock) GetBySKU(_ context.Context, sku string) (*domain.InventorySnapshot, error) {
	return f.snaps[sku], nil
}

func (f *fakeStock) ListActive(context.Context) ([]domain.InventorySnapshot, error)   { return nil, nil }
func (f *fakeStock) ListLowStock(context.Context) ([]domain.InventorySnapshot, error) { return nil, nil }

func (f *fakeStock) ApplyDelta(_ context.Context, sku string, delta int, _ *time.Time) (int, int, error) {
	snap, ok := f.snaps[sku]
	if !ok {
		return 0, 0, domain.ErrNoInventoryRecord
	}
	before := snap.QtyAvailable
	snap.QtyAvailable += delta
	return before, snap.QtyAvailable, nil
}

func (f *fakeStock) Upsert(context.Context, *domain.InventorySnapshot) error { return nil }

type fakeForecastStore struct {
	totals map[string]float64
}

func (f *fakeForecastStore) Insert(context.Context, *domain.Forecast) error { return nil }
func (f *fakeForecastStore) GetByID(context.Context, int64) (*domain.Forecast, error) {
	return nil, nil
}

func (f *fakeForecastStore) Latest(_ context.Context, sku string, _ int) (*domain.Forecast, error) {
	total, ok := f.totals[sku]
	if !ok {
		return nil, nil
	}
	return &domain.Forecast{
		SKU:     sku,
		Summary: domain.ForecastSummary{TotalPredicted: total},
	}, nil
}

// fakeOrders keeps purchase orders in memory and mimics the transactional
// receipt: on error every stock and audit change made inside the callback is
// rolled back.
type fakeOrders struct {
	orders    map[int64]*domain.PurchaseOrder
	nextID    int64
	seq       int
	stock     *fakeStock
	audits    []domain.InventoryAuditEntry
	failOnSKU string
}

func newFakeOrders(stock *fakeStock) *fakeOrders {
	return &fakeOrders{orders: make(map[int64]*domain.PurchaseOrder), stock: stock}
}

func (f *fakeOrders) CreateDraft(_ context.Context, po *domain.PurchaseOrder) error {
	f.nextID++
	f.seq++
	po.ID = f.nextID
	po.PONumber = fmt.Sprintf("PO-%d-%04d", po.CreatedAt.Year(), f.seq)
	po.Status = domain.POStatusDraft
	stored := *po
	f.orders[po.ID] = &stored
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id int64) (*domain.PurchaseOrder, error) {
	po, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	copied := *po
	return &copied, nil
}

func (f *fakeOrders) List(context.Context, domain.POStatus, int, int) ([]domain.PurchaseOrder, error) {
	return nil, nil
}

func (f *fakeOrders) Update(_ context.Context, po *domain.PurchaseOrder) error {
	stored := *po
	f.orders[po.ID] = &stored
	return nil
}

type fakeReceiptTx struct {
	repo *fakeOrders
}

func (t *fakeReceiptTx) ApplyStockDelta(ctx context.Context, sku string, delta int, at time.Time) (int, int, error) {
	if sku == t.repo.failOnSKU {
		return 0, 0, errors.New("deadlock detected")
	}
	return t.repo.stock.ApplyDelta(ctx, sku, delta, &at)
}

func (t *fakeReceiptTx) AppendAudit(_ context.Context, entry *domain.InventoryAuditEntry) error {
	t.repo.audits = append(t.repo.audits, *entry)
	return nil
}

func (t *fakeReceiptTx) MarkReceived(_ context.Context, poID int64, _ string, at time.Time) error {
	po := t.repo.orders[poID]
	po.Status = domain.POStatusReceived
	po.ReceivedAt = &at
	return nil
}

func (f *fakeOrders) WithinReceipt(ctx context.Context, fn func(tx repository.ReceiptTx) error) error {
	stockBefore := make(map[string]int)
	for sku, snap := range f.stock.snaps {
		stockBefore[sku] = snap.QtyAvailable
	}
	auditsBefore := len(f.audits)
	statusBefore := make(map[int64]domain.POStatus)
	for id, po := range f.orders {
		statusBefore[id] = po.Status
	}

	if err := fn(&fakeReceiptTx{repo: f}); err != nil {
		for sku, qty := range stockBefore {
			f.stock.snaps[sku].QtyAvailable = qty
		}
		f.audits = f.audits[:auditsBefore]
		for id, status := range statusBefore {
			f.orders[id].Status = status
		}
		return err
	}
	return nil
}

func (f *fakeOrders) ListAuditByReference(_ context.Context, ref string) ([]domain.InventoryAuditEntry, error) {
	var out []domain.InventoryAuditEntry
	for _, e := range f.audits {
		if e.ReferenceID == ref {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOrders) AppendAudit(_ context.Context, entry *domain.InventoryAuditEntry) error {
	f.audits = append(f.audits, *entry)
	return nil
}

func testFixture() (*Engine, *fakeOrders, *fakeStock) {
	stock := &fakeStock{snaps: map[string]*domain.InventorySnapshot{
		"NV-SER-001": {SKU: "NV-SER-001", ProductName: "Renewal Serum", QtyAvailable: 20, SafetyStock: 10, ReorderPoint: 25},
		"NV-CRM-002": {SKU: "NV-CRM-002", ProductName: "Night Cream", QtyAvailable: 15, SafetyStock: 10, ReorderPoint: 20},
	}}
	orders := newFakeOrders(stock)
	suppliers := &fakeSuppliers{
		suppliers: map[int64]*domain.Supplier{
			1: {ID: 1, Name: "Nordvik Labs", Email: "orders@nordviklabs.example", LeadTimeDays: 14, IsActive: true},
			2: {ID: 2, Name: "Closed Vendor", IsActive: false},
		},
		prices: map[string]domain.SupplierPrice{
			"NV-SER-001": {SupplierID: 1, SKU: "NV-SER-001", UnitPrice: decimal.RequireFromString("23.10"), MOQ: 10},
			"NV-CRM-002": {SupplierID: 1, SKU: "NV-CRM-002", UnitPrice: decimal.RequireFromString("21.00"), MOQ: 10},
		},
	}
	forecasts := &fakeForecastStore{totals: map[string]float64{
		"NV-SER-001": 100,
		"NV-CRM-002": 60,
	}}

	engine := NewEngine(orders, suppliers, stock, forecasts, predictor.NewHeuristicPlanner())
	engine.WithClock(func() time.Time {
		return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	})
	return engine, orders, stock
}

func TestGenerateDraftPO(t *testing.T) {
	engine, _, _ := testFixture()
	ctx := context.Background()

	order, err := engine.GenerateDraftPO(ctx, []string{"NV-SER-001", "NV-CRM-002", "NO-PRICE-9"}, 1, "low stock", "ops")
	require.NoError(t, err)

	assert.Equal(t, "PO-2026-0001", order.PONumber)
	assert.Equal(t, domain.POStatusDraft, order.Status)
	require.Len(t, order.LineItems, 2, "SKU without a current price is skipped")

	// NV-SER-001: ceil(100) + 10 safety - 20 stock = 90 units.
	assert.Equal(t, 90, order.LineItems[0].Qty)
	// NV-CRM-002: 60 + 10 - 15 = 55 units.
	assert.Equal(t, 55, order.LineItems[1].Qty)

	wantTotal := decimal.RequireFromString("23.10").Mul(decimal.NewFromInt(90)).
		Add(decimal.RequireFromString("21.00").Mul(decimal.NewFromInt(55)))
	assert.True(t, wantTotal.Equal(order.TotalAmount), "want %s got %s", wantTotal, order.TotalAmount)

	require.NotNil(t, order.ExpectedDeliveryDate)
	assert.Equal(t, time.Date(2026, time.March, 24, 9, 0, 0, 0, time.UTC), *order.ExpectedDeliveryDate)
	assert.NotEmpty(t, order.DraftEmailBody)
}

func TestGenerateDraftPOInactiveSupplier(t *testing.T) {
	engine, _, _ := testFixture()

	_, err := engine.GenerateDraftPO(context.Background(), []string{"NV-SER-001"}, 2, "", "ops")
	assert.ErrorIs(t, err, domain.ErrSupplierNotFound)
}

func TestPOLifecycle(t *testing.T) {
	engine, orders, stock := testFixture()
	ctx := context.Background()

	order, err := engine.GenerateDraftPO(ctx, []string{"NV-SER-001"}, 1, "", "ops")
	require.NoError(t, err)

	order, err = engine.SubmitPO(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusPendingApproval, order.Status)

	order, err = engine.ApprovePO(ctx, order.ID, "manager")
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusApproved, order.Status)
	assert.Equal(t, "manager", order.ApprovedBy)
	require.NotNil(t, order.ApprovedAt)

	order, err = engine.SendPO(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusSent, order.Status)
	require.NotNil(t, order.SentAt)

	stockBefore := stock.snaps["NV-SER-001"].QtyAvailable
	order, err = engine.ReceivePO(ctx, order.ID, "warehouse")
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusReceived, order.Status)
	require.NotNil(t, order.ReceivedAt)

	assert.Equal(t, stockBefore+order.LineItems[0].Qty, stock.snaps["NV-SER-001"].QtyAvailable)

	audits, err := orders.ListAuditByReference(ctx, order.PONumber)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, "po_receipt", audits[0].ChangeType)
	assert.Equal(t, stockBefore, audits[0].QtyBefore)
	assert.Equal(t, stockBefore+order.LineItems[0].Qty, audits[0].QtyAfter)
	assert.Equal(t, "warehouse", audits[0].ChangedBy)
}

func TestPOTransitionGuards(t *testing.T) {
	engine, orders, _ := testFixture()
	ctx := context.Background()

	order, err := engine.GenerateDraftPO(ctx, []string{"NV-SER-001"}, 1, "", "ops")
	require.NoError(t, err)

	// Draft cannot be sent or received.
	_, err = engine.SendPO(ctx, order.ID)
	assert.True(t, domain.IsInvalidTransition(err), "got %v", err)
	_, err = engine.ReceivePO(ctx, order.ID, "warehouse")
	assert.True(t, domain.IsInvalidTransition(err), "got %v", err)

	// The rejected calls must not have mutated the order.
	stored, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusDraft, stored.Status)
	assert.Nil(t, stored.SentAt)

	_, err = engine.ApprovePO(ctx, order.ID, "manager")
	require.NoError(t, err)
	_, err = engine.SendPO(ctx, order.ID)
	require.NoError(t, err)

	// Sent orders cannot be edited or re-approved.
	notes := "too late"
	_, err = engine.UpdatePO(ctx, order.ID, UpdateFields{Notes: &notes})
	assert.True(t, domain.IsInvalidTransition(err))
	_, err = engine.ApprovePO(ctx, order.ID, "manager")
	assert.True(t, domain.IsInvalidTransition(err))

	_, err = engine.ReceivePO(ctx, order.ID, "warehouse")
	require.NoError(t, err)

	// Received is terminal: no re-receipt, no cancel.
	_, err = engine.ReceivePO(ctx, order.ID, "warehouse")
	assert.True(t, domain.IsInvalidTransition(err), "re-receiving must be rejected, not double counted")
	_, err = engine.CancelPO(ctx, order.ID)
	assert.True(t, domain.IsInvalidTransition(err))
}

func TestReceivePORollsBackOnPartialFailure(t *testing.T) {
	engine, orders, stock := testFixture()
	ctx := context.Background()

	order, err := engine.GenerateDraftPO(ctx, []string{"NV-SER-001", "NV-CRM-002"}, 1, "", "ops")
	require.NoError(t, err)
	_, err = engine.ApprovePO(ctx, order.ID, "manager")
	require.NoError(t, err)
	_, err = engine.SendPO(ctx, order.ID)
	require.NoError(t, err)

	serumBefore := stock.snaps["NV-SER-001"].QtyAvailable
	creamBefore := stock.snaps["NV-CRM-002"].QtyAvailable
	orders.failOnSKU = "NV-CRM-002"

	_, err = engine.ReceivePO(ctx, order.ID, "warehouse")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReceiptPartialFailure)

	// The first line's stock change and audit entry must have been rolled
	// back along with the failing line.
	assert.Equal(t, serumBefore, stock.snaps["NV-SER-001"].QtyAvailable)
	assert.Equal(t, creamBefore, stock.snaps["NV-CRM-002"].QtyAvailable)
	assert.Empty(t, orders.audits)

	stored, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusSent, stored.Status, "a failed receipt leaves the order receivable")
}

func TestUpdatePORecomputesTotals(t *testing.T) {
	engine, _, _ := testFixture()
	ctx := context.Background()

	order, err := engine.GenerateDraftPO(ctx, []string{"NV-SER-001"}, 1, "", "ops")
	require.NoError(t, err)

	updated, err := engine.UpdatePO(ctx, order.ID, UpdateFields{
		LineItems: []domain.POLineItem{
			{SKU: "NV-SER-001", ProductName: "Renewal Serum", Qty: 40, UnitPrice: decimal.RequireFromString("23.10")},
		},
	})
	require.NoError(t, err)

	want := decimal.RequireFromString("924.00") // 40 * 23.10
	assert.True(t, want.Equal(updated.TotalAmount), "want %s got %s", want, updated.TotalAmount)
	assert.True(t, want.Equal(updated.LineItems[0].TotalPrice))
}

func TestGetPOUnknownID(t *testing.T) {
	engine, _, _ := testFixture()

	_, err := engine.GetPO(context.Background(), 9999)
	assert.ErrorIs(t, err, domain.ErrPONotFound)
}

func TestCancelPO(t *testing.T) {
	engine, _, _ := testFixture()
	ctx := context.Background()

	order, err := engine.GenerateDraftPO(ctx, []string{"NV-SER-001"}, 1, "", "ops")
	require.NoError(t, err)

	cancelled, err := engine.CancelPO(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.POStatusCancelled, cancelled.Status)
}
