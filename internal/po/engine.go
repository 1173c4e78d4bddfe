package po

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/stockcast/backend-go/internal/domain"
	"github.com/stockcast/backend-go/internal/predictor"
	"github.com/stockcast/backend-go/internal/repository"
)

// Archiver stores the supplier-facing document for a sent order.
type Archiver interface {
	ExportPODocument(ctx context.Context, po *domain.PurchaseOrder, supplier *domain.Supplier) (string, error)
}

// Engine owns the purchase order lifecycle: draft generation from forecasts
// and supplier prices, the state machine, and inventory reconciliation on
// receipt.
type Engine struct {
	orders    repository.PORepository
	suppliers repository.SupplierRepository
	inventory repository.InventoryRepository
	forecasts repository.ForecastRepository
	planner   predictor.DraftPlanner
	archiver  Archiver
	now       func() time.Time
}

func NewEngine(
	orders repository.PORepository,
	suppliers repository.SupplierRepository,
	inventory repository.InventoryRepository,
	forecasts repository.ForecastRepository,
	planner predictor.DraftPlanner,
) *Engine {
	return &Engine{
		orders:    orders,
		suppliers: suppliers,
		inventory: inventory,
		forecasts: forecasts,
		planner:   planner,
		now:       time.Now,
	}
}

// WithClock overrides the engine's clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithArchiver enables document export on send.
func (e *Engine) WithArchiver(a Archiver) *Engine {
	e.archiver = a
	return e
}

// UpdateFields are the header fields editable while a PO is a draft.
type UpdateFields struct {
	Notes                *string
	ExpectedDeliveryDate *time.Time
	LineItems            []domain.POLineItem
}

// GenerateDraftPO builds a draft order for the given SKUs from the supplier's
// current price list and each SKU's latest 30-day forecast.
func (e *Engine) GenerateDraftPO(ctx context.Context, skus []string, supplierID int64, reason, createdBy string) (*domain.PurchaseOrder, error) {
	if len(skus) == 0 {
		return nil, fmt.Errorf("no SKUs given for draft")
	}

	now := e.now()

	supplier, err := e.suppliers.GetByID(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if !supplier.IsActive {
		return nil, fmt.Errorf("supplier %d is inactive: %w", supplierID, domain.ErrSupplierNotFound)
	}

	prices, err := e.suppliers.CurrentPrices(ctx, supplierID, skus, now)
	if err != nil {
		return nil, err
	}

	var items []predictor.DraftItem
	for _, sku := range skus {
		price, ok := prices[sku]
		if !ok {
			log.Warn().Str("sku", sku).Int64("supplier_id", supplierID).
				Msg("skipping sku without a current supplier price")
			continue
		}

		snap, err := e.inventory.GetBySKU(ctx, sku)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			return nil, fmt.Errorf("sku %s: %w", sku, domain.ErrNoInventoryRecord)
		}

		item := predictor.DraftItem{
			SKU:          sku,
			ProductName:  snap.ProductName,
			CurrentStock: snap.QtyAvailable,
			SafetyStock:  snap.SafetyStock,
			ReorderPoint: snap.ReorderPoint,
			UnitPrice:    price.UnitPrice,
			MOQ:          price.MOQ,
		}

		latest, err := e.forecasts.Latest(ctx, sku, 30)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			item.ForecastTotal = latest.Summary.TotalPredicted
		}

		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("supplier %d has no current price for any requested SKU", supplierID)
	}

	plan, err := e.planner.PlanOrder(ctx, predictor.DraftRequest{
		Supplier: *supplier,
		Items:    items,
		Reason:   reason,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	lineItems := make([]domain.POLineItem, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
		lineItems = append(lineItems, domain.POLineItem{
			SKU:         line.SKU,
			ProductName: line.ProductName,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			TotalPrice:  lineTotal,
		})
		total = total.Add(lineTotal)
	}

	expected := now.AddDate(0, 0, supplier.LeadTimeDays)
	order := &domain.PurchaseOrder{
		SupplierID:           supplierID,
		LineItems:            lineItems,
		TotalAmount:          total,
		ExpectedDeliveryDate: &expected,
		AIReasoning:          plan.Reasoning,
		DraftEmailSubject:    plan.EmailSubject,
		DraftEmailBody:       plan.EmailBody,
		Notes:                reason,
		CreatedBy:            createdBy,
		CreatedAt:            now,
	}

	if err := e.orders.CreateDraft(ctx, order); err != nil {
		return nil, err
	}

	log.Info().Str("po_number", order.PONumber).Int64("supplier_id", supplierID).
		Int("line_items", len(order.LineItems)).Msg("draft purchase order created")

	return order, nil
}

func (e *Engine) load(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	order, err := e.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("purchase order %d: %w", id, domain.ErrPONotFound)
	}
	return order, nil
}

func guard(order *domain.PurchaseOrder, action string) error {
	if !order.Status.CanTransition(action) {
		return &domain.InvalidTransitionError{
			PONumber: order.PONumber,
			Current:  order.Status,
			Action:   action,
		}
	}
	return nil
}

// SubmitPO moves a draft into pending approval.
func (e *Engine) SubmitPO(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	order, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, "submit"); err != nil {
		return nil, err
	}

	order.Status = domain.POStatusPendingApproval
	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ApprovePO is allowed from draft or pending_approval and stamps the
// approver.
func (e *Engine) ApprovePO(ctx context.Context, id int64, approvedBy string) (*domain.PurchaseOrder, error) {
	order, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, "approve"); err != nil {
		return nil, err
	}

	now := e.now()
	order.Status = domain.POStatusApproved
	order.ApprovedBy = approvedBy
	order.ApprovedAt = &now

	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	log.Info().Str("po_number", order.PONumber).Str("approved_by", approvedBy).Msg("purchase order approved")
	return order, nil
}

// SendPO is allowed from approved and stamps sent_at.
func (e *Engine) SendPO(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	order, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, "send"); err != nil {
		return nil, err
	}

	now := e.now()
	order.Status = domain.POStatusSent
	order.SentAt = &now

	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	// Archiving is best-effort: a storage outage must not block the send.
	if e.archiver != nil {
		supplier, err := e.suppliers.GetByID(ctx, order.SupplierID)
		if err == nil && supplier != nil {
			if key, err := e.archiver.ExportPODocument(ctx, order, supplier); err != nil {
				log.Warn().Err(err).Str("po_number", order.PONumber).Msg("archiving order document failed")
			} else {
				log.Info().Str("po_number", order.PONumber).Str("key", key).Msg("order document archived")
			}
		}
	}

	log.Info().Str("po_number", order.PONumber).Msg("purchase order sent")
	return order, nil
}

// ReceivePO is allowed from sent. For every line item it increments stock and
// appends an audit entry with the real before/after quantities, then stamps
// the order received, all inside one transaction. Any failure rolls the
// whole receipt back; re-receiving an already received order is rejected by
// the state guard, never double-counted.
func (e *Engine) ReceivePO(ctx context.Context, id int64, receivedBy string) (*domain.PurchaseOrder, error) {
	order, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, "receive"); err != nil {
		return nil, err
	}

	now := e.now()
	err = e.orders.WithinReceipt(ctx, func(tx repository.ReceiptTx) error {
		for _, item := range order.LineItems {
			before, after, err := tx.ApplyStockDelta(ctx, item.SKU, item.Qty, now)
			if err != nil {
				return err
			}

			if err := tx.AppendAudit(ctx, &domain.InventoryAuditEntry{
				SKU:         item.SKU,
				ChangeType:  "po_receipt",
				QtyChange:   item.Qty,
				QtyBefore:   before,
				QtyAfter:    after,
				ReferenceID: order.PONumber,
				Reason:      fmt.Sprintf("Received %d units against %s", item.Qty, order.PONumber),
				ChangedBy:   receivedBy,
				Timestamp:   now,
			}); err != nil {
				return err
			}
		}

		return tx.MarkReceived(ctx, order.ID, receivedBy, now)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReceiptPartialFailure, err)
	}

	order.Status = domain.POStatusReceived
	order.ReceivedAt = &now

	log.Info().Str("po_number", order.PONumber).Int("line_items", len(order.LineItems)).
		Msg("purchase order received, inventory reconciled")

	return order, nil
}

// UpdatePO edits header fields and line items while the order is a draft.
func (e *Engine) UpdatePO(ctx context.Context, id int64, fields UpdateFields) (*domain.PurchaseOrder, error) {
	order, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, "update"); err != nil {
		return nil, err
	}

	if fields.Notes != nil {
		order.Notes = *fields.Notes
	}
	if fields.ExpectedDeliveryDate != nil {
		order.ExpectedDeliveryDate = fields.ExpectedDeliveryDate
	}
	if fields.LineItems != nil {
		order.LineItems = fields.LineItems
		total := decimal.Zero
		for i := range order.LineItems {
			item := &order.LineItems[i]
			item.TotalPrice = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
			total = total.Add(item.TotalPrice)
		}
		order.TotalAmount = total
	}

	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelPO is allowed from any state except received.
func (e *Engine) CancelPO(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	order, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(order, "cancel"); err != nil {
		return nil, err
	}

	order.Status = domain.POStatusCancelled
	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	log.Info().Str("po_number", order.PONumber).Msg("purchase order cancelled")
	return order, nil
}

// GetPO returns one order with its line items.
func (e *Engine) GetPO(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	return e.load(ctx, id)
}

// ListPOs returns orders, optionally filtered by status.
func (e *Engine) ListPOs(ctx context.Context, status domain.POStatus, limit, offset int) ([]domain.PurchaseOrder, error) {
	return e.orders.List(ctx, status, limit, offset)
}
